package network

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-netkit/internal/core/eventbus"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// Manager 网络管理器
//
// 管理按名称注册的网络频道，并把频道事件转发为管理器事件。
type Manager struct {
	opts Options

	mu       sync.RWMutex
	channels map[string]*managedChannel
	names    []string
	shutdown bool

	connected     eventbus.Event[pkgif.NetworkConnectedEvent]
	closed        eventbus.Event[pkgif.NetworkClosedEvent]
	missHeartBeat eventbus.Event[pkgif.NetworkMissHeartBeatEvent]
	errorEvent    eventbus.Event[pkgif.NetworkErrorEvent]
	customError   eventbus.Event[pkgif.NetworkCustomErrorEvent]
}

type managedChannel struct {
	channel *Channel
	unwire  []func()
}

var _ pkgif.NetworkManager = (*Manager)(nil)

// NewManager 创建网络管理器，opts 作为新建频道的默认选项
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts.withDefaults(),
		channels: make(map[string]*managedChannel),
	}
}

// NetworkChannelCount 网络频道数量
func (m *Manager) NetworkChannelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

// HasNetworkChannel 检查是否存在网络频道
func (m *Manager) HasNetworkChannel(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.channels[name]
	return ok
}

// NetworkChannel 获取网络频道
func (m *Manager) NetworkChannel(name string) (pkgif.NetworkChannel, bool) {
	ch, ok := m.Channel(name)
	if !ok {
		return nil, false
	}
	return ch, true
}

// Channel 获取网络频道的具体实现
func (m *Manager) Channel(name string) (*Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mc, ok := m.channels[name]
	if !ok {
		return nil, false
	}
	return mc.channel, true
}

// NetworkChannels 按创建顺序获取所有网络频道
func (m *Manager) NetworkChannels() []pkgif.NetworkChannel {
	channels := m.snapshot()
	result := make([]pkgif.NetworkChannel, len(channels))
	for i, ch := range channels {
		result[i] = ch
	}
	return result
}

// CreateNetworkChannel 创建网络频道
func (m *Manager) CreateNetworkChannel(name string, serviceType pkgif.ServiceType, helper pkgif.NetworkChannelHelper) (pkgif.NetworkChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil, ErrManagerShutdown
	}
	if _, ok := m.channels[name]; ok {
		return nil, fmt.Errorf("network channel '%s': %w", name, ErrChannelExists)
	}

	ch, err := newChannel(name, serviceType, helper, m.opts, m)
	if err != nil {
		return nil, fmt.Errorf("create network channel '%s': %w", name, err)
	}

	mc := &managedChannel{channel: ch}
	mc.unwire = []func(){
		ch.OnConnected(func(e pkgif.NetworkConnectedEvent) { m.connected.Fire(e) }),
		ch.OnClosed(func(e pkgif.NetworkClosedEvent) { m.closed.Fire(e) }),
		ch.OnMissHeartBeat(func(e pkgif.NetworkMissHeartBeatEvent) { m.missHeartBeat.Fire(e) }),
		ch.OnCustomError(func(e pkgif.NetworkCustomErrorEvent) { m.customError.Fire(e) }),
	}

	m.channels[name] = mc
	m.names = append(m.names, name)
	logger.Debug("网络频道已创建", "channel", name, "service", serviceType)
	return ch, nil
}

// DestroyNetworkChannel 销毁网络频道
func (m *Manager) DestroyNetworkChannel(name string) bool {
	m.mu.Lock()
	mc, ok := m.channels[name]
	if ok {
		delete(m.channels, name)
		m.removeName(name)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	if err := m.destroy(mc); err != nil {
		logger.Warn("销毁网络频道失败", "channel", name, "err", err)
	}
	return true
}

func (m *Manager) destroy(mc *managedChannel) error {
	for _, unwire := range mc.unwire {
		unwire()
	}
	return mc.channel.Shutdown()
}

func (m *Manager) removeName(name string) {
	for i, n := range m.names {
		if n == name {
			m.names = append(m.names[:i], m.names[i+1:]...)
			return
		}
	}
}

// Update 依次驱动所有网络频道
func (m *Manager) Update(elapse, realElapse time.Duration) {
	for _, ch := range m.snapshot() {
		ch.Update(elapse, realElapse)
	}
}

// Shutdown 关闭并清理所有网络频道
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	managed := make([]*managedChannel, 0, len(m.names))
	for _, name := range m.names {
		managed = append(managed, m.channels[name])
	}
	m.channels = make(map[string]*managedChannel)
	m.names = nil
	m.mu.Unlock()

	var errs error
	for _, mc := range managed {
		errs = multierr.Append(errs, m.destroy(mc))
	}

	m.connected.Clear()
	m.closed.Clear()
	m.missHeartBeat.Clear()
	m.errorEvent.Clear()
	m.customError.Clear()

	logger.Debug("网络管理器已关闭", "channels", len(managed))
	return errs
}

func (m *Manager) snapshot() []*Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channels := make([]*Channel, 0, len(m.names))
	for _, name := range m.names {
		channels = append(channels, m.channels[name].channel)
	}
	return channels
}

// ============================================================================
//                              事件
// ============================================================================

// OnConnected 订阅连接成功事件
func (m *Manager) OnConnected(handler func(pkgif.NetworkConnectedEvent)) func() {
	return m.connected.Subscribe(handler)
}

// OnClosed 订阅连接关闭事件
func (m *Manager) OnClosed(handler func(pkgif.NetworkClosedEvent)) func() {
	return m.closed.Subscribe(handler)
}

// OnMissHeartBeat 订阅心跳丢失事件
func (m *Manager) OnMissHeartBeat(handler func(pkgif.NetworkMissHeartBeatEvent)) func() {
	return m.missHeartBeat.Subscribe(handler)
}

// OnError 订阅网络错误事件
//
// 管理器与频道都没有错误订阅者时，频道错误会被抛出。
func (m *Manager) OnError(handler func(pkgif.NetworkErrorEvent)) func() {
	return m.errorEvent.Subscribe(handler)
}

// OnCustomError 订阅自定义错误事件
func (m *Manager) OnCustomError(handler func(pkgif.NetworkCustomErrorEvent)) func() {
	return m.customError.Subscribe(handler)
}

func (m *Manager) errorSubscribed() bool {
	return m.errorEvent.Count() > 0
}

func (m *Manager) forwardError(e pkgif.NetworkErrorEvent) {
	m.errorEvent.Fire(e)
}
