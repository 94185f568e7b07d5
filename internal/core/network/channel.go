package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-netkit/internal/core/eventbus"
	"github.com/dep2p/go-netkit/internal/core/metrics"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// errorOwner 频道所属的管理器
//
// 管理器的错误订阅者与频道自身的订阅者一样，决定错误是以事件报告还是抛出。
type errorOwner interface {
	errorSubscribed() bool
	forwardError(e pkgif.NetworkErrorEvent)
}

// session 一次连接
//
// 每次 Connect 创建新的 session，关闭后迟到的 IO 回调通过 session 指针比较识别并丢弃。
type session struct {
	id     uuid.UUID
	conn   net.Conn
	active atomic.Bool

	// announce 见 announcePending 等常量，保证 Closed 不早于 Connected
	announce atomic.Int32

	// sending 为 true 时 send 属于发送协程，否则属于驱动协程
	sending atomic.Bool
	send    SendState

	// 异步接收时属于 IO 协程，同步接收时属于驱动协程
	receive *ReceiveState

	inboxMu  sync.Mutex
	inbox    []byte
	inboxEOF bool
	inboxErr error
}

const (
	announcePending int32 = iota
	announceConnected
	announceClosed
)

// Channel TCP 网络频道
//
// Update 由唯一的驱动协程调用；Send、Close 与各访问器可在任意协程调用。
// 事件在发生的协程上触发：Connected 在拨号协程，异步接收的错误在 IO 协程，
// 订阅者需要自行处理并发。
type Channel struct {
	name        string
	serviceType pkgif.ServiceType
	helper      pkgif.NetworkChannelHelper
	headerLen   int
	opts        Options
	reporter    metrics.Reporter
	owner       errorOwner

	ctx    context.Context
	cancel context.CancelFunc

	closeMu  sync.Mutex
	sess     *session
	gen      uint64
	family   pkgif.AddressFamily
	shutdown bool

	sendMu    sync.Mutex
	sendQueue []pkgif.Packet

	receivePool *eventbus.Pool[pkgif.Packet]

	heartBeat         HeartBeatState
	heartBeatInterval atomic.Int64
	resetOnReceive    atomic.Bool

	sentPackets     atomic.Int64
	receivedPackets atomic.Int64

	// fault 没有错误订阅者时 IO 协程上发生的错误，下一次 Update 时抛出
	fault atomic.Pointer[NetworkError]

	connected     eventbus.Event[pkgif.NetworkConnectedEvent]
	closed        eventbus.Event[pkgif.NetworkClosedEvent]
	missHeartBeat eventbus.Event[pkgif.NetworkMissHeartBeatEvent]
	errorEvent    eventbus.Event[pkgif.NetworkErrorEvent]
	customError   eventbus.Event[pkgif.NetworkCustomErrorEvent]
}

var _ pkgif.NetworkChannel = (*Channel)(nil)

// NewChannel 创建网络频道
func NewChannel(name string, serviceType pkgif.ServiceType, helper pkgif.NetworkChannelHelper, opts Options) (*Channel, error) {
	return newChannel(name, serviceType, helper, opts, nil)
}

func newChannel(name string, serviceType pkgif.ServiceType, helper pkgif.NetworkChannelHelper, opts Options, owner errorOwner) (*Channel, error) {
	if helper == nil || isNil(helper) {
		return nil, ErrNilHelper
	}
	headerLen := helper.PacketHeaderLength()
	if headerLen < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPacketHeaderLength, headerLen)
	}
	switch serviceType {
	case pkgif.ServiceTCP, pkgif.ServiceTCPWithSyncReceive:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedServiceType, serviceType)
	}

	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		name:        name,
		serviceType: serviceType,
		helper:      helper,
		headerLen:   headerLen,
		opts:        opts,
		reporter:    opts.Reporter,
		owner:       owner,
		ctx:         ctx,
		cancel:      cancel,
		receivePool: eventbus.NewPool[pkgif.Packet](eventbus.PoolDefault),
	}
	c.heartBeatInterval.Store(int64(opts.HeartBeatInterval))
	c.resetOnReceive.Store(opts.ResetHeartBeatElapseOnReceive)

	helper.Initialize(c)
	return c, nil
}

// ============================================================================
//                              访问器
// ============================================================================

// Name 网络频道名称
func (c *Channel) Name() string { return c.name }

// ServiceType 网络服务类型
func (c *Channel) ServiceType() pkgif.ServiceType { return c.serviceType }

// Socket 当前连接，未连接时为 nil
func (c *Channel) Socket() net.Conn {
	if s := c.current(); s != nil {
		return s.conn
	}
	return nil
}

// Connected 是否已连接
//
// Connected 事件处理完毕后才返回 true。
func (c *Channel) Connected() bool {
	s := c.current()
	return s != nil && s.active.Load() && s.announce.Load() == announceConnected
}

// AddressFamily 网络地址类型
func (c *Channel) AddressFamily() pkgif.AddressFamily {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.family
}

// SendPacketCount 待发送消息包数量
func (c *Channel) SendPacketCount() int {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return len(c.sendQueue)
}

// SentPacketCount 已发送消息包数量
func (c *Channel) SentPacketCount() int { return int(c.sentPackets.Load()) }

// ReceivePacketCount 待处理的已接收消息包数量
func (c *Channel) ReceivePacketCount() int { return c.receivePool.Count() }

// ReceivedPacketCount 已接收消息包数量
func (c *Channel) ReceivedPacketCount() int { return int(c.receivedPackets.Load()) }

// ResetHeartBeatElapseSecondsWhenReceivePacket 收到消息包时是否重置心跳流逝时间
func (c *Channel) ResetHeartBeatElapseSecondsWhenReceivePacket() bool {
	return c.resetOnReceive.Load()
}

// SetResetHeartBeatElapseSecondsWhenReceivePacket 设置收到消息包时是否重置心跳流逝时间
func (c *Channel) SetResetHeartBeatElapseSecondsWhenReceivePacket(reset bool) {
	c.resetOnReceive.Store(reset)
}

// MissHeartBeatCount 丢失心跳的次数
func (c *Channel) MissHeartBeatCount() int { return c.heartBeat.MissCount() }

// HeartBeatInterval 心跳间隔
func (c *Channel) HeartBeatInterval() time.Duration {
	return time.Duration(c.heartBeatInterval.Load())
}

// SetHeartBeatInterval 设置心跳间隔，0 表示不发送心跳
func (c *Channel) SetHeartBeatInterval(interval time.Duration) {
	c.heartBeatInterval.Store(int64(interval))
}

// HeartBeatElapse 距离上一次心跳的流逝时间
func (c *Channel) HeartBeatElapse() time.Duration { return c.heartBeat.Elapse() }

// ============================================================================
//                              事件订阅
// ============================================================================

// OnConnected 订阅连接成功事件
func (c *Channel) OnConnected(fn func(pkgif.NetworkConnectedEvent)) func() {
	return c.connected.Subscribe(fn)
}

// OnClosed 订阅连接关闭事件
func (c *Channel) OnClosed(fn func(pkgif.NetworkClosedEvent)) func() {
	return c.closed.Subscribe(fn)
}

// OnMissHeartBeat 订阅心跳丢失事件
func (c *Channel) OnMissHeartBeat(fn func(pkgif.NetworkMissHeartBeatEvent)) func() {
	return c.missHeartBeat.Subscribe(fn)
}

// OnError 订阅网络错误事件
//
// 没有任何错误订阅者时，错误会以 panic(*NetworkError) 的形式在驱动协程抛出。
func (c *Channel) OnError(fn func(pkgif.NetworkErrorEvent)) func() {
	return c.errorEvent.Subscribe(fn)
}

// OnCustomError 订阅自定义错误事件
func (c *Channel) OnCustomError(fn func(pkgif.NetworkCustomErrorEvent)) func() {
	return c.customError.Subscribe(fn)
}

// RegisterHandler 注册消息包处理器，每个消息包编号只能有一个处理器
func (c *Channel) RegisterHandler(handler pkgif.PacketHandler) error {
	if handler == nil || isNil(handler) {
		return ErrNilHandler
	}
	_, err := c.receivePool.Subscribe(handler.ID(), func(sender any, packet pkgif.Packet) {
		handler.Handle(c, packet)
	})
	return err
}

// SetDefaultHandler 设置没有处理器时的默认处理函数
func (c *Channel) SetDefaultHandler(handler func(channel pkgif.NetworkChannel, packet pkgif.Packet)) {
	if handler == nil {
		c.receivePool.SetDefaultHandler(nil)
		return
	}
	c.receivePool.SetDefaultHandler(func(_ any, packet pkgif.Packet) {
		handler(c, packet)
	})
}

// ============================================================================
//                              连接
// ============================================================================

// Connect 连接到远程主机
//
// 已有连接时先关闭。连接在后台协程中建立，结果通过 Connected 或 Error 事件通知。
func (c *Channel) Connect(ip net.IP, port int, userData any) error {
	if c.isShutdown() {
		return ErrChannelShutdown
	}

	c.Close()

	family := addressFamilyOf(ip)
	if family == pkgif.AddressFamilyUnknown {
		return c.fail(pkgif.NetworkErrorAddressFamily, fmt.Sprintf("Not supported address family '%s'.", ip), nil)
	}

	c.helper.PrepareForConnecting()

	c.closeMu.Lock()
	c.family = family
	c.gen++
	gen := c.gen
	c.closeMu.Unlock()

	address := net.JoinHostPort(ip.String(), strconv.Itoa(port))
	logger.Debug("网络频道开始连接", "channel", c.name, "address", address)
	go c.dial(gen, address, userData)
	return nil
}

func (c *Channel) dial(gen uint64, address string, userData any) {
	conn, err := c.opts.Dialer.DialContext(c.ctx, "tcp", address)
	if err != nil {
		if !c.isGeneration(gen) {
			return
		}
		c.raise(newNetworkError(c, pkgif.NetworkErrorConnect, "", err), nil, false)
		return
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(c.opts.NoDelay); err != nil {
			logger.Debug("设置 NoDelay 失败", "channel", c.name, "err", err)
		}
	}

	s := &session{
		id:      uuid.New(),
		conn:    conn,
		receive: NewReceiveState(c.headerLen),
	}

	c.closeMu.Lock()
	if c.gen != gen || c.shutdown {
		c.closeMu.Unlock()
		_ = conn.Close()
		return
	}
	c.sess = s
	c.closeMu.Unlock()

	c.sentPackets.Store(0)
	c.receivedPackets.Store(0)
	c.clearSendQueue()
	c.receivePool.Clear()
	c.heartBeat.Reset(true)

	// 重置期间可能已被 Close 取消
	c.closeMu.Lock()
	if c.sess != s {
		c.closeMu.Unlock()
		return
	}
	s.active.Store(true)
	c.closeMu.Unlock()

	logger.Info("网络频道已连接", "channel", c.name, "session", s.id, "remote", conn.RemoteAddr())
	c.connected.Fire(pkgif.NetworkConnectedEvent{Channel: c, UserData: userData})
	if !s.announce.CompareAndSwap(announcePending, announceConnected) {
		// Connected 处理期间连接已关闭，由这里补发 Closed
		c.closed.Fire(pkgif.NetworkClosedEvent{Channel: c})
		return
	}

	if c.serviceType == pkgif.ServiceTCPWithSyncReceive {
		go c.pumpLoop(s)
		return
	}
	go c.receiveLoop(s)
}

// Close 关闭连接
//
// 可重复调用；每次从已连接到关闭的转换只触发一次 Closed 事件。
// 已注册的消息包处理器保持不变。
func (c *Channel) Close() {
	if err := c.closeSession(nil); err != nil {
		logger.Debug("关闭连接失败", "channel", c.name, "err", err)
	}
}

// closeSession 关闭 expect 指定的连接，expect 为 nil 时关闭当前连接
func (c *Channel) closeSession(expect *session) error {
	c.closeMu.Lock()
	s := c.sess
	if expect != nil && s != expect {
		c.closeMu.Unlock()
		return nil
	}
	c.gen++
	c.sess = nil
	c.closeMu.Unlock()

	if s == nil {
		return nil
	}
	s.active.Store(false)

	err := s.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	logger.Info("网络频道已关闭", "channel", c.name, "session", s.id)
	if !s.announce.CompareAndSwap(announcePending, announceClosed) {
		c.closed.Fire(pkgif.NetworkClosedEvent{Channel: c})
	}

	c.sentPackets.Store(0)
	c.receivedPackets.Store(0)
	c.clearSendQueue()
	c.receivePool.Clear()
	c.heartBeat.Reset(true)
	return err
}

// Shutdown 关闭连接并释放频道
func (c *Channel) Shutdown() error {
	c.closeMu.Lock()
	if c.shutdown {
		c.closeMu.Unlock()
		return nil
	}
	c.shutdown = true
	c.closeMu.Unlock()

	err := c.closeSession(nil)
	c.cancel()
	c.receivePool.Shutdown()
	c.helper.Shutdown()

	c.connected.Clear()
	c.closed.Clear()
	c.missHeartBeat.Clear()
	c.errorEvent.Clear()
	c.customError.Clear()
	return err
}

// ============================================================================
//                              发送
// ============================================================================

// Send 把消息包放入发送队列，在下一次 Update 时合并发送
func (c *Channel) Send(packet pkgif.Packet) error {
	if packet == nil || isNil(packet) {
		return ErrNilPacket
	}

	s := c.current()
	if s == nil {
		return c.fail(pkgif.NetworkErrorSend, "You must connect first.", nil)
	}
	if !s.active.Load() {
		return c.fail(pkgif.NetworkErrorSend, "Socket is not active.", nil)
	}

	c.sendMu.Lock()
	c.sendQueue = append(c.sendQueue, packet)
	c.sendMu.Unlock()
	return nil
}

// processSend 把发送队列整体序列化到一个缓冲区，并启动一个发送协程
func (c *Channel) processSend(s *session) {
	if s.sending.Load() {
		return
	}

	c.sendMu.Lock()
	packets := c.sendQueue
	c.sendQueue = nil
	c.sendMu.Unlock()

	if len(packets) == 0 {
		return
	}

	for _, packet := range packets {
		if err := c.helper.Serialize(packet, s.send.Writer()); err != nil {
			s.send.Reset()
			c.raise(newNetworkError(c, pkgif.NetworkErrorSerialize, "", err), s, true)
			return
		}
		s.send.packets++
	}

	s.sending.Store(true)
	go c.sendLoop(s)
}

// sendLoop 发送缓冲区，写超时且已写入部分数据时从断点继续
func (c *Channel) sendLoop(s *session) {
	for !s.send.Flushed() {
		if c.opts.SendTimeout > 0 {
			_ = s.conn.SetWriteDeadline(time.Now().Add(c.opts.SendTimeout))
		}
		n, err := s.conn.Write(s.send.Pending())
		s.send.Advance(n)
		if err == nil {
			continue
		}
		if n > 0 && isTimeout(err) {
			logger.Debug("部分发送，继续发送剩余数据", "channel", c.name, "sent", s.send.Offset(), "total", s.send.Len())
			continue
		}

		s.send.Reset()
		s.sending.Store(false)
		if c.isCurrent(s) {
			c.raise(newNetworkError(c, pkgif.NetworkErrorSend, "", err), s, false)
		}
		return
	}

	packets, size := s.send.packets, s.send.Len()
	s.send.Reset()
	c.sentPackets.Add(int64(packets))
	c.reporter.PacketsSent(c.name, packets, int64(size))
	s.sending.Store(false)
}

func (c *Channel) clearSendQueue() {
	c.sendMu.Lock()
	c.sendQueue = nil
	c.sendMu.Unlock()
}

// ============================================================================
//                              Update
// ============================================================================

// Update 驱动频道：合并发送、同步接收、分发已接收的消息包、心跳
func (c *Channel) Update(_, realElapse time.Duration) {
	if e := c.fault.Swap(nil); e != nil {
		panic(e)
	}

	s := c.current()
	if s == nil || !s.active.Load() {
		return
	}

	c.processSend(s)
	if c.serviceType == pkgif.ServiceTCPWithSyncReceive {
		c.processInbox(s)
	}

	if !s.active.Load() || !c.isCurrent(s) {
		return
	}

	if err := c.receivePool.Update(); err != nil {
		logger.Warn("消息包没有处理器，已丢弃", "channel", c.name, "err", err)
	}

	c.processHeartBeat(s, realElapse)
}

func (c *Channel) processHeartBeat(s *session, realElapse time.Duration) {
	interval := c.HeartBeatInterval()
	if interval <= 0 {
		return
	}

	due, missCount := c.heartBeat.Tick(realElapse, interval)
	if !due || !s.active.Load() {
		return
	}

	if !c.helper.SendHeartBeat() || missCount <= 0 {
		return
	}

	logger.Debug("心跳丢失", "channel", c.name, "miss", missCount)
	c.reporter.MissHeartBeat(c.name, missCount)
	c.missHeartBeat.Fire(pkgif.NetworkMissHeartBeatEvent{Channel: c, MissHeartBeats: missCount})
}

// ============================================================================
//                              错误
// ============================================================================

func (c *Channel) errorHandled() bool {
	if c.errorEvent.Count() > 0 {
		return true
	}
	return c.owner != nil && c.owner.errorSubscribed()
}

func (c *Channel) fireError(e *NetworkError) {
	event := e.Event()
	c.errorEvent.Fire(event)
	if c.owner != nil {
		c.owner.forwardError(event)
	}
}

// fail 报告调用方方法中的错误，并返回该错误
func (c *Channel) fail(code pkgif.NetworkErrorCode, message string, err error) error {
	e := newNetworkError(c, code, message, err)
	c.reporter.ChannelError(c.name, code.String())
	if c.errorHandled() {
		c.fireError(e)
	}
	return e
}

// raise 报告 IO 与 Update 路径上的错误，并使连接失效
//
// 没有错误订阅者时：在驱动协程上直接 panic；在 IO 协程上保存，
// 下一次 Update 时抛出。
func (c *Channel) raise(e *NetworkError, s *session, onDriver bool) {
	if s != nil {
		s.active.Store(false)
	}
	c.reporter.ChannelError(c.name, e.Code.String())
	logger.Warn("网络频道错误", "channel", c.name, "code", e.Code, "err", e.Message)

	if c.errorHandled() {
		c.fireError(e)
		return
	}
	if onDriver {
		panic(e)
	}
	c.fault.CompareAndSwap(nil, e)
}

func (c *Channel) raiseCustom(data any) {
	if data == nil {
		return
	}
	c.customError.Fire(pkgif.NetworkCustomErrorEvent{Channel: c, CustomErrorData: data})
}

// ============================================================================
//                              内部辅助
// ============================================================================

func (c *Channel) current() *session {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.sess
}

func (c *Channel) isCurrent(s *session) bool {
	return c.current() == s
}

func (c *Channel) isGeneration(gen uint64) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.gen == gen
}

func (c *Channel) isShutdown() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.shutdown
}

func addressFamilyOf(ip net.IP) pkgif.AddressFamily {
	switch {
	case ip.To4() != nil:
		return pkgif.AddressFamilyIPv4
	case len(ip) == net.IPv6len:
		return pkgif.AddressFamilyIPv6
	default:
		return pkgif.AddressFamilyUnknown
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
