package webrequest

import (
	"fmt"
	"sync"
	"time"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/eventbus"
	"github.com/dep2p/go-netkit/internal/core/metrics"
	"github.com/dep2p/go-netkit/internal/core/refpool"
	"github.com/dep2p/go-netkit/internal/core/taskpool"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// Options Web 请求管理器选项
type Options struct {
	// Timeout 新任务的超时时长，不大于 0 表示不超时
	Timeout time.Duration

	// Reporter 指标上报，为 nil 时丢弃
	Reporter metrics.Reporter
}

// OptionsFromConfig 从配置创建选项
func OptionsFromConfig(cfg config.WebRequestConfig) Options {
	return Options{Timeout: cfg.Timeout.Duration()}
}

// Manager Web 请求管理器
type Manager struct {
	mu       sync.Mutex
	pool     *taskpool.Pool[*Task]
	tasks    *refpool.Pool[Task, *Task]
	serial   taskpool.SerialGenerator
	timeout  time.Duration
	shutdown bool

	reporter metrics.Reporter
	pending  eventbus.Queue

	startEvent   eventbus.Event[pkgif.WebRequestStartEvent]
	successEvent eventbus.Event[pkgif.WebRequestSuccessEvent]
	failureEvent eventbus.Event[pkgif.WebRequestFailureEvent]
}

var _ pkgif.WebRequestManager = (*Manager)(nil)

// NewManager 创建 Web 请求管理器
func NewManager(opts Options) *Manager {
	if opts.Reporter == nil {
		opts.Reporter = metrics.Discard{}
	}

	m := &Manager{
		tasks:    refpool.New[Task, *Task](false),
		timeout:  opts.Timeout,
		reporter: opts.Reporter,
	}
	m.pool = taskpool.New(Name, m.releaseTask)
	return m
}

func (m *Manager) releaseTask(task *Task) {
	if err := m.tasks.Release(task); err != nil {
		logger.Warn("回收 Web 请求任务失败", "err", err)
	}
}

// Paused 是否暂停调度
func (m *Manager) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.Paused()
}

// SetPaused 设置是否暂停调度
func (m *Manager) SetPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pool.SetPaused(paused)
}

// TotalAgentCount 代理总数
func (m *Manager) TotalAgentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.TotalAgentCount()
}

// FreeAgentCount 空闲代理数
func (m *Manager) FreeAgentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.FreeAgentCount()
}

// WorkingAgentCount 工作中的代理数
func (m *Manager) WorkingAgentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.WorkingAgentCount()
}

// WaitingTaskCount 等待中的任务数
func (m *Manager) WaitingTaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.WaitingTaskCount()
}

// Timeout 新任务的超时时长
func (m *Manager) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// SetTimeout 设置新任务的超时时长
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
}

// AddWebRequestAgentHelper 增加 Web 请求代理辅助器
func (m *Manager) AddWebRequestAgentHelper(helper pkgif.WebRequestAgentHelper) {
	if helper == nil {
		logger.Warn("忽略空的 Web 请求代理辅助器")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return
	}
	if err := m.pool.AddAgent(newAgent(helper, m)); err != nil {
		logger.Warn("增加 Web 请求代理失败", "err", err)
	}
}

// AddWebRequest 增加 Web 请求任务，返回任务序列号
//
// postData 为 nil 时发送 GET，否则发送 POST。
func (m *Manager) AddWebRequest(webRequestURI string, postData []byte, tag string, priority int, userData any) (int, error) {
	if webRequestURI == "" {
		return 0, ErrEmptyURI
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return 0, ErrManagerShutdown
	}

	task := m.tasks.Acquire()
	task.Initialize(m.serial.Next(), webRequestURI, postData, tag, priority, userData, m.timeout)
	serialID := task.SerialID()
	if err := m.pool.AddTask(task); err != nil {
		m.releaseTask(task)
		return 0, fmt.Errorf("add web request %q: %w", webRequestURI, err)
	}
	return serialID, nil
}

// WebRequestInfo 获取 Web 请求任务信息
func (m *Manager) WebRequestInfo(serialID int) (pkgif.TaskInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.TaskInfo(serialID)
}

// WebRequestInfos 获取指定标签的 Web 请求任务信息
func (m *Manager) WebRequestInfos(tag string) []pkgif.TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.TaskInfos(tag)
}

// AllWebRequestInfos 获取所有 Web 请求任务信息
func (m *Manager) AllWebRequestInfos() []pkgif.TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.AllTaskInfos()
}

// RemoveWebRequest 移除 Web 请求任务
func (m *Manager) RemoveWebRequest(serialID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.RemoveTask(serialID)
}

// RemoveWebRequests 移除指定标签的 Web 请求任务
func (m *Manager) RemoveWebRequests(tag string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.RemoveTasks(tag)
}

// RemoveAllWebRequests 移除所有 Web 请求任务
func (m *Manager) RemoveAllWebRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.RemoveAllTasks()
}

// Update 驱动任务池，然后分发本帧产生的事件
func (m *Manager) Update(elapse, realElapse time.Duration) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.pool.Update(elapse, realElapse)
	m.reporter.TaskPoolState(Name, m.pool.WaitingTaskCount(), m.pool.WorkingAgentCount(), m.pool.FreeAgentCount())
	m.mu.Unlock()

	m.pending.Drain()
}

// Shutdown 关闭 Web 请求管理器
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return nil
	}
	m.shutdown = true

	m.pool.Shutdown()
	m.tasks.Reset()
	m.pending.Clear()

	m.startEvent.Clear()
	m.successEvent.Clear()
	m.failureEvent.Clear()

	logger.Info("Web 请求管理器已关闭")
	return nil
}

// OnStart 订阅请求开始事件
func (m *Manager) OnStart(handler func(pkgif.WebRequestStartEvent)) func() {
	return m.startEvent.Subscribe(handler)
}

// OnSuccess 订阅请求成功事件
func (m *Manager) OnSuccess(handler func(pkgif.WebRequestSuccessEvent)) func() {
	return m.successEvent.Subscribe(handler)
}

// OnFailure 订阅请求失败事件
func (m *Manager) OnFailure(handler func(pkgif.WebRequestFailureEvent)) func() {
	return m.failureEvent.Subscribe(handler)
}

func (m *Manager) started(e pkgif.WebRequestStartEvent) {
	m.pending.Post(func() { m.startEvent.Fire(e) })
}

func (m *Manager) succeeded(e pkgif.WebRequestSuccessEvent) {
	m.pending.Post(func() { m.successEvent.Fire(e) })
}

func (m *Manager) failed(e pkgif.WebRequestFailureEvent) {
	m.pending.Post(func() { m.failureEvent.Fire(e) })
}
