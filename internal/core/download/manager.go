package download

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/eventbus"
	"github.com/dep2p/go-netkit/internal/core/metrics"
	"github.com/dep2p/go-netkit/internal/core/refpool"
	"github.com/dep2p/go-netkit/internal/core/taskpool"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// speedWindow 计算当前下载速度的窗口（秒）
const speedWindow = 5

// Options 下载管理器选项
type Options struct {
	// FlushSize 新任务写入磁盘的缓冲区大小
	FlushSize int

	// Timeout 新任务的超时时长，不大于 0 表示不超时
	Timeout time.Duration

	// Reporter 指标上报，为 nil 时丢弃
	Reporter metrics.Reporter

	// Clock 速度计时钟，为 nil 时使用系统时钟
	Clock clock.Clock
}

// DefaultOptions 返回默认选项
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultDownloadConfig())
}

// OptionsFromConfig 从配置创建选项
func OptionsFromConfig(cfg config.DownloadConfig) Options {
	return Options{
		FlushSize: cfg.FlushSize,
		Timeout:   cfg.Timeout.Duration(),
	}
}

// Manager 下载管理器
type Manager struct {
	mu        sync.Mutex
	pool      *taskpool.Pool[*Task]
	tasks     *refpool.Pool[Task, *Task]
	serial    taskpool.SerialGenerator
	flushSize int
	timeout   time.Duration
	shutdown  bool

	speed    *metrics.RateMeter
	reporter metrics.Reporter

	// pending 在释放 mu 之后分发的事件
	pending eventbus.Queue

	startEvent   eventbus.Event[pkgif.DownloadStartEvent]
	updateEvent  eventbus.Event[pkgif.DownloadUpdateEvent]
	successEvent eventbus.Event[pkgif.DownloadSuccessEvent]
	failureEvent eventbus.Event[pkgif.DownloadFailureEvent]
}

var _ pkgif.DownloadManager = (*Manager)(nil)

// NewManager 创建下载管理器
func NewManager(opts Options) *Manager {
	if opts.Reporter == nil {
		opts.Reporter = metrics.Discard{}
	}

	m := &Manager{
		tasks:     refpool.New[Task, *Task](false),
		flushSize: opts.FlushSize,
		timeout:   opts.Timeout,
		speed:     metrics.NewRateMeter(opts.Clock, speedWindow),
		reporter:  opts.Reporter,
	}
	m.pool = taskpool.New(Name, m.releaseTask)
	return m
}

func (m *Manager) releaseTask(task *Task) {
	if err := m.tasks.Release(task); err != nil {
		logger.Warn("回收下载任务失败", "err", err)
	}
}

// ============================================================================
// 状态查询
// ============================================================================

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

// FlushSize 新任务写入磁盘的缓冲区大小
func (m *Manager) FlushSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushSize
}

// SetFlushSize 设置新任务写入磁盘的缓冲区大小
func (m *Manager) SetFlushSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushSize = size
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

// CurrentSpeed 最近几秒的平均下载速度（字节/秒）
func (m *Manager) CurrentSpeed() float64 {
	return m.speed.Rate()
}

// ============================================================================
// 代理与任务
// ============================================================================

// AddDownloadAgentHelper 增加下载代理辅助器
func (m *Manager) AddDownloadAgentHelper(helper pkgif.DownloadAgentHelper) {
	if helper == nil {
		logger.Warn("忽略空的下载代理辅助器")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return
	}
	if err := m.pool.AddAgent(newAgent(helper, m, m.speed, m.reporter)); err != nil {
		logger.Warn("增加下载代理失败", "err", err)
	}
}

// AddDownload 增加下载任务，返回任务序列号
func (m *Manager) AddDownload(downloadPath, downloadURI, tag string, priority int, userData any) (int, error) {
	if downloadPath == "" {
		return 0, ErrEmptyPath
	}
	if downloadURI == "" {
		return 0, ErrEmptyURI
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return 0, ErrManagerShutdown
	}

	task := m.tasks.Acquire()
	task.Initialize(m.serial.Next(), downloadPath, downloadURI, tag, priority, userData, m.flushSize, m.timeout)
	serialID := task.SerialID()
	if err := m.pool.AddTask(task); err != nil {
		m.releaseTask(task)
		return 0, fmt.Errorf("add download %q: %w", downloadURI, err)
	}

	logger.Debug("增加下载任务", "serial", serialID, "uri", downloadURI, "path", downloadPath)
	return serialID, nil
}

// DownloadInfo 获取下载任务信息
func (m *Manager) DownloadInfo(serialID int) (pkgif.TaskInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.TaskInfo(serialID)
}

// DownloadInfos 获取指定标签的下载任务信息
func (m *Manager) DownloadInfos(tag string) []pkgif.TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.TaskInfos(tag)
}

// AllDownloadInfos 获取所有下载任务信息
func (m *Manager) AllDownloadInfos() []pkgif.TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.AllTaskInfos()
}

// RemoveDownload 移除下载任务
func (m *Manager) RemoveDownload(serialID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.RemoveTask(serialID)
}

// RemoveDownloads 移除指定标签的下载任务
func (m *Manager) RemoveDownloads(tag string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.RemoveTasks(tag)
}

// RemoveAllDownloads 移除所有下载任务
func (m *Manager) RemoveAllDownloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.RemoveAllTasks()
}

// ============================================================================
// 驱动
// ============================================================================

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

// Shutdown 关闭下载管理器
//
// 进行中的下载被中止，临时文件保留以便续传。
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
	m.updateEvent.Clear()
	m.successEvent.Clear()
	m.failureEvent.Clear()

	logger.Info("下载管理器已关闭")
	return nil
}

// ============================================================================
// 事件
// ============================================================================

// OnStart 订阅下载开始事件
func (m *Manager) OnStart(handler func(pkgif.DownloadStartEvent)) func() {
	return m.startEvent.Subscribe(handler)
}

// OnUpdate 订阅下载进度事件
func (m *Manager) OnUpdate(handler func(pkgif.DownloadUpdateEvent)) func() {
	return m.updateEvent.Subscribe(handler)
}

// OnSuccess 订阅下载成功事件
func (m *Manager) OnSuccess(handler func(pkgif.DownloadSuccessEvent)) func() {
	return m.successEvent.Subscribe(handler)
}

// OnFailure 订阅下载失败事件
func (m *Manager) OnFailure(handler func(pkgif.DownloadFailureEvent)) func() {
	return m.failureEvent.Subscribe(handler)
}

func (m *Manager) started(e pkgif.DownloadStartEvent) {
	m.pending.Post(func() { m.startEvent.Fire(e) })
}

func (m *Manager) updated(e pkgif.DownloadUpdateEvent) {
	m.pending.Post(func() { m.updateEvent.Fire(e) })
}

func (m *Manager) succeeded(e pkgif.DownloadSuccessEvent) {
	m.pending.Post(func() { m.successEvent.Fire(e) })
}

func (m *Manager) failed(e pkgif.DownloadFailureEvent) {
	m.pending.Post(func() { m.failureEvent.Fire(e) })
}
