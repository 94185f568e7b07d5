package download

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dep2p/go-netkit/internal/core/eventbus"
	"github.com/dep2p/go-netkit/internal/core/metrics"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// notifier 接收代理产生的下载事件
type notifier interface {
	started(pkgif.DownloadStartEvent)
	updated(pkgif.DownloadUpdateEvent)
	succeeded(pkgif.DownloadSuccessEvent)
	failed(pkgif.DownloadFailureEvent)
}

// ============================================================================
// agent - 下载代理
// ============================================================================

// agent 下载代理
//
// 除 sink 回调外，所有方法都在驱动循环协程上调用。
type agent struct {
	helper   pkgif.DownloadAgentHelper
	notify   notifier
	speed    *metrics.RateMeter
	reporter metrics.Reporter

	// gen 每次开始或重置任务时递增，旧请求的迟到回调被丢弃
	gen   uint64
	inbox eventbus.Queue

	task        *Task
	file        *os.File
	buffer      bytes.Buffer
	startLength int64
	downloaded  int64
	saved       int64
	waitTime    time.Duration
}

var _ pkgif.Agent[*Task] = (*agent)(nil)

func newAgent(helper pkgif.DownloadAgentHelper, notify notifier, speed *metrics.RateMeter, reporter metrics.Reporter) *agent {
	if reporter == nil {
		reporter = metrics.Discard{}
	}
	return &agent{
		helper:   helper,
		notify:   notify,
		speed:    speed,
		reporter: reporter,
	}
}

// Initialize 代理加入任务池
func (a *agent) Initialize() {
	logger.Debug("下载代理已加入", "helper", fmt.Sprintf("%T", a.helper))
}

// CurrentLength 断点长度加上本次收到的字节数
func (a *agent) CurrentLength() int64 { return a.startLength + a.downloaded }

// SavedLength 已写入磁盘的字节数（含断点长度）
func (a *agent) SavedLength() int64 { return a.startLength + a.saved }

// WaitTime 距上次收到数据的时长
func (a *agent) WaitTime() time.Duration { return a.waitTime }

// Start 开始下载任务
func (a *agent) Start(task *Task) pkgif.StartTaskStatus {
	if task == nil {
		return pkgif.StartTaskUnknownError
	}

	a.task = task
	a.gen++
	a.waitTime = 0

	file, length, err := openDownloading(task.DownloadingPath())
	if err != nil {
		a.fail(fmt.Errorf("open downloading file: %w", err), false)
		return pkgif.StartTaskUnknownError
	}
	a.file = file
	a.startLength = length
	a.downloaded = 0
	a.saved = 0

	logger.Debug("开始下载", "serial", task.SerialID(), "uri", task.URI(), "from", length)
	a.notify.started(pkgif.DownloadStartEvent{
		SerialID:      task.SerialID(),
		DownloadPath:  task.Path(),
		DownloadURI:   task.URI(),
		CurrentLength: length,
		UserData:      task.UserData(),
	})

	a.helper.Download(task.URI(), length, &sink{agent: a, gen: a.gen})
	return pkgif.StartTaskCanResume
}

// Update 处理收件箱并累计等待时间
func (a *agent) Update(_, realElapse time.Duration) {
	a.inbox.Drain()

	task := a.task
	if task == nil || task.Done() {
		return
	}

	a.waitTime += realElapse
	if timeout := task.Timeout(); timeout > 0 && a.waitTime >= timeout {
		a.fail(ErrTimeout, false)
	}
}

// StopAndReset 中止当前下载并重置代理
//
// 已缓冲的数据会写入临时文件，之后可以续传。
func (a *agent) StopAndReset() {
	a.helper.Reset()
	a.gen++
	a.inbox.Clear()

	if a.file != nil {
		if err := a.flush(); err != nil {
			logger.Warn("重置时写入临时文件失败", "path", a.file.Name(), "err", err)
		}
		a.closeFile()
	}

	a.task = nil
	a.buffer.Reset()
	a.startLength = 0
	a.downloaded = 0
	a.saved = 0
	a.waitTime = 0
}

// Shutdown 任务池关闭
func (a *agent) Shutdown() {
	a.StopAndReset()
}

// ============================================================================
// 辅助器回调（驱动循环协程）
// ============================================================================

func (a *agent) onBytes(gen uint64, data []byte) {
	if !a.accepting(gen) {
		return
	}

	a.waitTime = 0
	n := int64(len(data))
	a.buffer.Write(data)
	a.downloaded += n

	if a.buffer.Len() >= a.task.FlushSize() {
		if err := a.flush(); err != nil {
			a.fail(fmt.Errorf("write downloading file: %w", err), false)
			return
		}
	}

	if a.speed != nil {
		a.speed.Add(n)
	}
	a.reporter.DownloadedBytes(n)

	a.notify.updated(pkgif.DownloadUpdateEvent{
		SerialID:      a.task.SerialID(),
		DownloadPath:  a.task.Path(),
		DownloadURI:   a.task.URI(),
		CurrentLength: a.CurrentLength(),
		UserData:      a.task.UserData(),
	})
}

func (a *agent) onComplete(gen uint64, length int64) {
	if !a.accepting(gen) {
		return
	}

	task := a.task
	if err := a.flush(); err != nil {
		a.fail(fmt.Errorf("write downloading file: %w", err), false)
		return
	}
	a.closeFile()

	if err := os.Remove(task.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.fail(fmt.Errorf("remove existing file: %w", err), false)
		return
	}
	if err := os.Rename(task.DownloadingPath(), task.Path()); err != nil {
		a.fail(fmt.Errorf("rename downloading file: %w", err), false)
		return
	}

	logger.Info("下载完成", "serial", task.SerialID(), "path", task.Path(), "length", a.CurrentLength(), "received", length)
	task.MarkDone()
	a.notify.succeeded(pkgif.DownloadSuccessEvent{
		SerialID:      task.SerialID(),
		DownloadPath:  task.Path(),
		DownloadURI:   task.URI(),
		CurrentLength: a.CurrentLength(),
		UserData:      task.UserData(),
	})
}

func (a *agent) onError(gen uint64, err error, deleteDownloading bool) {
	if !a.accepting(gen) {
		return
	}
	a.fail(err, deleteDownloading)
}

func (a *agent) accepting(gen uint64) bool {
	return gen == a.gen && a.task != nil && !a.task.Done()
}

// fail 以 err 结束当前任务并派发失败事件
func (a *agent) fail(err error, deleteDownloading bool) {
	task := a.task
	a.helper.Reset()
	a.gen++
	a.buffer.Reset()
	a.closeFile()

	if deleteDownloading {
		if rerr := os.Remove(task.DownloadingPath()); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			logger.Warn("删除临时文件失败", "path", task.DownloadingPath(), "err", rerr)
		}
	}

	logger.Warn("下载失败", "serial", task.SerialID(), "uri", task.URI(), "err", err)
	task.MarkFailed(err)
	a.notify.failed(pkgif.DownloadFailureEvent{
		SerialID:     task.SerialID(),
		DownloadPath: task.Path(),
		DownloadURI:  task.URI(),
		Err:          err,
		UserData:     task.UserData(),
	})
}

func (a *agent) flush() error {
	if a.buffer.Len() == 0 || a.file == nil {
		return nil
	}
	n, err := a.file.Write(a.buffer.Bytes())
	a.saved += int64(n)
	a.buffer.Reset()
	return err
}

func (a *agent) closeFile() {
	if a.file == nil {
		return
	}
	if err := a.file.Close(); err != nil {
		logger.Debug("关闭临时文件失败", "path", a.file.Name(), "err", err)
	}
	a.file = nil
}

// openDownloading 以追加方式打开临时文件，返回已有长度
func openDownloading(path string) (*os.File, int64, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, 0, err
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, err
	}
	return file, info.Size(), nil
}

// ============================================================================
// sink - 辅助器回调入口（任意协程）
// ============================================================================

// sink 把辅助器回调转入代理收件箱
//
// 每次 Start 创建新的 sink，gen 与代理不一致的回调在处理时被丢弃。
type sink struct {
	agent *agent
	gen   uint64
}

var _ pkgif.DownloadSink = (*sink)(nil)

func (s *sink) UpdateBytes(data []byte) {
	buf := append([]byte(nil), data...)
	s.agent.inbox.Post(func() { s.agent.onBytes(s.gen, buf) })
}

func (s *sink) Complete(length int64) {
	s.agent.inbox.Post(func() { s.agent.onComplete(s.gen, length) })
}

func (s *sink) Error(err error, deleteDownloading bool) {
	s.agent.inbox.Post(func() { s.agent.onError(s.gen, err, deleteDownloading) })
}
