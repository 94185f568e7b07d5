package webrequest

import (
	"fmt"
	"time"

	"github.com/dep2p/go-netkit/internal/core/eventbus"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// notifier 接收代理产生的请求事件
type notifier interface {
	started(pkgif.WebRequestStartEvent)
	succeeded(pkgif.WebRequestSuccessEvent)
	failed(pkgif.WebRequestFailureEvent)
}

// agent Web 请求代理
type agent struct {
	helper pkgif.WebRequestAgentHelper
	notify notifier

	gen   uint64
	inbox eventbus.Queue

	task     *Task
	waitTime time.Duration
}

var _ pkgif.Agent[*Task] = (*agent)(nil)

func newAgent(helper pkgif.WebRequestAgentHelper, notify notifier) *agent {
	return &agent{helper: helper, notify: notify}
}

// Initialize 代理加入任务池
func (a *agent) Initialize() {
	logger.Debug("Web 请求代理已加入", "helper", fmt.Sprintf("%T", a.helper))
}

// Start 发起请求
func (a *agent) Start(task *Task) pkgif.StartTaskStatus {
	if task == nil {
		return pkgif.StartTaskUnknownError
	}

	a.task = task
	a.gen++
	a.waitTime = 0

	logger.Debug("发起 Web 请求", "serial", task.SerialID(), "request", task.RequestID(), "uri", task.URI(), "post", task.PostData() != nil)
	a.notify.started(pkgif.WebRequestStartEvent{
		SerialID:      task.SerialID(),
		WebRequestURI: task.URI(),
		UserData:      task.UserData(),
	})

	a.helper.Request(task.URI(), task.PostData(), &sink{agent: a, gen: a.gen})
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
		a.fail(ErrTimeout)
	}
}

// StopAndReset 中止当前请求并重置代理
func (a *agent) StopAndReset() {
	a.helper.Reset()
	a.gen++
	a.inbox.Clear()
	a.task = nil
	a.waitTime = 0
}

// Shutdown 任务池关闭
func (a *agent) Shutdown() {
	a.StopAndReset()
}

func (a *agent) accepting(gen uint64) bool {
	return gen == a.gen && a.task != nil && !a.task.Done()
}

func (a *agent) onComplete(gen uint64, data []byte) {
	if !a.accepting(gen) {
		return
	}

	task := a.task
	logger.Debug("Web 请求成功", "serial", task.SerialID(), "request", task.RequestID(), "bytes", len(data))
	task.MarkDone()
	a.notify.succeeded(pkgif.WebRequestSuccessEvent{
		SerialID:      task.SerialID(),
		WebRequestURI: task.URI(),
		Data:          data,
		UserData:      task.UserData(),
	})
}

func (a *agent) onError(gen uint64, err error) {
	if !a.accepting(gen) {
		return
	}
	a.fail(err)
}

func (a *agent) fail(err error) {
	task := a.task
	a.helper.Reset()
	a.gen++

	logger.Warn("Web 请求失败", "serial", task.SerialID(), "request", task.RequestID(), "uri", task.URI(), "err", err)
	task.MarkFailed(err)
	a.notify.failed(pkgif.WebRequestFailureEvent{
		SerialID:      task.SerialID(),
		WebRequestURI: task.URI(),
		Err:           err,
		UserData:      task.UserData(),
	})
}

// sink 把辅助器回调转入代理收件箱
type sink struct {
	agent *agent
	gen   uint64
}

var _ pkgif.WebRequestSink = (*sink)(nil)

func (s *sink) Complete(data []byte) {
	s.agent.inbox.Post(func() { s.agent.onComplete(s.gen, data) })
}

func (s *sink) Error(err error) {
	s.agent.inbox.Post(func() { s.agent.onError(s.gen, err) })
}
