// Package taskpool 实现通用的任务调度池
//
// 任务池持有一组可互换的代理（空闲栈 + 工作列表）和一个按优先级排序的
// 等待队列。每次 Update：
//  1. 更新所有工作中的代理；任务已结束的代理被重置并回到空闲栈，任务被回收
//  2. 未暂停时，把等待队列中的任务依次交给空闲代理，直到没有空闲代理或遍历完队列
//
// 等待队列按优先级降序排列，同优先级内先进先出（有序插入，而不是重排）。
//
// # 并发安全
//
// Pool 不是并发安全的，由所属管理器串行调用（通常在驱动循环协程上）。
// 代理的 IO 协程不能直接调用 Pool，而是把结果放入代理自己的收件箱，
// 在 Agent.Update 中取出。
package taskpool

import (
	"reflect"
	"time"

	log "github.com/dep2p/go-netkit/internal/util/logger"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

var logger = log.Logger("core/taskpool")

// workingAgent 工作中的代理及其任务
type workingAgent[T pkgif.Task] struct {
	agent pkgif.Agent[T]
	task  T
}

// Pool 任务池
type Pool[T pkgif.Task] struct {
	name    string
	release func(T)

	free    []pkgif.Agent[T]
	working []*workingAgent[T]
	waiting []T

	paused bool
}

// New 创建任务池
//
// release 在任务被移出任务池（完成、移除或关闭）时调用，用于回收任务；可以为 nil。
func New[T pkgif.Task](name string, release func(T)) *Pool[T] {
	if release == nil {
		release = func(T) {}
	}
	return &Pool[T]{
		name:    name,
		release: release,
	}
}

// Name 任务池名称
func (p *Pool[T]) Name() string { return p.name }

// Paused 是否暂停调度
func (p *Pool[T]) Paused() bool { return p.paused }

// SetPaused 设置是否暂停调度
//
// 暂停时仍会更新工作中的代理，只是不再分配等待中的任务。
func (p *Pool[T]) SetPaused(paused bool) { p.paused = paused }

// TotalAgentCount 代理总数
func (p *Pool[T]) TotalAgentCount() int { return len(p.free) + len(p.working) }

// FreeAgentCount 空闲代理数
func (p *Pool[T]) FreeAgentCount() int { return len(p.free) }

// WorkingAgentCount 工作中的代理数
func (p *Pool[T]) WorkingAgentCount() int { return len(p.working) }

// WaitingTaskCount 等待中的任务数
func (p *Pool[T]) WaitingTaskCount() int { return len(p.waiting) }

// AddAgent 增加代理
func (p *Pool[T]) AddAgent(agent pkgif.Agent[T]) error {
	if agent == nil {
		return ErrNilAgent
	}

	agent.Initialize()
	p.free = append(p.free, agent)
	return nil
}

// AddTask 增加任务
//
// 任务插入到所有优先级不低于它的任务之后。任务池没有代理时返回 ErrNoAgent。
func (p *Pool[T]) AddTask(task T) error {
	if isNil(task) {
		return ErrNilTask
	}
	if p.TotalAgentCount() == 0 {
		return ErrNoAgent
	}

	idx := len(p.waiting)
	for i, w := range p.waiting {
		if w.Priority() < task.Priority() {
			idx = i
			break
		}
	}

	var zero T
	p.waiting = append(p.waiting, zero)
	copy(p.waiting[idx+1:], p.waiting[idx:])
	p.waiting[idx] = task
	return nil
}

// Update 驱动任务池
func (p *Pool[T]) Update(elapse, realElapse time.Duration) {
	p.processRunningTasks(elapse, realElapse)
	if !p.paused {
		p.processWaitingTasks()
	}
}

func (p *Pool[T]) processRunningTasks(elapse, realElapse time.Duration) {
	for i := 0; i < len(p.working); {
		w := p.working[i]
		if w.task.Done() {
			p.working = append(p.working[:i], p.working[i+1:]...)
			p.freeAgent(w.agent)
			p.release(w.task)
			continue
		}

		w.agent.Update(elapse, realElapse)
		i++
	}
}

// processWaitingTasks 把等待中的任务分配给空闲代理
//
// 代理返回 HasToWait 时先放到一边，同一任务继续尝试其余空闲代理；
// 所有空闲代理都拒绝后才轮到下一个任务，被拒绝的代理随之回到空闲栈。
func (p *Pool[T]) processWaitingTasks() {
	var refused []pkgif.Agent[T]
	for i := 0; i < len(p.waiting); {
		if len(p.free) == 0 {
			if len(refused) == 0 {
				break
			}
			refused = p.restoreRefused(refused)
			i++
			continue
		}

		agent := p.popFree()
		task := p.waiting[i]

		status := agent.Start(task)
		switch status {
		case pkgif.StartTaskCanResume, pkgif.StartTaskResumed:
			p.working = append(p.working, &workingAgent[T]{agent: agent, task: task})
			p.removeWaitingAt(i)
			refused = p.restoreRefused(refused)

		case pkgif.StartTaskHasToWait:
			agent.StopAndReset()
			refused = append(refused, agent)

		default:
			// StartTaskDone、StartTaskUnknownError 以及未知状态：任务直接结束
			if status != pkgif.StartTaskDone {
				logger.Debug("任务启动失败", "pool", p.name, "serial", task.SerialID(), "status", status.String())
			}
			refused = p.restoreRefused(refused)
			p.freeAgent(agent)
			p.removeWaitingAt(i)
			p.release(task)
		}
	}
	p.restoreRefused(refused)
}

// restoreRefused 按原顺序把拒绝过当前任务的代理放回空闲栈
func (p *Pool[T]) restoreRefused(refused []pkgif.Agent[T]) []pkgif.Agent[T] {
	for j := len(refused) - 1; j >= 0; j-- {
		p.free = append(p.free, refused[j])
		refused[j] = nil
	}
	return refused[:0]
}

func (p *Pool[T]) popFree() pkgif.Agent[T] {
	n := len(p.free)
	agent := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	return agent
}

func (p *Pool[T]) freeAgent(agent pkgif.Agent[T]) {
	agent.StopAndReset()
	p.free = append(p.free, agent)
}

func (p *Pool[T]) removeWaitingAt(i int) {
	var zero T
	copy(p.waiting[i:], p.waiting[i+1:])
	p.waiting[len(p.waiting)-1] = zero
	p.waiting = p.waiting[:len(p.waiting)-1]
}

// RemoveTask 根据序列号移除任务
func (p *Pool[T]) RemoveTask(serialID int) bool {
	for i, task := range p.waiting {
		if task.SerialID() == serialID {
			p.removeWaitingAt(i)
			p.release(task)
			return true
		}
	}

	for i, w := range p.working {
		if w.task.SerialID() == serialID {
			p.working = append(p.working[:i], p.working[i+1:]...)
			p.freeAgent(w.agent)
			p.release(w.task)
			return true
		}
	}

	return false
}

// RemoveTasks 根据标签移除任务，返回移除数量
func (p *Pool[T]) RemoveTasks(tag string) int {
	return p.removeWhere(func(task T) bool { return task.Tag() == tag })
}

// RemoveAllTasks 移除所有任务，返回移除数量
func (p *Pool[T]) RemoveAllTasks() int {
	return p.removeWhere(func(T) bool { return true })
}

func (p *Pool[T]) removeWhere(match func(T) bool) int {
	count := 0

	keptWaiting := p.waiting[:0]
	for _, task := range p.waiting {
		if match(task) {
			p.release(task)
			count++
			continue
		}
		keptWaiting = append(keptWaiting, task)
	}
	clearTail(p.waiting, len(keptWaiting))
	p.waiting = keptWaiting

	keptWorking := p.working[:0]
	for _, w := range p.working {
		if match(w.task) {
			p.freeAgent(w.agent)
			p.release(w.task)
			count++
			continue
		}
		keptWorking = append(keptWorking, w)
	}
	clearTail(p.working, len(keptWorking))
	p.working = keptWorking

	return count
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func clearTail[E any](s []E, from int) {
	var zero E
	for i := from; i < len(s); i++ {
		s[i] = zero
	}
}

// TaskInfo 根据序列号获取任务信息
func (p *Pool[T]) TaskInfo(serialID int) (pkgif.TaskInfo, bool) {
	for _, task := range p.waiting {
		if task.SerialID() == serialID {
			return snapshot(task, pkgif.TaskTodo), true
		}
	}
	for _, w := range p.working {
		if w.task.SerialID() == serialID {
			return snapshot(w.task, workingStatus(w.task)), true
		}
	}
	return pkgif.TaskInfo{}, false
}

// TaskInfos 根据标签获取任务信息
func (p *Pool[T]) TaskInfos(tag string) []pkgif.TaskInfo {
	return p.collect(func(task T) bool { return task.Tag() == tag })
}

// AllTaskInfos 获取所有任务信息（先等待中，后工作中）
func (p *Pool[T]) AllTaskInfos() []pkgif.TaskInfo {
	return p.collect(func(T) bool { return true })
}

func (p *Pool[T]) collect(match func(T) bool) []pkgif.TaskInfo {
	infos := make([]pkgif.TaskInfo, 0, len(p.waiting)+len(p.working))
	for _, task := range p.waiting {
		if match(task) {
			infos = append(infos, snapshot(task, pkgif.TaskTodo))
		}
	}
	for _, w := range p.working {
		if match(w.task) {
			infos = append(infos, snapshot(w.task, workingStatus(w.task)))
		}
	}
	return infos
}

func workingStatus(task pkgif.Task) pkgif.TaskStatus {
	switch {
	case task.Err() != nil:
		return pkgif.TaskError
	case task.Done():
		return pkgif.TaskDone
	default:
		return pkgif.TaskDoing
	}
}

func snapshot(task pkgif.Task, status pkgif.TaskStatus) pkgif.TaskInfo {
	return pkgif.TaskInfo{
		SerialID:    task.SerialID(),
		Tag:         task.Tag(),
		Priority:    task.Priority(),
		UserData:    task.UserData(),
		Status:      status,
		Description: task.Description(),
	}
}

// Shutdown 关闭任务池
//
// 停止并重置所有工作中的代理，关闭所有代理，回收所有任务。
func (p *Pool[T]) Shutdown() {
	removed := p.RemoveAllTasks()

	for _, agent := range p.free {
		agent.Shutdown()
	}
	clearTail(p.free, 0)
	p.free = nil
	p.working = nil
	p.waiting = nil

	logger.Debug("任务池已关闭", "pool", p.name, "removed", removed)
}
