package taskpool

import (
	"sync"
	"sync/atomic"
)

// TaskBase 任务基础字段
//
// 具体任务类型嵌入 TaskBase 即可满足 interfaces.Task（Description 可覆盖）。
// 完成状态会被代理所在协程写入、被查询方读取，因此用锁保护。
type TaskBase struct {
	serialID int
	tag      string
	priority int
	userData any

	mu   sync.RWMutex
	done bool
	err  error
}

// Initialize 初始化任务基础字段
func (t *TaskBase) Initialize(serialID int, tag string, priority int, userData any) {
	t.serialID = serialID
	t.tag = tag
	t.priority = priority
	t.userData = userData

	t.mu.Lock()
	t.done = false
	t.err = nil
	t.mu.Unlock()
}

// SerialID 任务序列号
func (t *TaskBase) SerialID() int { return t.serialID }

// Tag 任务标签
func (t *TaskBase) Tag() string { return t.tag }

// Priority 任务优先级
func (t *TaskBase) Priority() int { return t.priority }

// UserData 用户自定义数据
func (t *TaskBase) UserData() any { return t.userData }

// Done 任务是否已结束
func (t *TaskBase) Done() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.done
}

// Err 任务失败原因
func (t *TaskBase) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Description 任务描述
func (t *TaskBase) Description() string { return "" }

// MarkDone 标记任务成功结束
func (t *TaskBase) MarkDone() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

// MarkFailed 标记任务失败结束
func (t *TaskBase) MarkFailed(err error) {
	t.mu.Lock()
	t.done = true
	t.err = err
	t.mu.Unlock()
}

// Clear 清理任务，供引用池回收
func (t *TaskBase) Clear() {
	t.serialID = 0
	t.tag = ""
	t.priority = 0
	t.userData = nil

	t.mu.Lock()
	t.done = false
	t.err = nil
	t.mu.Unlock()
}

// SerialGenerator 单调递增的任务序列号生成器
//
// 零值可直接使用，第一个序列号为 1。
type SerialGenerator struct {
	last atomic.Int64
}

// Next 返回下一个序列号
func (g *SerialGenerator) Next() int {
	return int(g.last.Add(1))
}
