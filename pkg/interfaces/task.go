// Package interfaces 定义 netkit 公共接口
//
// 本文件定义任务池相关接口：任务、任务代理与任务信息快照。
package interfaces

import "time"

// StartTaskStatus 尝试把任务交给代理时的结果
type StartTaskStatus int

const (
	// StartTaskDone 任务已在 Start 中直接完成
	StartTaskDone StartTaskStatus = iota

	// StartTaskCanResume 代理已接手任务，之后由代理继续处理
	StartTaskCanResume

	// StartTaskHasToWait 代理暂时无法处理，任务留在等待队列
	StartTaskHasToWait

	// StartTaskResumed 代理恢复了之前中断的任务
	StartTaskResumed

	// StartTaskUnknownError 启动任务时发生未知错误，任务被丢弃
	StartTaskUnknownError
)

// String 返回状态的字符串表示
func (s StartTaskStatus) String() string {
	switch s {
	case StartTaskDone:
		return "done"
	case StartTaskCanResume:
		return "can-resume"
	case StartTaskHasToWait:
		return "has-to-wait"
	case StartTaskResumed:
		return "resumed"
	case StartTaskUnknownError:
		return "unknown-error"
	default:
		return "unknown"
	}
}

// TaskStatus 任务状态
type TaskStatus int

const (
	// TaskTodo 等待分配代理
	TaskTodo TaskStatus = iota
	// TaskDoing 正在被代理处理
	TaskDoing
	// TaskDone 已完成
	TaskDone
	// TaskError 已失败
	TaskError
)

// String 返回状态的字符串表示
func (s TaskStatus) String() string {
	switch s {
	case TaskTodo:
		return "todo"
	case TaskDoing:
		return "doing"
	case TaskDone:
		return "done"
	case TaskError:
		return "error"
	default:
		return "unknown"
	}
}

// Task 任务
//
// 任务在提交时创建，在完成、移除或关闭时被清理回收。
// SerialID 由所属管理器单调分配，不会被复用。
type Task interface {
	// SerialID 任务序列号
	SerialID() int

	// Tag 任务标签，用于分组查询与批量移除
	Tag() string

	// Priority 任务优先级，值越大越先调度
	Priority() int

	// UserData 用户自定义数据
	UserData() any

	// Done 任务是否已结束（成功或失败）
	Done() bool

	// Err 任务失败原因，成功或未结束时为 nil
	Err() error

	// Description 任务描述
	Description() string
}

// Agent 任务代理
//
// 代理每次最多持有一个任务，由所属任务池驱动。
type Agent[T Task] interface {
	// Initialize 代理加入任务池时调用
	Initialize()

	// Update 每帧调用，仅对工作中的代理调用
	Update(elapse, realElapse time.Duration)

	// Shutdown 任务池关闭时调用
	Shutdown()

	// Start 开始处理任务
	Start(task T) StartTaskStatus

	// StopAndReset 停止正在处理的任务并重置代理
	StopAndReset()
}

// TaskInfo 任务信息快照
//
// TaskInfo 是值类型，任务被回收后仍然有效。
type TaskInfo struct {
	SerialID    int
	Tag         string
	Priority    int
	UserData    any
	Status      TaskStatus
	Description string
}

// Updater 可被驱动循环逐帧更新的组件
type Updater interface {
	// Update 每帧调用；elapse 为逻辑流逝时间，realElapse 为真实流逝时间
	Update(elapse, realElapse time.Duration)
}
