package taskpool

import "errors"

var (
	// ErrNoAgent 任务池没有任何代理
	ErrNoAgent = errors.New("task pool has no agent")

	// ErrNilTask 任务为空
	ErrNilTask = errors.New("task is nil")

	// ErrNilAgent 代理为空
	ErrNilAgent = errors.New("agent is nil")
)
