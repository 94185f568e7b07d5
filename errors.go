package netkit

import "errors"

// 公共错误定义
var (
	// ErrNotStarted Kit 未启动
	ErrNotStarted = errors.New("kit not started")

	// ErrAlreadyStarted Kit 已启动
	ErrAlreadyStarted = errors.New("kit already started")

	// ErrKitStopped Kit 已停止，不能再次启动
	ErrKitStopped = errors.New("kit stopped")

	// ErrKitClosed Kit 已关闭
	ErrKitClosed = errors.New("kit closed")
)
