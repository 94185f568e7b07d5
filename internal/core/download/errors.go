package download

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPath 下载路径为空
	ErrEmptyPath = errors.New("download path is empty")

	// ErrEmptyURI 下载地址为空
	ErrEmptyURI = errors.New("download uri is empty")

	// ErrNilHelper 下载代理辅助器为空
	ErrNilHelper = errors.New("download agent helper is nil")

	// ErrTimeout 下载超时
	ErrTimeout = errors.New("timeout")

	// ErrRangeUnsupported 服务端不支持断点续传
	ErrRangeUnsupported = errors.New("server does not support range requests")

	// ErrManagerShutdown 下载管理器已关闭
	ErrManagerShutdown = errors.New("download manager is shut down")
)

// StatusError HTTP 响应状态错误
type StatusError struct {
	StatusCode int
	Status     string
}

// Error 实现 error 接口
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status: %s", e.Status)
}
