package webrequest

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyURI 请求地址为空
	ErrEmptyURI = errors.New("web request uri is empty")

	// ErrTimeout 请求超时
	ErrTimeout = errors.New("timeout")

	// ErrManagerShutdown Web 请求管理器已关闭
	ErrManagerShutdown = errors.New("web request manager is shut down")
)

// StatusError HTTP 响应状态错误
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

// Error 实现 error 接口
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status: %s", e.Status)
}
