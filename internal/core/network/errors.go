package network

import (
	"errors"
	"fmt"
	"syscall"

	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// ============================================================================
//                              配置错误
// ============================================================================

var (
	// ErrNilHelper 网络频道辅助器为空
	ErrNilHelper = errors.New("network channel helper is invalid")

	// ErrInvalidPacketHeaderLength 消息包头长度小于 0
	ErrInvalidPacketHeaderLength = errors.New("packet header length is invalid")

	// ErrChannelExists 网络频道已存在
	ErrChannelExists = errors.New("network channel already exists")

	// ErrUnsupportedServiceType 不支持的网络服务类型
	ErrUnsupportedServiceType = errors.New("unsupported service type")

	// ErrNilPacket 消息包为空
	ErrNilPacket = errors.New("packet is invalid")

	// ErrNilHandler 消息包处理器为空
	ErrNilHandler = errors.New("packet handler is invalid")

	// ErrChannelShutdown 网络频道已关闭
	ErrChannelShutdown = errors.New("network channel is shut down")

	// ErrManagerShutdown 网络管理器已关闭
	ErrManagerShutdown = errors.New("network manager is shut down")
)

// ============================================================================
//                              传输错误
// ============================================================================

// NetworkError 网络频道传输错误
//
// 有错误事件订阅者时以事件形式报告；没有订阅者时，调用方方法返回该错误，
// IO 与 Update 路径上则以 panic(*NetworkError) 抛出。
type NetworkError struct {
	// Channel 发生错误的网络频道
	Channel pkgif.NetworkChannel

	// Code 错误码
	Code pkgif.NetworkErrorCode

	// SocketErrorCode 操作系统 Socket 错误码，没有时为 0
	SocketErrorCode int

	// Message 错误信息
	Message string

	// Err 原始错误
	Err error
}

// Error 实现 error 接口
func (e *NetworkError) Error() string {
	name := ""
	if e.Channel != nil {
		name = e.Channel.Name()
	}
	if e.SocketErrorCode != 0 {
		return fmt.Sprintf("network channel '%s' %s (socket error %d): %s", name, e.Code, e.SocketErrorCode, e.Message)
	}
	return fmt.Sprintf("network channel '%s' %s: %s", name, e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Event 转换为网络错误事件
func (e *NetworkError) Event() pkgif.NetworkErrorEvent {
	return pkgif.NetworkErrorEvent{
		Channel:         e.Channel,
		Code:            e.Code,
		SocketErrorCode: e.SocketErrorCode,
		Message:         e.Message,
		Err:             e.Err,
	}
}

func newNetworkError(ch pkgif.NetworkChannel, code pkgif.NetworkErrorCode, message string, err error) *NetworkError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &NetworkError{
		Channel:         ch,
		Code:            code,
		SocketErrorCode: socketErrorCode(err),
		Message:         message,
		Err:             err,
	}
}

// socketErrorCode 提取操作系统错误码
func socketErrorCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
