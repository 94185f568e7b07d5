package packet

import "errors"

var (
	// ErrDuplicateID 消息包编号已注册
	ErrDuplicateID = errors.New("packet id already registered")

	// ErrReservedID 消息包编号被心跳占用
	ErrReservedID = errors.New("packet id is reserved for heartbeat")

	// ErrUnknownPacket 未注册的消息包编号
	ErrUnknownPacket = errors.New("unknown packet id")

	// ErrInvalidPacket 不是本编解码器创建的消息包
	ErrInvalidPacket = errors.New("invalid packet type")

	// ErrBodyTooLarge 消息包体超过上限
	ErrBodyTooLarge = errors.New("packet body too large")
)
