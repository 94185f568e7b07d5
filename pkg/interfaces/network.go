// Package interfaces 定义 netkit 公共接口
//
// 本文件定义网络频道相关接口：频道、频道辅助器、消息包与网络事件。
package interfaces

import (
	"io"
	"net"
	"time"
)

// ServiceType 网络服务类型
type ServiceType int

const (
	// ServiceTCP TCP 网络服务，接收在 IO 协程上完成解包
	ServiceTCP ServiceType = iota

	// ServiceTCPWithSyncReceive TCP 网络服务，接收的解包与分发在 Update 中同步完成
	ServiceTCPWithSyncReceive
)

// String 返回服务类型名称
func (t ServiceType) String() string {
	switch t {
	case ServiceTCP:
		return "tcp"
	case ServiceTCPWithSyncReceive:
		return "tcp-sync-receive"
	default:
		return "unknown"
	}
}

// AddressFamily 网络地址类型
type AddressFamily int

const (
	// AddressFamilyUnknown 未知
	AddressFamilyUnknown AddressFamily = iota
	// AddressFamilyIPv4 IP 版本 4
	AddressFamilyIPv4
	// AddressFamilyIPv6 IP 版本 6
	AddressFamilyIPv6
)

// String 返回地址类型名称
func (f AddressFamily) String() string {
	switch f {
	case AddressFamilyIPv4:
		return "ipv4"
	case AddressFamilyIPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// NetworkErrorCode 网络错误码
type NetworkErrorCode int

const (
	// NetworkErrorUnknown 未知错误
	NetworkErrorUnknown NetworkErrorCode = iota
	// NetworkErrorAddressFamily 地址类型错误
	NetworkErrorAddressFamily
	// NetworkErrorSocket Socket 错误
	NetworkErrorSocket
	// NetworkErrorConnect 连接错误
	NetworkErrorConnect
	// NetworkErrorSend 发送错误
	NetworkErrorSend
	// NetworkErrorReceive 接收错误
	NetworkErrorReceive
	// NetworkErrorSerialize 序列化错误
	NetworkErrorSerialize
	// NetworkErrorDeserializePacketHeader 反序列化消息包头错误
	NetworkErrorDeserializePacketHeader
	// NetworkErrorDeserializePacket 反序列化消息包错误
	NetworkErrorDeserializePacket
)

// String 返回错误码名称
func (c NetworkErrorCode) String() string {
	switch c {
	case NetworkErrorAddressFamily:
		return "AddressFamilyError"
	case NetworkErrorSocket:
		return "SocketError"
	case NetworkErrorConnect:
		return "ConnectError"
	case NetworkErrorSend:
		return "SendError"
	case NetworkErrorReceive:
		return "ReceiveError"
	case NetworkErrorSerialize:
		return "SerializeError"
	case NetworkErrorDeserializePacketHeader:
		return "DeserializePacketHeaderError"
	case NetworkErrorDeserializePacket:
		return "DeserializePacketError"
	default:
		return "Unknown"
	}
}

// PacketHeader 消息包头
type PacketHeader interface {
	// PacketLength 消息包体长度（字节）
	PacketLength() int
}

// Packet 网络消息包
type Packet interface {
	// ID 消息包编号，用于分发到处理器
	ID() int
}

// PacketHandler 网络消息包处理器
type PacketHandler interface {
	// ID 处理的消息包编号
	ID() int

	// Handle 处理消息包
	Handle(channel NetworkChannel, packet Packet)
}

// NetworkChannelHelper 网络频道辅助器
//
// 消息包的线格式完全由辅助器定义，频道只关心固定长度的包头与
// 包头声明的包体长度。
type NetworkChannelHelper interface {
	// PacketHeaderLength 消息包头长度，允许为 0
	PacketHeaderLength() int

	// Initialize 初始化辅助器
	Initialize(channel NetworkChannel)

	// Shutdown 关闭辅助器
	Shutdown()

	// PrepareForConnecting 准备进行连接
	PrepareForConnecting()

	// SendHeartBeat 发送心跳消息包，返回本次是否真正发送
	SendHeartBeat() bool

	// Serialize 把一个消息包完整写入 w
	Serialize(packet Packet, w io.Writer) error

	// DeserializePacketHeader 反序列化消息包头
	//
	// customErrorData 不为 nil 时会触发自定义错误事件，与失败是两回事。
	// 返回 nil 包头或 err 不为 nil 均视为失败。
	DeserializePacketHeader(r io.Reader) (header PacketHeader, customErrorData any, err error)

	// DeserializePacket 反序列化消息包
	//
	// 返回 nil 消息包且 err 为 nil 表示只有包头、没有需要分发的内容。
	DeserializePacket(header PacketHeader, r io.Reader) (packet Packet, customErrorData any, err error)
}

// NetworkChannel 网络频道
type NetworkChannel interface {
	// Name 网络频道名称
	Name() string

	// Socket 网络频道所使用的连接，未连接时为 nil
	Socket() net.Conn

	// Connected 是否已连接
	Connected() bool

	// ServiceType 网络服务类型
	ServiceType() ServiceType

	// AddressFamily 网络地址类型
	AddressFamily() AddressFamily

	// SendPacketCount 待发送消息包数量
	SendPacketCount() int

	// SentPacketCount 已发送消息包数量
	SentPacketCount() int

	// ReceivePacketCount 待处理的已接收消息包数量
	ReceivePacketCount() int

	// ReceivedPacketCount 已接收消息包数量
	ReceivedPacketCount() int

	// ResetHeartBeatElapseSecondsWhenReceivePacket 收到消息包时是否重置心跳流逝时间
	ResetHeartBeatElapseSecondsWhenReceivePacket() bool

	// SetResetHeartBeatElapseSecondsWhenReceivePacket 设置收到消息包时是否重置心跳流逝时间
	SetResetHeartBeatElapseSecondsWhenReceivePacket(reset bool)

	// MissHeartBeatCount 丢失心跳的次数
	MissHeartBeatCount() int

	// HeartBeatInterval 心跳间隔，0 表示不发送心跳
	HeartBeatInterval() time.Duration

	// SetHeartBeatInterval 设置心跳间隔
	SetHeartBeatInterval(interval time.Duration)

	// HeartBeatElapse 距离上一次心跳的流逝时间
	HeartBeatElapse() time.Duration

	// RegisterHandler 注册消息包处理器
	RegisterHandler(handler PacketHandler) error

	// SetDefaultHandler 设置没有处理器时的默认处理函数
	SetDefaultHandler(handler func(channel NetworkChannel, packet Packet))

	// Connect 连接到远程主机，连接结果通过事件通知
	Connect(ip net.IP, port int, userData any) error

	// Close 关闭连接，可重复调用
	Close()

	// Send 把消息包放入发送队列
	Send(packet Packet) error
}

// NetworkConnectedEvent 网络连接成功事件
type NetworkConnectedEvent struct {
	Channel  NetworkChannel
	UserData any
}

// NetworkClosedEvent 网络连接关闭事件
type NetworkClosedEvent struct {
	Channel NetworkChannel
}

// NetworkMissHeartBeatEvent 网络心跳丢失事件
type NetworkMissHeartBeatEvent struct {
	Channel        NetworkChannel
	MissHeartBeats int
}

// NetworkErrorEvent 网络错误事件
type NetworkErrorEvent struct {
	Channel NetworkChannel

	// Code 错误码
	Code NetworkErrorCode

	// SocketErrorCode 操作系统 Socket 错误码，没有时为 0
	SocketErrorCode int

	// Message 错误信息
	Message string

	// Err 原始错误，可能为 nil
	Err error
}

// NetworkCustomErrorEvent 用户自定义网络错误事件
type NetworkCustomErrorEvent struct {
	Channel         NetworkChannel
	CustomErrorData any
}

// NetworkManager 网络管理器
type NetworkManager interface {
	Updater

	// NetworkChannelCount 网络频道数量
	NetworkChannelCount() int

	// HasNetworkChannel 检查是否存在网络频道
	HasNetworkChannel(name string) bool

	// NetworkChannel 获取网络频道
	NetworkChannel(name string) (NetworkChannel, bool)

	// NetworkChannels 获取所有网络频道
	NetworkChannels() []NetworkChannel

	// CreateNetworkChannel 创建网络频道
	CreateNetworkChannel(name string, serviceType ServiceType, helper NetworkChannelHelper) (NetworkChannel, error)

	// DestroyNetworkChannel 销毁网络频道
	DestroyNetworkChannel(name string) bool

	// OnConnected 订阅连接成功事件，返回取消订阅函数
	OnConnected(handler func(NetworkConnectedEvent)) func()

	// OnClosed 订阅连接关闭事件
	OnClosed(handler func(NetworkClosedEvent)) func()

	// OnMissHeartBeat 订阅心跳丢失事件
	OnMissHeartBeat(handler func(NetworkMissHeartBeatEvent)) func()

	// OnError 订阅网络错误事件
	OnError(handler func(NetworkErrorEvent)) func()

	// OnCustomError 订阅自定义错误事件
	OnCustomError(handler func(NetworkCustomErrorEvent)) func()

	// Shutdown 关闭并清理所有网络频道
	Shutdown() error
}
