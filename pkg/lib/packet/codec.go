package packet

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/s2"
	"google.golang.org/protobuf/proto"

	log "github.com/dep2p/go-netkit/internal/util/logger"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

var logger = log.Logger("lib/packet")

const (
	// HeaderLength 包头长度
	HeaderLength = 8

	// FlagCompressed body 经过 s2 压缩
	FlagCompressed uint16 = 1

	// DefaultHeartBeatID 默认心跳编号
	DefaultHeartBeatID uint16 = 0

	// DefaultMaxBodyLength 默认包体上限 16MiB
	DefaultMaxBodyLength = 16 << 20
)

// ============================================================================
//                              消息包
// ============================================================================

// Header 消息包头
type Header struct {
	ID     uint16
	Flags  uint16
	Length uint32
}

// PacketLength 包体长度
func (h *Header) PacketLength() int { return int(h.Length) }

// Compressed 包体是否经过压缩
func (h *Header) Compressed() bool { return h.Flags&FlagCompressed != 0 }

// Message 消息包
type Message struct {
	PacketID uint16
	Body     proto.Message
}

// ID 消息包编号
func (m *Message) ID() int { return int(m.PacketID) }

// New 创建消息包
func New(id uint16, body proto.Message) *Message {
	return &Message{PacketID: id, Body: body}
}

// ============================================================================
//                              处理器
// ============================================================================

type handlerFunc struct {
	id uint16
	fn func(pkgif.NetworkChannel, *Message)
}

func (h *handlerFunc) ID() int { return int(h.id) }

func (h *handlerFunc) Handle(channel pkgif.NetworkChannel, packet pkgif.Packet) {
	m, ok := packet.(*Message)
	if !ok {
		logger.Warn("忽略非 protobuf 消息包", "id", packet.ID())
		return
	}
	h.fn(channel, m)
}

// HandlerFunc 把函数包装为指定编号的消息包处理器
func HandlerFunc(id uint16, fn func(pkgif.NetworkChannel, *Message)) pkgif.PacketHandler {
	return &handlerFunc{id: id, fn: fn}
}

// ============================================================================
//                              Codec
// ============================================================================

// Option Codec 选项
type Option func(*Codec)

// WithCompressThreshold 包体达到 n 字节时压缩，0 表示不压缩
func WithCompressThreshold(n int) Option {
	return func(c *Codec) { c.compressThreshold = n }
}

// WithHeartBeatID 设置心跳编号
func WithHeartBeatID(id uint16) Option {
	return func(c *Codec) { c.heartBeatID = id }
}

// WithMaxBodyLength 设置包体上限
//
// 压缩包体的传输长度与解压后长度都不能超过上限。
func WithMaxBodyLength(n int) Option {
	return func(c *Codec) { c.maxBodyLength = n }
}

// Codec protobuf 消息包编解码器，实现 NetworkChannelHelper
//
// 一个 Codec 只服务一个网络频道。
type Codec struct {
	compressThreshold int
	heartBeatID       uint16
	maxBodyLength     int

	mu        sync.RWMutex
	factories map[uint16]func() proto.Message
	channel   pkgif.NetworkChannel
}

var _ pkgif.NetworkChannelHelper = (*Codec)(nil)

// NewCodec 创建编解码器
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		heartBeatID:   DefaultHeartBeatID,
		maxBodyLength: DefaultMaxBodyLength,
		factories:     make(map[uint16]func() proto.Message),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register 注册消息包编号对应的消息工厂
func (c *Codec) Register(id uint16, factory func() proto.Message) error {
	if id == c.heartBeatID {
		return fmt.Errorf("%w: %d", ErrReservedID, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.factories[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	c.factories[id] = factory
	return nil
}

// HeartBeatID 心跳编号
func (c *Codec) HeartBeatID() uint16 { return c.heartBeatID }

// PacketHeaderLength 包头长度
func (c *Codec) PacketHeaderLength() int { return HeaderLength }

// Initialize 绑定网络频道
func (c *Codec) Initialize(channel pkgif.NetworkChannel) {
	c.mu.Lock()
	c.channel = channel
	c.mu.Unlock()
}

// Shutdown 解除绑定
func (c *Codec) Shutdown() {
	c.mu.Lock()
	c.channel = nil
	c.mu.Unlock()
}

// PrepareForConnecting 准备连接
func (c *Codec) PrepareForConnecting() {
	logger.Debug("准备连接", "channel", c.channelName())
}

// SendHeartBeat 发送心跳消息包
func (c *Codec) SendHeartBeat() bool {
	c.mu.RLock()
	channel := c.channel
	c.mu.RUnlock()

	if channel == nil {
		return false
	}
	if err := channel.Send(&Message{PacketID: c.heartBeatID}); err != nil {
		logger.Debug("发送心跳失败", "channel", channel.Name(), "err", err)
		return false
	}
	return true
}

// Serialize 写出包头与包体
func (c *Codec) Serialize(packet pkgif.Packet, w io.Writer) error {
	m, ok := packet.(*Message)
	if !ok {
		return fmt.Errorf("%w: %T", ErrInvalidPacket, packet)
	}

	var body []byte
	if m.Body != nil {
		var err error
		if body, err = proto.Marshal(m.Body); err != nil {
			return fmt.Errorf("marshal packet %d: %w", m.PacketID, err)
		}
	}

	if len(body) > c.maxBodyLength {
		return fmt.Errorf("%w: %d", ErrBodyTooLarge, len(body))
	}

	var flags uint16
	if c.compressThreshold > 0 && len(body) >= c.compressThreshold {
		body = s2.Encode(nil, body)
		flags |= FlagCompressed
	}
	if len(body) > c.maxBodyLength {
		return fmt.Errorf("%w: %d", ErrBodyTooLarge, len(body))
	}

	var header [HeaderLength]byte
	binary.BigEndian.PutUint16(header[0:2], m.PacketID)
	binary.BigEndian.PutUint16(header[2:4], flags)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// DeserializePacketHeader 读取包头
func (c *Codec) DeserializePacketHeader(r io.Reader) (pkgif.PacketHeader, any, error) {
	var buf [HeaderLength]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, nil, fmt.Errorf("read packet header: %w", err)
	}

	h := &Header{
		ID:     binary.BigEndian.Uint16(buf[0:2]),
		Flags:  binary.BigEndian.Uint16(buf[2:4]),
		Length: binary.BigEndian.Uint32(buf[4:8]),
	}
	if int64(h.Length) > int64(c.maxBodyLength) {
		return nil, nil, fmt.Errorf("%w: %d", ErrBodyTooLarge, h.Length)
	}
	return h, nil, nil
}

// DeserializePacket 读取包体
//
// 心跳返回 nil 消息包；未注册的编号作为自定义错误数据返回，不影响连接。
func (c *Codec) DeserializePacket(header pkgif.PacketHeader, r io.Reader) (pkgif.Packet, any, error) {
	h, ok := header.(*Header)
	if !ok {
		return nil, nil, fmt.Errorf("%w: header %T", ErrInvalidPacket, header)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read packet %d: %w", h.ID, err)
	}

	if h.ID == c.heartBeatID {
		return nil, nil, nil
	}

	c.mu.RLock()
	factory, ok := c.factories[h.ID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPacket, h.ID), nil
	}

	if h.Compressed() {
		// 解压前按声明的解压长度检查上限
		n, err := s2.DecodedLen(body)
		if err != nil {
			return nil, nil, fmt.Errorf("decompress packet %d: %w", h.ID, err)
		}
		if n > c.maxBodyLength {
			return nil, nil, fmt.Errorf("%w: decoded %d", ErrBodyTooLarge, n)
		}
		if body, err = s2.Decode(nil, body); err != nil {
			return nil, nil, fmt.Errorf("decompress packet %d: %w", h.ID, err)
		}
	}

	msg := factory()
	if err := proto.Unmarshal(body, msg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal packet %d: %w", h.ID, err)
	}
	return &Message{PacketID: h.ID, Body: msg}, nil, nil
}

func (c *Codec) channelName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.channel == nil {
		return ""
	}
	return c.channel.Name()
}
