package network

import (
	"bytes"
	"io"
	"sync"
	"time"

	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// ============================================================================
//                              SendState
// ============================================================================

// SendState 发送状态
//
// 一次合并发送的缓冲区与已发送位置。部分发送后从 offset 继续，
// 不会重新序列化。
type SendState struct {
	buf     bytes.Buffer
	offset  int
	packets int
}

// Writer 序列化写入目标
func (s *SendState) Writer() io.Writer { return &s.buf }

// Empty 缓冲区是否为空
func (s *SendState) Empty() bool { return s.buf.Len() == 0 }

// Len 缓冲区总长度
func (s *SendState) Len() int { return s.buf.Len() }

// Offset 已发送的字节数
func (s *SendState) Offset() int { return s.offset }

// Pending 尚未发送的字节
func (s *SendState) Pending() []byte { return s.buf.Bytes()[s.offset:] }

// Advance 标记 n 字节已发送
func (s *SendState) Advance(n int) {
	s.offset += n
	if s.offset > s.buf.Len() {
		s.offset = s.buf.Len()
	}
}

// Flushed 是否已全部发送
func (s *SendState) Flushed() bool { return s.offset >= s.buf.Len() }

// Reset 重置发送状态
func (s *SendState) Reset() {
	s.buf.Reset()
	s.offset = 0
	s.packets = 0
}

// ============================================================================
//                              ReceiveState
// ============================================================================

// ReceiveState 接收状态
//
// 缓冲区长度恰好等于当前要读取的包头或包体长度。
// header 为 nil 表示正在等待包头，否则表示正在读取该包头对应的包体。
type ReceiveState struct {
	buf    []byte
	offset int
	header pkgif.PacketHeader
}

// NewReceiveState 创建接收状态并准备读取包头
func NewReceiveState(headerLength int) *ReceiveState {
	s := &ReceiveState{}
	s.PrepareForPacketHeader(headerLength)
	return s
}

// PrepareForPacketHeader 准备读取包头
func (s *ReceiveState) PrepareForPacketHeader(headerLength int) {
	s.header = nil
	s.reset(headerLength)
}

// PrepareForPacket 准备读取包体
func (s *ReceiveState) PrepareForPacket(header pkgif.PacketHeader) {
	s.header = header
	s.reset(header.PacketLength())
}

func (s *ReceiveState) reset(length int) {
	if length < 0 {
		length = 0
	}
	if cap(s.buf) >= length {
		s.buf = s.buf[:length]
	} else {
		s.buf = make([]byte, length)
	}
	s.offset = 0
}

// ExpectingHeader 是否正在等待包头
func (s *ReceiveState) ExpectingHeader() bool { return s.header == nil }

// Header 当前包头
func (s *ReceiveState) Header() pkgif.PacketHeader { return s.header }

// Remaining 尚未填充的缓冲区
func (s *ReceiveState) Remaining() []byte { return s.buf[s.offset:] }

// Advance 标记 n 字节已读取
func (s *ReceiveState) Advance(n int) {
	s.offset += n
	if s.offset > len(s.buf) {
		s.offset = len(s.buf)
	}
}

// Full 当前包头或包体是否已读满
func (s *ReceiveState) Full() bool { return s.offset >= len(s.buf) }

// Bytes 当前包头或包体的全部字节
func (s *ReceiveState) Bytes() []byte { return s.buf }

// ============================================================================
//                              HeartBeatState
// ============================================================================

// HeartBeatState 心跳状态
//
// 被驱动协程与 IO 协程同时访问，由自身的锁保护。
type HeartBeatState struct {
	mu        sync.Mutex
	elapse    time.Duration
	missCount int
}

// Elapse 距离上一次心跳的流逝时间
func (s *HeartBeatState) Elapse() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapse
}

// MissCount 丢失心跳的次数
func (s *HeartBeatState) MissCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missCount
}

// Tick 累加流逝时间
//
// 达到间隔时返回 due=true 和本次心跳之前的丢失次数，并清零流逝时间、
// 预先把丢失次数加一（收到任何消息包时会被清零）。
func (s *HeartBeatState) Tick(realElapse, interval time.Duration) (due bool, missCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elapse += realElapse
	if s.elapse < interval {
		return false, 0
	}

	missCount = s.missCount
	s.elapse = 0
	s.missCount++
	return true, missCount
}

// Reset 清零丢失次数，resetElapse 为 true 时同时清零流逝时间
func (s *HeartBeatState) Reset(resetElapse bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resetElapse {
		s.elapse = 0
	}
	s.missCount = 0
}
