package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestSendState 测试发送状态的断点
func TestSendState(t *testing.T) {
	var s SendState
	assert.True(t, s.Empty())
	assert.True(t, s.Flushed())

	_, _ = s.Writer().Write([]byte("0123456789"))
	assert.Equal(t, 10, s.Len())
	assert.False(t, s.Flushed())

	s.Advance(4)
	assert.Equal(t, []byte("456789"), s.Pending())
	s.Advance(100)
	assert.True(t, s.Flushed())
	assert.Equal(t, 10, s.Offset())

	s.Reset()
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.Offset())
}

// TestReceiveState 测试接收状态在包头与包体之间切换
func TestReceiveState(t *testing.T) {
	s := NewReceiveState(4)
	assert.True(t, s.ExpectingHeader())
	assert.Len(t, s.Remaining(), 4)

	s.Advance(3)
	assert.False(t, s.Full())
	s.Advance(1)
	assert.True(t, s.Full())

	s.PrepareForPacket(&testHeader{length: 12})
	assert.False(t, s.ExpectingHeader())
	assert.Len(t, s.Remaining(), 12)

	s.PrepareForPacket(&testHeader{length: 0})
	assert.True(t, s.Full(), "长度为 0 的包体立即读满")

	s.PrepareForPacketHeader(4)
	assert.True(t, s.ExpectingHeader())
	assert.Nil(t, s.Header())
	assert.Len(t, s.Bytes(), 4)

	assert.True(t, NewReceiveState(0).Full())
}

// TestHeartBeatState_Tick 测试心跳计时
func TestHeartBeatState_Tick(t *testing.T) {
	var s HeartBeatState

	due, _ := s.Tick(400*time.Millisecond, time.Second)
	assert.False(t, due)

	for want := 0; want < 3; want++ {
		due, miss := s.Tick(time.Second, time.Second)
		assert.True(t, due)
		assert.Equal(t, want, miss, "返回本次之前的丢失次数")
		assert.Equal(t, time.Duration(0), s.Elapse())
	}
	assert.Equal(t, 3, s.MissCount())

	s.Tick(300*time.Millisecond, time.Second)
	s.Reset(false)
	assert.Equal(t, 0, s.MissCount())
	assert.Equal(t, 300*time.Millisecond, s.Elapse())

	s.Reset(true)
	assert.Equal(t, time.Duration(0), s.Elapse())
}
