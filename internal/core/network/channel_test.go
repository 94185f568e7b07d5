package network

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netkit/internal/core/eventbus"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// ============================================================================
// 创建
// ============================================================================

// TestNewChannel_Validation 测试创建频道的参数校验
func TestNewChannel_Validation(t *testing.T) {
	_, err := NewChannel("a", pkgif.ServiceTCP, nil, Options{})
	assert.ErrorIs(t, err, ErrNilHelper)

	var nilHelper *fakeHelper
	_, err = NewChannel("a", pkgif.ServiceTCP, nilHelper, Options{})
	assert.ErrorIs(t, err, ErrNilHelper)

	helper := newFakeHelper()
	helper.HeaderLength = -1
	_, err = NewChannel("a", pkgif.ServiceTCP, helper, Options{})
	assert.ErrorIs(t, err, ErrInvalidPacketHeaderLength)

	_, err = NewChannel("a", pkgif.ServiceType(42), newFakeHelper(), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedServiceType)

	helper = newFakeHelper()
	ch, err := NewChannel("a", pkgif.ServiceTCP, helper, Options{HeartBeatInterval: time.Second})
	require.NoError(t, err)
	assert.Equal(t, int32(1), helper.InitializeCalls.Load())
	assert.Equal(t, "a", ch.Name())
	assert.Equal(t, time.Second, ch.HeartBeatInterval())
	assert.False(t, ch.Connected())
	assert.Nil(t, ch.Socket())

	require.NoError(t, ch.Shutdown())
	assert.Equal(t, int32(1), helper.ShutdownCalls.Load())
	require.NoError(t, ch.Shutdown())
	assert.Equal(t, int32(1), helper.ShutdownCalls.Load(), "重复关闭不应再次关闭辅助器")

	t.Log("✅ 频道创建校验测试通过")
}

// ============================================================================
// 连接
// ============================================================================

// TestChannel_Connect 测试连接成功
func TestChannel_Connect(t *testing.T) {
	ch, helper, conn := newTestChannel(t, pkgif.ServiceTCP)

	var events []pkgif.NetworkConnectedEvent
	var mu sync.Mutex
	ch.OnConnected(func(e pkgif.NetworkConnectedEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	connect(t, ch)

	assert.Equal(t, int32(1), helper.PrepareCalls.Load())
	assert.Equal(t, pkgif.AddressFamilyIPv4, ch.AddressFamily())
	assert.Same(t, conn, ch.Socket())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, "user-data", events[0].UserData)
	assert.Same(t, ch, events[0].Channel)

	t.Log("✅ 连接测试通过")
}

// TestChannel_ConnectAddressFamily 测试不支持的地址类型
func TestChannel_ConnectAddressFamily(t *testing.T) {
	ch, _, _ := newTestChannel(t, pkgif.ServiceTCP)

	err := ch.Connect(net.IP{1, 2, 3}, 80, nil)
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, pkgif.NetworkErrorAddressFamily, ne.Code)

	var got atomic.Int32
	ch.OnError(func(e pkgif.NetworkErrorEvent) {
		assert.Equal(t, pkgif.NetworkErrorAddressFamily, e.Code)
		got.Add(1)
	})
	assert.Error(t, ch.Connect(nil, 80, nil))
	assert.Equal(t, int32(1), got.Load(), "有订阅者时同时触发错误事件")
}

// TestChannel_ConnectIPv6 测试 IPv6 地址
func TestChannel_ConnectIPv6(t *testing.T) {
	ch, _, _ := newTestChannel(t, pkgif.ServiceTCP)
	dialer := ch.opts.Dialer.(*fakeDialer)

	require.NoError(t, ch.Connect(net.ParseIP("::1"), 9000, nil))
	require.Eventually(t, ch.Connected, time.Second, time.Millisecond)
	assert.Equal(t, pkgif.AddressFamilyIPv6, ch.AddressFamily())

	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	assert.Equal(t, []string{"[::1]:9000"}, dialer.addrs)
}

// TestChannel_ConnectError 测试拨号失败
func TestChannel_ConnectError(t *testing.T) {
	dialErr := errors.New("connection refused")
	dialer := &fakeDialer{DialFunc: func(context.Context, string, string) (net.Conn, error) { return nil, dialErr }}

	t.Run("with subscriber", func(t *testing.T) {
		ch, err := NewChannel("c", pkgif.ServiceTCP, newFakeHelper(), testOptions(dialer))
		require.NoError(t, err)
		defer ch.Shutdown()

		codes := make(chan pkgif.NetworkErrorCode, 1)
		ch.OnError(func(e pkgif.NetworkErrorEvent) {
			assert.ErrorIs(t, e.Err, dialErr)
			codes <- e.Code
		})
		require.NoError(t, ch.Connect(net.ParseIP("10.0.0.1"), 1, nil))

		select {
		case code := <-codes:
			assert.Equal(t, pkgif.NetworkErrorConnect, code)
		case <-time.After(time.Second):
			t.Fatal("没有收到连接错误事件")
		}
		assert.NotPanics(t, func() { ch.Update(0, 0) })
	})

	t.Run("without subscriber", func(t *testing.T) {
		ch, err := NewChannel("c", pkgif.ServiceTCP, newFakeHelper(), testOptions(dialer))
		require.NoError(t, err)
		defer ch.Shutdown()

		require.NoError(t, ch.Connect(net.ParseIP("10.0.0.1"), 1, nil))
		require.Eventually(t, func() bool { return ch.fault.Load() != nil }, time.Second, time.Millisecond)

		e := catchNetworkError(func() { ch.Update(0, 0) })
		require.NotNil(t, e)
		assert.Equal(t, pkgif.NetworkErrorConnect, e.Code)
		assert.NotPanics(t, func() { ch.Update(0, 0) }, "错误只抛出一次")
	})
}

// ============================================================================
// 发送
// ============================================================================

// TestChannel_SendWithoutConnection 测试未连接时发送
func TestChannel_SendWithoutConnection(t *testing.T) {
	ch, _, _ := newTestChannel(t, pkgif.ServiceTCP)

	assert.ErrorIs(t, ch.Send(nil), ErrNilPacket)

	err := ch.Send(&testPacket{id: 1})
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, pkgif.NetworkErrorSend, ne.Code)
	assert.Equal(t, "You must connect first.", ne.Message)
	assert.Equal(t, 0, ch.SendPacketCount())
}

// TestChannel_SendCoalesce 测试一次 Update 合并发送整个队列
func TestChannel_SendCoalesce(t *testing.T) {
	ch, helper, conn := newTestChannel(t, pkgif.ServiceTCP)
	connect(t, ch)

	p1 := &testPacket{id: 1, data: bytes.Repeat([]byte{'a'}, 10)}
	p2 := &testPacket{id: 2, data: bytes.Repeat([]byte{'b'}, 20)}
	p3 := &testPacket{id: 3, data: bytes.Repeat([]byte{'c'}, 5)}
	for _, p := range []*testPacket{p1, p2, p3} {
		require.NoError(t, ch.Send(p))
	}
	assert.Equal(t, 3, ch.SendPacketCount())

	ch.Update(0, 0)
	require.Eventually(t, func() bool { return ch.SentPacketCount() == 3 }, time.Second, time.Millisecond)

	writes := conn.Writes()
	require.Len(t, writes, 1, "整个队列只发起一次写入")
	assert.Len(t, writes[0], 35)
	assert.Equal(t, append(append(append([]byte(nil), p1.data...), p2.data...), p3.data...), writes[0])
	assert.Equal(t, int32(3), helper.SerializeCalls.Load())
	assert.Equal(t, 0, ch.SendPacketCount())

	t.Log("✅ 合并发送测试通过")
}

// TestChannel_PartialSendResumption 测试部分发送后从断点继续
func TestChannel_PartialSendResumption(t *testing.T) {
	ch, helper, conn := newTestChannel(t, pkgif.ServiceTCP)

	release := make(chan struct{})
	var calls atomic.Int32
	conn.WriteFunc = func(b []byte) (int, error) {
		switch calls.Add(1) {
		case 1:
			return 10, errTimeout
		case 2:
			<-release
		}
		return len(b), nil
	}
	connect(t, ch)

	payload := make([]byte, 35)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, ch.Send(&testPacket{id: 1, data: payload[:10]}))
	require.NoError(t, ch.Send(&testPacket{id: 1, data: payload[10:30]}))
	require.NoError(t, ch.Send(&testPacket{id: 1, data: payload[30:]}))

	ch.Update(0, 0)
	require.Eventually(t, func() bool { return conn.writeCalls.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, ch.SentPacketCount(), "缓冲区未发完时不计数")

	// 发送未完成时 Update 不会重新序列化
	ch.Update(0, 0)
	assert.Equal(t, int32(3), helper.SerializeCalls.Load())

	close(release)
	require.Eventually(t, func() bool { return ch.SentPacketCount() == 3 }, time.Second, time.Millisecond)

	writes := conn.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, payload[:10], writes[0])
	assert.Equal(t, payload[10:], writes[1], "从偏移 10 继续发送")
	assert.Equal(t, int32(3), helper.SerializeCalls.Load())

	t.Log("✅ 部分发送续传测试通过")
}

// TestChannel_SendError 测试发送失败
func TestChannel_SendError(t *testing.T) {
	ch, _, conn := newTestChannel(t, pkgif.ServiceTCP)
	conn.WriteFunc = func([]byte) (int, error) { return 0, errors.New("broken pipe") }
	connect(t, ch)

	codes := make(chan pkgif.NetworkErrorCode, 1)
	ch.OnError(func(e pkgif.NetworkErrorEvent) { codes <- e.Code })

	require.NoError(t, ch.Send(&testPacket{id: 1, data: []byte("x")}))
	ch.Update(0, 0)

	select {
	case code := <-codes:
		assert.Equal(t, pkgif.NetworkErrorSend, code)
	case <-time.After(time.Second):
		t.Fatal("没有收到发送错误事件")
	}
	assert.False(t, ch.Connected(), "错误后连接失效")

	err := ch.Send(&testPacket{id: 1})
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "Socket is not active.", ne.Message)
}

// TestChannel_SerializeError 测试序列化失败
func TestChannel_SerializeError(t *testing.T) {
	ch, helper, _ := newTestChannel(t, pkgif.ServiceTCP)
	helper.SerializeFunc = func(pkgif.Packet, io.Writer) error { return errors.New("bad packet") }
	connect(t, ch)

	require.NoError(t, ch.Send(&testPacket{id: 1}))
	e := catchNetworkError(func() { ch.Update(0, 0) })
	require.NotNil(t, e)
	assert.Equal(t, pkgif.NetworkErrorSerialize, e.Code)
	assert.False(t, ch.Connected())
}

// ============================================================================
// 接收
// ============================================================================

// TestChannel_ReceiveFraming 测试包头与包体分帧
func TestChannel_ReceiveFraming(t *testing.T) {
	ch, helper, conn := newTestChannel(t, pkgif.ServiceTCP)
	handler := &recordingHandler{id: 1}
	require.NoError(t, ch.RegisterHandler(handler))
	connect(t, ch)

	body := []byte("hello, world")
	wire := append(frame(body), frame(nil)...)
	wire = append(wire, frame([]byte("xyz"))...)

	// 按任意边界切分写入
	for _, chunk := range [][]byte{wire[:2], wire[2:7], wire[7:17], wire[17:]} {
		_, err := conn.remote.Write(chunk)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return ch.ReceivePacketCount() == 3 }, time.Second, time.Millisecond)
	assert.Empty(t, handler.Packets(), "消息包在 Update 中分发")

	ch.Update(0, 0)
	packets := handler.Packets()
	require.Len(t, packets, 3)
	assert.Equal(t, body, packets[0].data)
	assert.Empty(t, packets[1].data, "长度为 0 的包头直接分发")
	assert.Equal(t, []byte("xyz"), packets[2].data)
	assert.Equal(t, []int{12, 0, 3}, helper.BodyLengths())
	assert.Equal(t, 3, ch.ReceivedPacketCount())

	s := ch.current()
	require.NotNil(t, s)
	assert.True(t, s.receive.ExpectingHeader())
	assert.Len(t, s.receive.Bytes(), 4)

	t.Log("✅ 接收分帧测试通过")
}

// TestChannel_ReceiveNoHandler 测试没有处理器的消息包被丢弃
func TestChannel_ReceiveNoHandler(t *testing.T) {
	ch, _, conn := newTestChannel(t, pkgif.ServiceTCP)
	connect(t, ch)

	_, err := conn.remote.Write(frame([]byte("a")))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ch.ReceivePacketCount() == 1 }, time.Second, time.Millisecond)

	assert.NotPanics(t, func() { ch.Update(0, 0) })
	assert.Equal(t, 0, ch.ReceivePacketCount())

	var got atomic.Int32
	ch.SetDefaultHandler(func(_ pkgif.NetworkChannel, _ pkgif.Packet) { got.Add(1) })
	_, err = conn.remote.Write(frame([]byte("b")))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ch.ReceivePacketCount() == 1 }, time.Second, time.Millisecond)
	ch.Update(0, 0)
	assert.Equal(t, int32(1), got.Load())
}

// TestChannel_SyncReceive 测试同步接收模式
func TestChannel_SyncReceive(t *testing.T) {
	ch, _, conn := newTestChannel(t, pkgif.ServiceTCPWithSyncReceive)
	handler := &recordingHandler{id: 1}
	require.NoError(t, ch.RegisterHandler(handler))
	connect(t, ch)

	wire := append(frame([]byte("sync-body")), frame([]byte("2"))...)
	_, err := conn.remote.Write(wire)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return inboxLen(ch) == len(wire) }, time.Second, time.Millisecond)

	assert.Equal(t, 0, ch.ReceivedPacketCount(), "分帧在 Update 中完成")
	ch.Update(0, 0)

	packets := handler.Packets()
	require.Len(t, packets, 2)
	assert.Equal(t, []byte("sync-body"), packets[0].data)
	assert.Equal(t, []byte("2"), packets[1].data)
	assert.Equal(t, 0, ch.ReceivePacketCount())
}

// TestChannel_CustomError 测试自定义错误数据
func TestChannel_CustomError(t *testing.T) {
	ch, helper, conn := newTestChannel(t, pkgif.ServiceTCP)
	helper.DeserializePacketFunc = func(_ pkgif.PacketHeader, r io.Reader) (pkgif.Packet, any, error) {
		data, _ := io.ReadAll(r)
		return nil, string(data), nil
	}

	custom := make(chan any, 1)
	ch.OnCustomError(func(e pkgif.NetworkCustomErrorEvent) { custom <- e.CustomErrorData })
	connect(t, ch)

	_, err := conn.remote.Write(frame([]byte("kick")))
	require.NoError(t, err)

	select {
	case data := <-custom:
		assert.Equal(t, "kick", data)
	case <-time.After(time.Second):
		t.Fatal("没有收到自定义错误事件")
	}
	assert.True(t, ch.Connected(), "自定义错误不影响连接")
	assert.Equal(t, 0, ch.ReceivedPacketCount(), "没有消息包需要分发")
}

// TestChannel_RemoteClose 测试远端关闭连接
func TestChannel_RemoteClose(t *testing.T) {
	ch, _, conn := newTestChannel(t, pkgif.ServiceTCP)

	closed := make(chan struct{}, 2)
	ch.OnClosed(func(pkgif.NetworkClosedEvent) { closed <- struct{}{} })
	connect(t, ch)

	require.NoError(t, conn.remote.Close())
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("远端关闭后没有触发 Closed")
	}
	assert.False(t, ch.Connected())
	assert.Nil(t, ch.Socket())
}

// ============================================================================
// 错误与订阅者
// ============================================================================

// TestChannel_ErrorFatality 测试错误处理取决于是否有订阅者
func TestChannel_ErrorFatality(t *testing.T) {
	badHeader := func(h *fakeHelper) {
		h.DeserializePacketHeaderFunc = func(io.Reader) (pkgif.PacketHeader, any, error) {
			return nil, nil, errors.New("malformed header")
		}
	}

	t.Run("sync with subscriber", func(t *testing.T) {
		ch, helper, conn := newTestChannel(t, pkgif.ServiceTCPWithSyncReceive)
		badHeader(helper)
		connect(t, ch)

		var events []pkgif.NetworkErrorEvent
		ch.OnError(func(e pkgif.NetworkErrorEvent) { events = append(events, e) })

		_, err := conn.remote.Write([]byte{0, 0, 0, 1})
		require.NoError(t, err)
		require.Eventually(t, func() bool { return inboxLen(ch) == 4 }, time.Second, time.Millisecond)

		assert.NotPanics(t, func() { ch.Update(0, 0) })
		require.Len(t, events, 1)
		assert.Equal(t, pkgif.NetworkErrorDeserializePacketHeader, events[0].Code)
		assert.False(t, ch.Connected())
	})

	t.Run("sync without subscriber", func(t *testing.T) {
		ch, helper, conn := newTestChannel(t, pkgif.ServiceTCPWithSyncReceive)
		badHeader(helper)
		connect(t, ch)

		_, err := conn.remote.Write([]byte{0, 0, 0, 1})
		require.NoError(t, err)
		require.Eventually(t, func() bool { return inboxLen(ch) == 4 }, time.Second, time.Millisecond)

		e := catchNetworkError(func() { ch.Update(0, 0) })
		require.NotNil(t, e)
		assert.Equal(t, pkgif.NetworkErrorDeserializePacketHeader, e.Code)
		assert.Same(t, ch, e.Channel)
	})

	t.Run("async without subscriber", func(t *testing.T) {
		ch, helper, conn := newTestChannel(t, pkgif.ServiceTCP)
		badHeader(helper)
		connect(t, ch)

		_, err := conn.remote.Write([]byte{0, 0, 0, 1})
		require.NoError(t, err)
		require.Eventually(t, func() bool { return ch.fault.Load() != nil }, time.Second, time.Millisecond)

		e := catchNetworkError(func() { ch.Update(0, 0) })
		require.NotNil(t, e)
		assert.Equal(t, pkgif.NetworkErrorDeserializePacketHeader, e.Code)
	})

	t.Log("✅ 错误订阅者测试通过")
}

// ============================================================================
// 心跳
// ============================================================================

// TestChannel_HeartBeatMissCount 测试第 n 次心跳报告 n-1 次丢失
func TestChannel_HeartBeatMissCount(t *testing.T) {
	ch, helper, conn := newTestChannel(t, pkgif.ServiceTCP)
	ch.SetHeartBeatInterval(time.Second)
	connect(t, ch)

	var misses []int
	ch.OnMissHeartBeat(func(e pkgif.NetworkMissHeartBeatEvent) { misses = append(misses, e.MissHeartBeats) })

	ch.Update(500*time.Millisecond, 500*time.Millisecond)
	assert.Equal(t, int32(0), helper.HeartBeatCalls.Load(), "未到间隔不发送心跳")
	assert.Equal(t, 500*time.Millisecond, ch.HeartBeatElapse())

	ch.Update(500*time.Millisecond, 500*time.Millisecond)
	for i := 0; i < 3; i++ {
		ch.Update(time.Second, time.Second)
	}

	assert.Equal(t, int32(4), helper.HeartBeatCalls.Load())
	assert.Equal(t, []int{1, 2, 3}, misses, "第一次心跳不触发事件")
	assert.Equal(t, 4, ch.MissHeartBeatCount())

	// 收到任何消息包都会清零丢失次数
	_, err := conn.remote.Write(frame([]byte("pong")))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ch.MissHeartBeatCount() == 0 }, time.Second, time.Millisecond)

	ch.Update(time.Second, time.Second)
	assert.Equal(t, []int{1, 2, 3}, misses)
	ch.Update(time.Second, time.Second)
	assert.Equal(t, []int{1, 2, 3, 1}, misses)

	t.Log("✅ 心跳丢失计数测试通过")
}

// TestChannel_HeartBeatNotSent 测试辅助器未发送心跳时不触发事件
func TestChannel_HeartBeatNotSent(t *testing.T) {
	ch, helper, _ := newTestChannel(t, pkgif.ServiceTCP)
	helper.SendHeartBeatFunc = func() bool { return false }
	ch.SetHeartBeatInterval(time.Second)
	connect(t, ch)

	var fired atomic.Int32
	ch.OnMissHeartBeat(func(pkgif.NetworkMissHeartBeatEvent) { fired.Add(1) })
	for i := 0; i < 3; i++ {
		ch.Update(time.Second, time.Second)
	}
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 3, ch.MissHeartBeatCount())
}

// TestChannel_ResetHeartBeatElapseOnReceive 测试收到消息包时重置流逝时间
func TestChannel_ResetHeartBeatElapseOnReceive(t *testing.T) {
	ch, _, conn := newTestChannel(t, pkgif.ServiceTCP)
	ch.SetHeartBeatInterval(time.Minute)
	connect(t, ch)

	ch.Update(time.Second, time.Second)
	_, err := conn.remote.Write(frame([]byte("a")))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ch.ReceivedPacketCount() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, time.Second, ch.HeartBeatElapse(), "默认只清零丢失次数")

	ch.SetResetHeartBeatElapseSecondsWhenReceivePacket(true)
	assert.True(t, ch.ResetHeartBeatElapseSecondsWhenReceivePacket())
	_, err = conn.remote.Write(frame([]byte("b")))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ch.HeartBeatElapse() == 0 }, time.Second, time.Millisecond)
}

// ============================================================================
// 关闭
// ============================================================================

// TestChannel_CloseIdempotent 测试重复关闭只触发一次 Closed
func TestChannel_CloseIdempotent(t *testing.T) {
	ch, _, conn := newTestChannel(t, pkgif.ServiceTCP)
	handler := &recordingHandler{id: 1}
	require.NoError(t, ch.RegisterHandler(handler))

	var closed atomic.Int32
	ch.OnClosed(func(pkgif.NetworkClosedEvent) { closed.Add(1) })
	connect(t, ch)
	require.NoError(t, ch.Send(&testPacket{id: 1}))

	ch.Close()
	assert.NotPanics(t, ch.Close)

	assert.Equal(t, int32(1), closed.Load())
	assert.Equal(t, int32(1), conn.closeCalls.Load())
	assert.False(t, ch.Connected())
	assert.Equal(t, 0, ch.SendPacketCount(), "关闭时清空发送队列")

	err := ch.RegisterHandler(&recordingHandler{id: 1})
	assert.ErrorIs(t, err, eventbus.ErrMultiHandler, "关闭后处理器仍然保留")

	t.Log("✅ 关闭幂等测试通过")
}

// TestChannel_CloseDuringDial 测试拨号过程中关闭，迟到的拨号结果被丢弃
func TestChannel_CloseDuringDial(t *testing.T) {
	conn := newFakeConn()
	dialing := make(chan struct{})
	release := make(chan struct{})
	dialer := &fakeDialer{DialFunc: func(context.Context, string, string) (net.Conn, error) {
		close(dialing)
		<-release
		return conn, nil
	}}
	ch, err := NewChannel("dial", pkgif.ServiceTCP, newFakeHelper(), testOptions(dialer))
	require.NoError(t, err)
	defer ch.Shutdown()

	var connected, closed atomic.Int32
	ch.OnConnected(func(pkgif.NetworkConnectedEvent) { connected.Add(1) })
	ch.OnClosed(func(pkgif.NetworkClosedEvent) { closed.Add(1) })

	require.NoError(t, ch.Connect(net.ParseIP("127.0.0.1"), 9000, nil))
	<-dialing
	ch.Close()
	close(release)

	require.Eventually(t, func() bool { return conn.closeCalls.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(0), connected.Load())
	assert.Equal(t, int32(0), closed.Load())
	assert.False(t, ch.Connected())
	assert.Nil(t, ch.Socket())

	t.Log("✅ 拨号中关闭测试通过")
}

// TestChannel_CloseInConnectedHandler 测试 Connected 处理器中关闭时 Closed 在 Connected 之后触发
func TestChannel_CloseInConnectedHandler(t *testing.T) {
	ch, _, conn := newTestChannel(t, pkgif.ServiceTCP)

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	ch.OnConnected(func(pkgif.NetworkConnectedEvent) {
		record("connected")
		ch.Close()
	})
	ch.OnClosed(func(pkgif.NetworkClosedEvent) { record("closed") })

	require.NoError(t, ch.Connect(net.ParseIP("127.0.0.1"), 9000, nil))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, time.Millisecond)

	assert.Equal(t, []string{"connected", "closed"}, events)
	assert.False(t, ch.Connected())
	assert.Equal(t, int32(1), conn.closeCalls.Load())
}

// TestChannel_ConcurrentCloseEventOrder 测试拨号完成时并发关闭，Closed 不会先于 Connected
func TestChannel_ConcurrentCloseEventOrder(t *testing.T) {
	for i := 0; i < 200; i++ {
		conn := newFakeConn()
		var ch *Channel
		dialer := &fakeDialer{DialFunc: func(context.Context, string, string) (net.Conn, error) {
			go ch.Close()
			return conn, nil
		}}
		var err error
		ch, err = NewChannel("race", pkgif.ServiceTCP, newFakeHelper(), testOptions(dialer))
		require.NoError(t, err)

		var mu sync.Mutex
		var events []string
		ch.OnConnected(func(pkgif.NetworkConnectedEvent) {
			mu.Lock()
			events = append(events, "connected")
			mu.Unlock()
		})
		ch.OnClosed(func(pkgif.NetworkClosedEvent) {
			mu.Lock()
			events = append(events, "closed")
			mu.Unlock()
		})

		require.NoError(t, ch.Connect(net.ParseIP("127.0.0.1"), 9000, nil))
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return conn.closeCalls.Load() >= 1 && len(events) != 1
		}, time.Second, time.Millisecond)

		mu.Lock()
		got := append([]string(nil), events...)
		mu.Unlock()
		if len(got) > 0 {
			require.Equal(t, []string{"connected", "closed"}, got, "第 %d 次", i)
		}
		assert.False(t, ch.Connected())
		require.NoError(t, ch.Shutdown())
	}
	t.Log("✅ 并发关闭事件顺序测试通过")
}

// TestChannel_Reconnect 测试重新连接先关闭旧连接
func TestChannel_Reconnect(t *testing.T) {
	helper := newFakeHelper()
	first, second := newFakeConn(), newFakeConn()
	var dials atomic.Int32
	dialer := &fakeDialer{DialFunc: func(context.Context, string, string) (net.Conn, error) {
		if dials.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	}}
	ch, err := NewChannel("r", pkgif.ServiceTCP, helper, testOptions(dialer))
	require.NoError(t, err)
	defer ch.Shutdown()

	var closed atomic.Int32
	ch.OnClosed(func(pkgif.NetworkClosedEvent) { closed.Add(1) })

	connect(t, ch)
	require.NoError(t, ch.Connect(net.ParseIP("127.0.0.1"), 9001, nil))
	require.Eventually(t, func() bool { return ch.Socket() == second && ch.Connected() }, time.Second, time.Millisecond)

	assert.Equal(t, int32(1), closed.Load())
	assert.True(t, first.closed.Load())
	assert.Equal(t, int32(2), helper.PrepareCalls.Load())
}

// TestChannel_ShutdownRejectsConnect 测试关闭后不能再连接
func TestChannel_ShutdownRejectsConnect(t *testing.T) {
	ch, _, _ := newTestChannel(t, pkgif.ServiceTCP)
	connect(t, ch)

	require.NoError(t, ch.Shutdown())
	assert.False(t, ch.Connected())
	assert.ErrorIs(t, ch.Connect(net.ParseIP("127.0.0.1"), 1, nil), ErrChannelShutdown)
}

// ============================================================================
// 端到端
// ============================================================================

// TestChannel_EndToEnd 测试合并发送与接收一个完整消息包
func TestChannel_EndToEnd(t *testing.T) {
	ch, _, conn := newTestChannel(t, pkgif.ServiceTCP)
	handler := &recordingHandler{id: 1}
	require.NoError(t, ch.RegisterHandler(handler))
	connect(t, ch)

	for _, size := range []int{10, 20, 5} {
		require.NoError(t, ch.Send(&testPacket{id: 1, data: bytes.Repeat([]byte{byte(size)}, size)}))
	}
	ch.Update(0, 0)
	require.Eventually(t, func() bool { return ch.SentPacketCount() == 3 }, time.Second, time.Millisecond)

	writes := conn.Writes()
	require.Len(t, writes, 1)
	assert.Len(t, writes[0], 35)
	assert.Equal(t, byte(10), writes[0][0])
	assert.Equal(t, byte(20), writes[0][10])
	assert.Equal(t, byte(5), writes[0][30])

	_, err := conn.remote.Write([]byte{0, 0, 0, 12})
	require.NoError(t, err)
	_, err = conn.remote.Write(bytes.Repeat([]byte{7}, 12))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ch.ReceivePacketCount() == 1 }, time.Second, time.Millisecond)

	ch.Update(0, 0)
	require.Len(t, handler.Packets(), 1)
	assert.Len(t, handler.Packets()[0].data, 12)

	s := ch.current()
	require.NotNil(t, s)
	assert.True(t, s.receive.ExpectingHeader(), "分发后重新准备读取包头")
	assert.Equal(t, 0, s.receive.offset)

	t.Log("✅ 端到端测试通过")
}

// TestChannel_RealTCP 测试真实 TCP 连接
func TestChannel_RealTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		received <- buf
		_, _ = conn.Write(frame([]byte("pong")))
		_, _ = io.Copy(io.Discard, conn)
	}()

	opts := DefaultOptions()
	ch, err := NewChannel("tcp", pkgif.ServiceTCP, newFakeHelper(), opts)
	require.NoError(t, err)
	defer ch.Shutdown()

	handler := &recordingHandler{id: 1}
	require.NoError(t, ch.RegisterHandler(handler))

	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ch.Connect(addr.IP, addr.Port, nil))
	require.Eventually(t, ch.Connected, 2*time.Second, time.Millisecond)

	require.NoError(t, ch.Send(&testPacket{id: 1, data: []byte("ping")}))
	ch.Update(0, 0)

	select {
	case data := <-received:
		assert.Equal(t, []byte("ping"), data)
	case <-time.After(2 * time.Second):
		t.Fatal("服务端没有收到数据")
	}

	require.Eventually(t, func() bool {
		ch.Update(0, 0)
		return len(handler.Packets()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte("pong"), handler.Packets()[0].data)
}
