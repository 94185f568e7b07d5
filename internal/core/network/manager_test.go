package network

import (
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-netkit/config"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

func newTestManager(conn net.Conn) *Manager {
	return NewManager(testOptions(dialerFor(conn)))
}

// TestManager_CreateNetworkChannel 测试创建频道的校验
func TestManager_CreateNetworkChannel(t *testing.T) {
	m := newTestManager(newFakeConn())
	defer m.Shutdown()

	_, err := m.CreateNetworkChannel("a", pkgif.ServiceTCP, nil)
	assert.ErrorIs(t, err, ErrNilHelper)

	helper := newFakeHelper()
	helper.HeaderLength = -1
	_, err = m.CreateNetworkChannel("a", pkgif.ServiceTCP, helper)
	assert.ErrorIs(t, err, ErrInvalidPacketHeaderLength)

	_, err = m.CreateNetworkChannel("a", pkgif.ServiceType(9), newFakeHelper())
	assert.ErrorIs(t, err, ErrUnsupportedServiceType)

	ch, err := m.CreateNetworkChannel("a", pkgif.ServiceTCP, newFakeHelper())
	require.NoError(t, err)
	assert.Equal(t, "a", ch.Name())

	_, err = m.CreateNetworkChannel("a", pkgif.ServiceTCPWithSyncReceive, newFakeHelper())
	assert.ErrorIs(t, err, ErrChannelExists)

	_, err = m.CreateNetworkChannel("b", pkgif.ServiceTCPWithSyncReceive, newFakeHelper())
	require.NoError(t, err)

	assert.Equal(t, 2, m.NetworkChannelCount())
	assert.True(t, m.HasNetworkChannel("a"))
	assert.False(t, m.HasNetworkChannel("c"))

	got, ok := m.NetworkChannel("a")
	require.True(t, ok)
	assert.Same(t, ch, got)
	_, ok = m.NetworkChannel("c")
	assert.False(t, ok)

	channels := m.NetworkChannels()
	require.Len(t, channels, 2)
	assert.Equal(t, "a", channels[0].Name())
	assert.Equal(t, "b", channels[1].Name())

	t.Log("✅ 管理器创建频道测试通过")
}

// TestManager_DestroyNetworkChannel 测试销毁频道
func TestManager_DestroyNetworkChannel(t *testing.T) {
	m := newTestManager(newFakeConn())
	defer m.Shutdown()

	helper := newFakeHelper()
	ch, err := m.CreateNetworkChannel("a", pkgif.ServiceTCP, helper)
	require.NoError(t, err)

	var closed atomic.Int32
	m.OnClosed(func(pkgif.NetworkClosedEvent) { closed.Add(1) })

	require.NoError(t, ch.Connect(net.ParseIP("127.0.0.1"), 1, nil))
	require.Eventually(t, ch.Connected, time.Second, time.Millisecond)

	assert.True(t, m.DestroyNetworkChannel("a"))
	assert.False(t, m.DestroyNetworkChannel("a"))
	assert.False(t, m.HasNetworkChannel("a"))
	assert.Equal(t, int32(1), helper.ShutdownCalls.Load())
	assert.False(t, ch.Connected())
	assert.Equal(t, int32(0), closed.Load(), "销毁前已取消事件转发")
}

// TestManager_ForwardsEvents 测试频道事件转发到管理器
func TestManager_ForwardsEvents(t *testing.T) {
	conn := newFakeConn()
	m := newTestManager(conn)
	defer m.Shutdown()

	connected := make(chan pkgif.NetworkConnectedEvent, 1)
	m.OnConnected(func(e pkgif.NetworkConnectedEvent) { connected <- e })
	var closed, misses atomic.Int32
	m.OnClosed(func(pkgif.NetworkClosedEvent) { closed.Add(1) })
	m.OnMissHeartBeat(func(pkgif.NetworkMissHeartBeatEvent) { misses.Add(1) })

	ch, err := m.CreateNetworkChannel("game", pkgif.ServiceTCP, newFakeHelper())
	require.NoError(t, err)
	ch.SetHeartBeatInterval(time.Second)

	require.NoError(t, ch.Connect(net.ParseIP("127.0.0.1"), 1, "ud"))
	select {
	case e := <-connected:
		assert.Equal(t, "ud", e.UserData)
		assert.Equal(t, "game", e.Channel.Name())
	case <-time.After(time.Second):
		t.Fatal("管理器没有收到 Connected")
	}
	require.Eventually(t, ch.Connected, time.Second, time.Millisecond)

	m.Update(time.Second, time.Second)
	m.Update(time.Second, time.Second)
	assert.Equal(t, int32(1), misses.Load())

	ch.Close()
	assert.Equal(t, int32(1), closed.Load())
}

// TestManager_ErrorSubscriber 测试管理器的错误订阅者阻止抛出
func TestManager_ErrorSubscriber(t *testing.T) {
	m := NewManager(testOptions(freshDialer()))
	defer m.Shutdown()

	helper := newFakeHelper()
	helper.SerializeFunc = func(pkgif.Packet, io.Writer) error { return errors.New("bad packet") }
	ch, err := m.CreateNetworkChannel("game", pkgif.ServiceTCP, helper)
	require.NoError(t, err)

	var codes []pkgif.NetworkErrorCode
	unsubscribe := m.OnError(func(e pkgif.NetworkErrorEvent) { codes = append(codes, e.Code) })

	require.NoError(t, ch.Connect(net.ParseIP("127.0.0.1"), 1, nil))
	require.Eventually(t, ch.Connected, time.Second, time.Millisecond)
	require.NoError(t, ch.Send(&testPacket{id: 1}))

	assert.NotPanics(t, func() { m.Update(0, 0) })
	assert.Equal(t, []pkgif.NetworkErrorCode{pkgif.NetworkErrorSerialize}, codes)

	// 取消订阅后错误被抛出
	unsubscribe()
	require.NoError(t, ch.Connect(net.ParseIP("127.0.0.1"), 1, nil))
	require.Eventually(t, ch.Connected, time.Second, time.Millisecond)
	require.NoError(t, ch.Send(&testPacket{id: 1}))

	e := catchNetworkError(func() { m.Update(0, 0) })
	require.NotNil(t, e)
	assert.Equal(t, pkgif.NetworkErrorSerialize, e.Code)
}

// TestManager_Shutdown 测试关闭管理器
func TestManager_Shutdown(t *testing.T) {
	m := newTestManager(newFakeConn())

	helpers := []*fakeHelper{newFakeHelper(), newFakeHelper()}
	for i, h := range helpers {
		_, err := m.CreateNetworkChannel(string(rune('a'+i)), pkgif.ServiceTCP, h)
		require.NoError(t, err)
	}

	require.NoError(t, m.Shutdown())
	require.NoError(t, m.Shutdown())
	assert.Equal(t, 0, m.NetworkChannelCount())
	for _, h := range helpers {
		assert.Equal(t, int32(1), h.ShutdownCalls.Load())
	}

	_, err := m.CreateNetworkChannel("c", pkgif.ServiceTCP, newFakeHelper())
	assert.ErrorIs(t, err, ErrManagerShutdown)
}

// TestModule 测试 fx 模块
func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Network.HeartBeatInterval = config.Duration(7 * time.Second)

	var manager pkgif.NetworkManager
	var concrete *Manager
	app := fxtest.New(t,
		fx.Supply(cfg),
		fx.Provide(func() Dialer { return dialerFor(newFakeConn()) }),
		Module(),
		fx.Populate(&manager, &concrete),
	)
	app.RequireStart()

	assert.Same(t, concrete, manager)
	ch, err := manager.CreateNetworkChannel("game", pkgif.ServiceTCP, newFakeHelper())
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, ch.HeartBeatInterval())

	app.RequireStop()
	assert.Equal(t, 0, manager.NetworkChannelCount())
}
