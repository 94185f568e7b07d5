package network

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// ============================================================================
// 消息包
// ============================================================================

type testHeader struct {
	length int
}

func (h *testHeader) PacketLength() int { return h.length }

type testPacket struct {
	id   int
	data []byte
}

func (p *testPacket) ID() int { return p.id }

func frame(body []byte) []byte {
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out
}

// ============================================================================
// fakeHelper
// ============================================================================

// fakeHelper 4 字节大端长度包头；发送时原样写出 data
type fakeHelper struct {
	HeaderLength int

	SendHeartBeatFunc           func() bool
	SerializeFunc               func(packet pkgif.Packet, w io.Writer) error
	DeserializePacketHeaderFunc func(r io.Reader) (pkgif.PacketHeader, any, error)
	DeserializePacketFunc       func(header pkgif.PacketHeader, r io.Reader) (pkgif.Packet, any, error)

	InitializeCalls      atomic.Int32
	ShutdownCalls        atomic.Int32
	PrepareCalls         atomic.Int32
	HeartBeatCalls       atomic.Int32
	SerializeCalls       atomic.Int32
	DeserializeBodyCalls atomic.Int32

	mu          sync.Mutex
	bodyLengths []int
}

func newFakeHelper() *fakeHelper {
	return &fakeHelper{HeaderLength: 4}
}

func (h *fakeHelper) PacketHeaderLength() int           { return h.HeaderLength }
func (h *fakeHelper) Initialize(_ pkgif.NetworkChannel) { h.InitializeCalls.Add(1) }
func (h *fakeHelper) Shutdown()                         { h.ShutdownCalls.Add(1) }
func (h *fakeHelper) PrepareForConnecting()             { h.PrepareCalls.Add(1) }

func (h *fakeHelper) SendHeartBeat() bool {
	h.HeartBeatCalls.Add(1)
	if h.SendHeartBeatFunc != nil {
		return h.SendHeartBeatFunc()
	}
	return true
}

func (h *fakeHelper) Serialize(packet pkgif.Packet, w io.Writer) error {
	h.SerializeCalls.Add(1)
	if h.SerializeFunc != nil {
		return h.SerializeFunc(packet, w)
	}
	_, err := w.Write(packet.(*testPacket).data)
	return err
}

func (h *fakeHelper) DeserializePacketHeader(r io.Reader) (pkgif.PacketHeader, any, error) {
	if h.DeserializePacketHeaderFunc != nil {
		return h.DeserializePacketHeaderFunc(r)
	}
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, nil, err
	}
	return &testHeader{length: int(binary.BigEndian.Uint32(buf[:]))}, nil, nil
}

func (h *fakeHelper) DeserializePacket(header pkgif.PacketHeader, r io.Reader) (pkgif.Packet, any, error) {
	h.DeserializeBodyCalls.Add(1)
	if h.DeserializePacketFunc != nil {
		return h.DeserializePacketFunc(header, r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	h.mu.Lock()
	h.bodyLengths = append(h.bodyLengths, len(data))
	h.mu.Unlock()
	return &testPacket{id: 1, data: data}, nil, nil
}

func (h *fakeHelper) BodyLengths() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.bodyLengths...)
}

// ============================================================================
// fakeConn / fakeDialer
// ============================================================================

// fakeConn 记录每一次 Write 调用；远端数据通过 remote 写入
type fakeConn struct {
	WriteFunc func(b []byte) (int, error)

	reader *io.PipeReader
	remote *io.PipeWriter

	writeCalls atomic.Int32
	closeCalls atomic.Int32
	closed     atomic.Bool

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn() *fakeConn {
	r, w := io.Pipe()
	return &fakeConn{reader: r, remote: w}
}

func (c *fakeConn) Read(b []byte) (int, error) { return c.reader.Read(b) }

func (c *fakeConn) Write(b []byte) (int, error) {
	c.writeCalls.Add(1)
	n, err := len(b), error(nil)
	if c.WriteFunc != nil {
		n, err = c.WriteFunc(b)
	}
	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), b[:n]...))
	c.mu.Unlock()
	return n, err
}

func (c *fakeConn) Close() error {
	c.closeCalls.Add(1)
	if !c.closed.CompareAndSwap(false, true) {
		return net.ErrClosed
	}
	return c.reader.Close()
}

func (c *fakeConn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

func (c *fakeConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
}

func (c *fakeConn) SetDeadline(time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

type fakeDialer struct {
	DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

	calls atomic.Int32
	mu    sync.Mutex
	addrs []string
}

func dialerFor(conn net.Conn) *fakeDialer {
	return &fakeDialer{DialFunc: func(context.Context, string, string) (net.Conn, error) {
		return conn, nil
	}}
}

// freshDialer 每次拨号返回新的连接
func freshDialer() *fakeDialer {
	return &fakeDialer{DialFunc: func(context.Context, string, string) (net.Conn, error) {
		return newFakeConn(), nil
	}}
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.calls.Add(1)
	d.mu.Lock()
	d.addrs = append(d.addrs, address)
	d.mu.Unlock()
	return d.DialFunc(ctx, network, address)
}

// ============================================================================
// 处理器与辅助函数
// ============================================================================

type recordingHandler struct {
	id int

	mu      sync.Mutex
	packets []*testPacket
}

func (h *recordingHandler) ID() int { return h.id }

func (h *recordingHandler) Handle(_ pkgif.NetworkChannel, packet pkgif.Packet) {
	h.mu.Lock()
	h.packets = append(h.packets, packet.(*testPacket))
	h.mu.Unlock()
}

func (h *recordingHandler) Packets() []*testPacket {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*testPacket(nil), h.packets...)
}

var errTimeout = &timeoutError{}

type timeoutError struct{}

func (*timeoutError) Error() string   { return "i/o timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }

func testOptions(d Dialer) Options {
	return Options{
		Dialer:            d,
		SendTimeout:       time.Second,
		ReceiveBufferSize: 64,
	}
}

func newTestChannel(t *testing.T, serviceType pkgif.ServiceType) (*Channel, *fakeHelper, *fakeConn) {
	t.Helper()

	helper := newFakeHelper()
	conn := newFakeConn()
	ch, err := NewChannel("test", serviceType, helper, testOptions(dialerFor(conn)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Shutdown() })
	return ch, helper, conn
}

func connect(t *testing.T, ch *Channel) {
	t.Helper()
	require.NoError(t, ch.Connect(net.ParseIP("127.0.0.1"), 9000, "user-data"))
	require.Eventually(t, ch.Connected, time.Second, time.Millisecond)
}

// catchNetworkError 执行 fn 并返回其抛出的 *NetworkError
func catchNetworkError(fn func()) (e *NetworkError) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok || !errors.As(err, &e) {
				panic(r)
			}
		}
	}()
	fn()
	return nil
}

func inboxLen(ch *Channel) int {
	s := ch.current()
	if s == nil {
		return 0
	}
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()
	return len(s.inbox)
}
