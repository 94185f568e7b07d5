package network

import (
	"bytes"
	"errors"
	"io"

	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// ============================================================================
//                              分帧
// ============================================================================

// processFrame 处理已读满的包头或包体，返回 false 表示发生错误
func (c *Channel) processFrame(s *session, dispatch func(pkgif.Packet), onDriver bool) bool {
	rs := s.receive
	if rs.ExpectingHeader() {
		header, customErrorData, err := c.helper.DeserializePacketHeader(bytes.NewReader(rs.Bytes()))
		c.raiseCustom(customErrorData)
		if err != nil || header == nil || isNil(header) {
			c.raise(newNetworkError(c, pkgif.NetworkErrorDeserializePacketHeader, "Packet header is invalid.", err), s, onDriver)
			return false
		}

		length := header.PacketLength()
		if c.headerLen == 0 && length <= 0 {
			c.raise(newNetworkError(c, pkgif.NetworkErrorDeserializePacketHeader, "Empty packet header declares an empty packet.", nil), s, onDriver)
			return false
		}

		rs.PrepareForPacket(header)
		if length > 0 {
			return true
		}
	}

	return c.processPacket(s, dispatch, onDriver)
}

// processPacket 反序列化包体并分发，随后重新准备读取包头
func (c *Channel) processPacket(s *session, dispatch func(pkgif.Packet), onDriver bool) bool {
	c.heartBeat.Reset(c.resetOnReceive.Load())

	rs := s.receive
	body := rs.Bytes()
	packet, customErrorData, err := c.helper.DeserializePacket(rs.Header(), bytes.NewReader(body))
	c.raiseCustom(customErrorData)
	if err != nil {
		c.raise(newNetworkError(c, pkgif.NetworkErrorDeserializePacket, "", err), s, onDriver)
		return false
	}

	size := int64(c.headerLen + len(body))
	rs.PrepareForPacketHeader(c.headerLen)

	if packet != nil && !isNil(packet) {
		c.receivedPackets.Add(1)
		c.reporter.PacketReceived(c.name, size)
		dispatch(packet)
	}
	return true
}

// ============================================================================
//                              异步接收
// ============================================================================

// receiveLoop 在 IO 协程上读取、分帧并把消息包放入接收池
func (c *Channel) receiveLoop(s *session) {
	rs := s.receive
	dispatch := func(packet pkgif.Packet) { c.receivePool.Fire(c, packet) }

	for {
		for rs.Full() {
			if !c.processFrame(s, dispatch, false) {
				return
			}
		}

		n, err := s.conn.Read(rs.Remaining())
		if n > 0 {
			rs.Advance(n)
			if err == nil {
				continue
			}
			for rs.Full() {
				if !c.processFrame(s, dispatch, false) {
					return
				}
			}
		}

		if !c.isCurrent(s) {
			return
		}
		if err == nil || errors.Is(err, io.EOF) {
			_ = c.closeSession(s)
			return
		}
		c.raise(newNetworkError(c, pkgif.NetworkErrorReceive, "", err), s, false)
		return
	}
}

// ============================================================================
//                              同步接收
// ============================================================================

// pumpLoop 只把原始字节搬运到收件箱，分帧与分发在 Update 中完成
func (c *Channel) pumpLoop(s *session) {
	buf := make([]byte, c.opts.ReceiveBufferSize)
	for {
		n, err := s.conn.Read(buf)

		s.inboxMu.Lock()
		s.inbox = append(s.inbox, buf[:n]...)
		switch {
		case err == nil && n > 0:
		case err == nil || errors.Is(err, io.EOF):
			s.inboxEOF = true
		default:
			s.inboxErr = err
		}
		s.inboxMu.Unlock()

		if err != nil || n == 0 {
			return
		}
	}
}

// processInbox 在驱动协程上处理收件箱中的字节
func (c *Channel) processInbox(s *session) {
	s.inboxMu.Lock()
	data := s.inbox
	s.inbox = nil
	eof, readErr := s.inboxEOF, s.inboxErr
	s.inboxEOF, s.inboxErr = false, nil
	s.inboxMu.Unlock()

	rs := s.receive
	dispatch := func(packet pkgif.Packet) {
		if err := c.receivePool.FireNow(c, packet); err != nil {
			logger.Warn("消息包没有处理器，已丢弃", "channel", c.name, "err", err)
		}
	}

	for {
		for rs.Full() {
			if !c.processFrame(s, dispatch, true) {
				return
			}
		}
		if len(data) == 0 {
			break
		}
		n := copy(rs.Remaining(), data)
		rs.Advance(n)
		data = data[n:]
	}

	if readErr != nil {
		if c.isCurrent(s) {
			c.raise(newNetworkError(c, pkgif.NetworkErrorReceive, "", readErr), s, true)
		}
		return
	}
	if eof {
		_ = c.closeSession(s)
	}
}
