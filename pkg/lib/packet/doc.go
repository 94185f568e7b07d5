// Package packet 提供基于 protobuf 的网络频道消息包编解码
//
// 线格式：
//
//	+--------+--------+----------+-----------------+
//	| id u16 | flag   | len u32  | body (len 字节) |
//	+--------+--------+----------+-----------------+
//
// 所有整数为大端序。body 是 protobuf 序列化后的消息，flag&FlagCompressed
// 表示 body 经过 s2 压缩。心跳是只有包头、长度为 0 的消息包。
//
// Codec 实现 NetworkChannelHelper，可直接用于创建网络频道：
//
//	codec := packet.NewCodec(packet.WithCompressThreshold(512))
//	_ = codec.Register(1, func() proto.Message { return &wrapperspb.StringValue{} })
//	ch, _ := manager.CreateNetworkChannel("game", interfaces.ServiceTCP, codec)
//	_ = ch.RegisterHandler(packet.HandlerFunc(1, func(ch interfaces.NetworkChannel, m *packet.Message) {
//	    fmt.Println(m.Body)
//	}))
package packet
