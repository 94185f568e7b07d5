// Package network 实现基于 TCP 的网络频道与网络管理器
//
// 网络频道是具名的长连接。发送的消息包在每次 Update 中被整体序列化到
// 一个缓冲区并由一次写入发出；接收严格按 包头 → 包体 → 包头 分帧，
// 包头与包体的格式由 NetworkChannelHelper 定义。
//
// # 服务类型
//
//   - ServiceTCP：接收协程完成分帧与反序列化，消息包在 Update 中分发
//   - ServiceTCPWithSyncReceive：接收协程只搬运字节，分帧、反序列化与分发都在 Update 中完成
//
// # 错误
//
// 频道或其管理器有错误订阅者时，错误以事件形式报告并使连接失效；
// 没有订阅者时，Connect 与 Send 返回 *NetworkError，Update 与 IO 路径上的错误
// 在驱动协程上以 panic(*NetworkError) 抛出。
//
// # 心跳
//
// 每达到一次心跳间隔，丢失次数先加一，再调用 SendHeartBeat；
// 收到任何消息包都会清零丢失次数。第 n 次心跳报告的丢失次数为 n-1。
package network

import log "github.com/dep2p/go-netkit/internal/util/logger"

var logger = log.Logger("core/network")
