// Package download 实现基于任务池的文件下载管理器
//
// 每个下载代理持有一个 DownloadAgentHelper（默认是 HTTPHelper），
// 每次只处理一个下载任务：
//   - 数据先写入 <path>.download，下载完成后重命名为 <path>
//   - 已存在的 <path>.download 视为断点，按其长度发起 Range 请求续传
//   - 缓冲达到 FlushSize 字节时写入磁盘
//   - 任务处理中连续 Timeout 没有收到数据则以 ErrTimeout 失败
//
// # 并发模型
//
// 辅助器在自己的协程上回调 DownloadSink，回调只把结果放入代理的收件箱；
// 收件箱在 Manager.Update 中（驱动循环协程上）被取出处理。
// 下载事件在 Manager.Update 返回前、释放管理器锁之后分发，
// 事件处理函数可以再次调用 Manager。
package download

import log "github.com/dep2p/go-netkit/internal/util/logger"

var logger = log.Logger("core/download")
