// Package webrequest 实现基于任务池的 Web 请求管理器
//
// 每个代理持有一个 WebRequestAgentHelper（默认是 HTTPHelper），一次处理一个请求。
// 没有请求体时使用 GET，否则使用 POST。请求处理中超过 Timeout 没有结果
// 则以 ErrTimeout 失败。
//
// 辅助器回调只把结果放入代理的收件箱，在 Manager.Update 中处理；
// 事件在释放管理器锁之后分发。
package webrequest

import log "github.com/dep2p/go-netkit/internal/util/logger"

var logger = log.Logger("core/webrequest")
