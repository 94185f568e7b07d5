// Package interfaces 定义 netkit 的公共接口
//
// 采用扁平命名（一个接口文件 = 一个实现目录）：
//   - task.go           - 任务、任务代理、任务信息快照与 Updater
//   - network.go        - 网络频道、频道辅助器、消息包与网络事件（internal/core/network）
//   - download.go       - 下载管理器与下载代理辅助器（internal/core/download）
//   - webrequest.go     - Web 请求管理器与请求代理辅助器（internal/core/webrequest）
//
// # 依赖方向
//
//	netkit (Kit) → internal/core/* → pkg/interfaces
//
// 禁止反向依赖。
//
// # 设计原则
//
// 本包只包含接口、事件与值类型。下载与 Web 请求事件在驱动线程的 Update 中分发；
// 网络事件在发生的协程上触发，见 ServiceType。
package interfaces
