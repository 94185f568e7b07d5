// Package eventbus 实现进程内事件分发
//
// 提供两种分发方式：
//   - Event[T]：同步多播，Fire 在调用方协程上依次调用所有订阅者，
//     订阅数量可查询（网络频道据此决定错误是走事件还是直接 panic）
//   - Pool[E]：按事件编号分发的延迟事件池，Fire 可在任意协程调用，
//     事件在驱动循环调用 Update 时统一分发；FireNow 立即分发
//
// # 快速开始
//
//	var connected eventbus.Event[ConnectedEvent]
//	unsubscribe := connected.Subscribe(func(e ConnectedEvent) { ... })
//	defer unsubscribe()
//	connected.Fire(ConnectedEvent{...})
//
//	pool := eventbus.NewPool[Packet](eventbus.AllowNoHandler)
//	pool.Subscribe(1, func(sender any, p Packet) { ... })
//	pool.Fire(channel, packet)   // IO 协程
//	pool.Update()                // 驱动循环
//
// # 并发安全
//
//   - 订阅/取消订阅：Mutex 保护，分发时复制订阅者快照，
//     因此订阅者可以在回调中取消订阅
//   - Pool 的事件队列：独立 Mutex 保护，Update 先整体取出再分发，
//     不在持锁状态下调用处理器
package eventbus
