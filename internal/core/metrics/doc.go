// Package metrics 提供监控指标收集
//
// metrics 模块为网络频道、任务池与下载管理器提供：
//   - Prometheus 指标（独立 Registry，Handler 暴露 /metrics）
//   - 带宽统计（全局/按频道），基于滑动窗口的速率计算
//   - 周期性指标快照日志
//
// # 快速开始
//
//	collector := metrics.NewCollector("netkit", nil)
//
//	// 网络频道完成一次合并发送
//	collector.PacketsSent("game", 3, 35)
//	collector.PacketReceived("game", 16)
//
//	// 获取统计
//	stats := collector.Bandwidth().Totals()
//	fmt.Printf("In: %d, Out: %d\n", stats.TotalIn, stats.TotalOut)
//
//	http.Handle("/metrics", collector.Handler())
//
// # Reporter
//
// 各组件只依赖 Reporter 接口。指标被禁用时使用 Discard。
//
// # Fx 模块
//
//	app := fx.New(
//	    fx.Supply(config.NewConfig()),
//	    metrics.Module,
//	    fx.Invoke(func(reporter metrics.Reporter) {
//	        reporter.PacketsSent("game", 1, 10)
//	    }),
//	)
//
// # 时钟
//
// 速率计算与快照使用 benbjohnson/clock，测试中可注入 clock.NewMock()。
package metrics
