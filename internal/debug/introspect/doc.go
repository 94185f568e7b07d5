// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供 JSON 格式的诊断信息和 Prometheus 指标，用于调试和监控。
//
// # 端点
//
//	GET /debug/introspect           - 完整诊断报告 (JSON)
//	GET /debug/introspect/channels  - 网络频道状态
//	GET /debug/introspect/tasks     - 下载与 Web 请求任务池状态
//	GET /debug/introspect/bandwidth - 带宽统计
//	GET /debug/introspect/runtime   - 运行时信息
//	GET /metrics                    - Prometheus 指标
//	GET /debug/pprof/*              - Go pprof 端点
//	GET /health                     - 健康检查
//
// # 使用示例
//
//	server := introspect.New(introspect.Config{
//	    Addr:    "127.0.0.1:6060",
//	    Network: networkManager,
//	})
//	server.Start(ctx)
//	defer server.Stop()
//
// 通过 config.Metrics.ListenAddr 配置启用。
package introspect
