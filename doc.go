// Package netkit 提供引擎无关的客户端网络工具包
//
// netkit 由按帧驱动的组件组成：TCP 网络频道、HTTP 下载与 Web 请求任务池。
// 所有组件的事件都在驱动线程的 Update 中分发，IO 在后台协程完成。
//
// # 核心概念
//
//   - Kit: 工具包门面，组装并管理所有组件的生命周期
//   - NetworkChannel: 带心跳与包编解码的 TCP 连接
//   - DownloadManager: 支持断点续传的下载任务池
//   - WebRequestManager: GET/POST 请求任务池
//   - Loop: 驱动循环，按帧调用各组件的 Update
//
// # 快速开始
//
//	import (
//	    "github.com/dep2p/go-netkit"
//	    "github.com/dep2p/go-netkit/pkg/lib/packet"
//	)
//
//	kit, err := netkit.Start(ctx, netkit.WithPreset("desktop"))
//	if err != nil {
//	    return err
//	}
//	defer kit.Close()
//
//	codec := packet.NewCodec()
//	ch, _ := kit.Network().CreateNetworkChannel("game", pkgif.ServiceTCP, codec)
//	ch.Connect(net.ParseIP("127.0.0.1"), 9000, nil)
//
// 已有主循环的宿主程序使用 WithManualDrive，并每帧调用 Kit.Update。
//
// # 文件组织
//
//   - kit.go: Kit 结构、组件访问与手动驱动
//   - kit_lifecycle.go: Start / Stop / Close
//   - fx.go: Fx 模块组装
//   - options.go: 用户选项
//   - errors.go: 公共错误
//   - version.go: 版本信息
package netkit
