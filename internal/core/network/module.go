package network

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/metrics"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 统一配置（可选，缺省时使用默认网络配置）
	Config *config.Config `optional:"true"`

	// Reporter 指标上报（可选）
	Reporter metrics.Reporter `optional:"true"`

	// Dialer 拨号器（可选，测试中替换）
	Dialer Dialer `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Manager 网络管理器
	Manager *Manager

	// NetworkManager 网络管理器接口
	NetworkManager pkgif.NetworkManager

	// Updater 注册到驱动循环
	Updater pkgif.Updater `group:"updaters"`
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) ModuleOutput {
	var opts Options
	if input.Config != nil {
		opts = OptionsFromConfig(&input.Config.Network)
	} else {
		opts = DefaultOptions()
	}
	opts.Reporter = input.Reporter
	opts.Dialer = input.Dialer

	manager := NewManager(opts)
	return ModuleOutput{
		Manager:        manager,
		NetworkManager: manager,
		Updater:        manager,
	}
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC      fx.Lifecycle
	Manager *Manager
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			logger.Info("网络模块停止")
			return input.Manager.Shutdown()
		},
	})
}

// 模块元信息常量
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "network"
	// Description 模块描述
	Description = "TCP 网络频道与网络管理器"
)
