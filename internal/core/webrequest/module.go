package webrequest

import (
	"context"
	"net/http"

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

	// Config 统一配置（可选）
	Config *config.Config `optional:"true"`

	// Reporter 指标上报（可选）
	Reporter metrics.Reporter `optional:"true"`

	// Client HTTP 客户端（可选）
	Client *http.Client `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Manager Web 请求管理器
	Manager *Manager

	// WebRequestManager Web 请求管理器接口
	WebRequestManager pkgif.WebRequestManager

	// Updater 注册到驱动循环
	Updater pkgif.Updater `group:"updaters"`
}

// ProvideServices 提供模块服务
//
// 按配置的 AgentCount 创建 HTTPHelper 代理。
func ProvideServices(input ModuleInput) ModuleOutput {
	cfg := config.DefaultWebRequestConfig()
	if input.Config != nil {
		cfg = input.Config.WebRequest
	}

	opts := OptionsFromConfig(cfg)
	opts.Reporter = input.Reporter

	manager := NewManager(opts)
	for i := 0; i < cfg.AgentCount; i++ {
		manager.AddWebRequestAgentHelper(NewHTTPHelper(
			WithClient(input.Client),
			WithUserAgent(cfg.UserAgent),
		))
	}

	return ModuleOutput{
		Manager:           manager,
		WebRequestManager: manager,
		Updater:           manager,
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
			logger.Info("Web 请求模块停止")
			return input.Manager.Shutdown()
		},
	})
}

// 模块元信息常量
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "webrequest"
	// Description 模块描述
	Description = "基于任务池的 HTTP GET/POST 请求管理器"
)
