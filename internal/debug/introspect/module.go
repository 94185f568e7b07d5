package introspect

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/metrics"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// Module 返回自省服务 Fx 模块
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// IntrospectParams 自省服务依赖参数
type IntrospectParams struct {
	fx.In

	UnifiedCfg *config.Config          `optional:"true"`
	Network    pkgif.NetworkManager    `optional:"true"`
	Download   pkgif.DownloadManager   `optional:"true"`
	WebRequest pkgif.WebRequestManager `optional:"true"`
	Collector  *metrics.Collector      `optional:"true"`
}

// IntrospectOutput 自省服务输出
type IntrospectOutput struct {
	fx.Out

	Server *Server `optional:"true"`
}

// ConfigFromUnified 从统一配置创建自省服务配置
//
// 未配置 metrics.listen_addr 时返回 nil。
func ConfigFromUnified(cfg *config.Config) *Config {
	if cfg == nil || cfg.Metrics.ListenAddr == "" {
		return nil
	}
	return &Config{
		Addr: cfg.Metrics.ListenAddr,
	}
}

// NewFromParams 从参数创建自省服务
func NewFromParams(params IntrospectParams) IntrospectOutput {
	cfg := ConfigFromUnified(params.UnifiedCfg)
	if cfg == nil {
		return IntrospectOutput{} // 禁用时返回空输出
	}

	cfg.Network = params.Network
	cfg.Download = params.Download
	cfg.WebRequest = params.WebRequest
	cfg.Collector = params.Collector

	return IntrospectOutput{
		Server: New(*cfg),
	}
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, server *Server) {
	if server == nil {
		return // 禁用时跳过
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return server.Stop()
		},
	})
}
