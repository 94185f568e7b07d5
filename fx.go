package netkit

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	internalconfig "github.com/dep2p/go-netkit/internal/config"
	"github.com/dep2p/go-netkit/internal/core/download"
	"github.com/dep2p/go-netkit/internal/core/loop"
	"github.com/dep2p/go-netkit/internal/core/metrics"
	"github.com/dep2p/go-netkit/internal/core/network"
	"github.com/dep2p/go-netkit/internal/core/webrequest"
	"github.com/dep2p/go-netkit/internal/debug/introspect"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置：校验并提供统一配置
//  2. 指标：Collector / Reporter，禁用时 Reporter 为 Discard
//  3. 管理器：Network → Download → WebRequest
//  4. 驱动：Loop（手动驱动时不加载）
//  5. 调试：自省 HTTP 服务（配置监听地址时启用）
func buildFxApp(opts *options, kit *Kit) *fx.App {
	modules := []fx.Option{
		internalconfig.Module(opts.config),
		metrics.Module,
		network.Module(),
		download.Module(),
		webrequest.Module(),
		introspect.Module(),
	}

	if opts.clock != nil {
		clk := opts.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}

	if !opts.manualDrive {
		modules = append(modules,
			loop.Module(),
			fx.Populate(&kit.loop),
		)
	}

	modules = append(modules, opts.fxOptions...)

	// 注入组件到 Kit
	modules = append(modules,
		fx.Populate(
			&kit.config,
			&kit.network,
			&kit.download,
			&kit.webRequest,
			&kit.collector,
			&kit.introspect,
		),
		fx.Invoke(func(p updatersParams) {
			kit.updaters = p.Updaters
		}),
	)

	// fx 内部事件不输出
	modules = append(modules,
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.New(modules...)
}

// updatersParams 收集所有注册到驱动循环的组件
type updatersParams struct {
	fx.In

	Updaters []pkgif.Updater `group:"updaters"`
}
