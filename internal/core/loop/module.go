package loop

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-netkit/config"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 统一配置（可选）
	Config *config.Config `optional:"true"`

	// Clock 时钟（可选，测试中注入 mock）
	Clock clock.Clock `optional:"true"`
}

// ProvideLoop 提供驱动循环
func ProvideLoop(input ModuleInput) *Loop {
	cfg := config.DefaultLoopConfig()
	if input.Config != nil {
		cfg = input.Config.Loop
	}
	return FromConfig(cfg, WithClock(input.Clock))
}

// Module 返回 fx 模块配置
//
// 其他模块通过 group:"updaters" 提供的组件会被注册到循环中。
func Module() fx.Option {
	return fx.Module(Name,
		fx.Provide(ProvideLoop),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC       fx.Lifecycle
	Loop     *Loop
	Updaters []pkgif.Updater `group:"updaters"`
}

func registerLifecycle(input lifecycleInput) {
	var unregister []func()
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			for _, u := range input.Updaters {
				unregister = append(unregister, input.Loop.Register(u))
			}
			// OnStart 的 ctx 在启动完成后即失效，循环使用独立的 ctx
			return input.Loop.Start(context.Background())
		},
		OnStop: func(_ context.Context) error {
			input.Loop.Stop()
			for _, fn := range unregister {
				fn()
			}
			return nil
		},
	})
}

// 模块元信息常量
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "loop"
	// Description 模块描述
	Description = "驱动循环，按帧调用各组件的 Update"
)
