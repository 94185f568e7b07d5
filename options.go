package netkit

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-netkit/config"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// config 统一配置，各选项在其上覆盖
	config *config.Config

	// manualDrive 不加载驱动循环，由调用方调用 Kit.Update
	manualDrive bool

	// clock 驱动循环与速度计使用的时钟
	clock clock.Clock

	// fxOptions 用户追加的 Fx 选项
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{
		config: config.NewConfig(),
	}
}

// ============================================================================
//                              配置来源
// ============================================================================

// WithConfig 使用给定配置作为基础
//
// 配置会被克隆，之后对 cfg 的修改不影响 Kit。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("配置不能为空")
		}
		o.config = config.CloneConfig(cfg)
		return nil
	}
}

// WithConfigFile 从 JSON 或 YAML 文件加载配置作为基础
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config %q: %w", path, err)
		}
		o.config = cfg
		return nil
	}
}

// WithPreset 在当前配置上应用预设
//
// 支持 "mobile"、"desktop"、"server"、"minimal"。
func WithPreset(name string) Option {
	return func(o *options) error {
		return config.ApplyPreset(o.config, name)
	}
}

// ============================================================================
//                              覆盖选项
// ============================================================================

// WithMetricsAddr 启用指标并在 addr 上开启自省 HTTP 服务
func WithMetricsAddr(addr string) Option {
	return func(o *options) error {
		o.config.Metrics.Enabled = true
		o.config.Metrics.ListenAddr = addr
		return nil
	}
}

// WithLogFile 将日志输出到滚动日志文件
func WithLogFile(path string) Option {
	return func(o *options) error {
		o.config.Log.File.Path = path
		return nil
	}
}

// WithLogLevel 设置日志级别，格式同 NETKIT_LOG_LEVEL
func WithLogLevel(level string) Option {
	return func(o *options) error {
		o.config.Log.Level = level
		return nil
	}
}

// WithManualDrive 不启动驱动循环
//
// 调用方需要每帧调用 Kit.Update，适合已有主循环的宿主程序。
func WithManualDrive() Option {
	return func(o *options) error {
		o.manualDrive = true
		return nil
	}
}

// WithClock 设置时钟，测试中使用 clock.NewMock()
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		if clk == nil {
			return errors.New("时钟不能为空")
		}
		o.clock = clk
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
