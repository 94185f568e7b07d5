package metrics

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-netkit/config"
)

// Config 指标配置
type Config struct {
	// Enabled 是否启用指标收集
	Enabled bool

	// Namespace Prometheus 命名空间
	Namespace string

	// SnapshotInterval 快照日志间隔，0 表示不输出
	SnapshotInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Namespace: DefaultNamespace,
	}
}

// ConfigFromUnified 从统一配置创建指标配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Enabled:          cfg.Metrics.Enabled,
		Namespace:        cfg.Metrics.Namespace,
		SnapshotInterval: cfg.Metrics.SnapshotInterval.Duration(),
	}
}

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// Result Metrics 导出结果
type Result struct {
	fx.Out

	Collector *Collector
	Reporter  Reporter
	Snapshot  *SnapshotCollector
}

// Module 是 metrics 的 Fx 模块
//
// 指标被禁用时 Collector 与 Snapshot 为 nil，Reporter 为 Discard。
var Module = fx.Module("metrics",
	fx.Provide(NewFromParams),
	fx.Invoke(registerLifecycle),
)

// NewFromParams 从参数创建指标组件
func NewFromParams(p Params) Result {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if !cfg.Enabled {
		return Result{Reporter: Discard{}}
	}

	collector := NewCollector(cfg.Namespace, p.Clock)
	return Result{
		Collector: collector,
		Reporter:  collector,
		Snapshot:  NewSnapshotCollector(collector, p.Clock),
	}
}

type lifecycleParams struct {
	fx.In

	LC         fx.Lifecycle
	UnifiedCfg *config.Config      `optional:"true"`
	Snapshot   *SnapshotCollector `optional:"true"`
}

func registerLifecycle(p lifecycleParams) {
	interval := ConfigFromUnified(p.UnifiedCfg).SnapshotInterval
	if p.Snapshot == nil || interval <= 0 {
		return
	}

	p.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			p.Snapshot.Start(interval)
			return nil
		},
		OnStop: func(_ context.Context) error {
			p.Snapshot.Stop()
			return nil
		},
	})
}
