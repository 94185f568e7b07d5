package netkit

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/loop"
	"github.com/dep2p/go-netkit/internal/core/metrics"
	"github.com/dep2p/go-netkit/internal/debug/introspect"
	log "github.com/dep2p/go-netkit/internal/util/logger"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

var logger = log.Logger("netkit")

// ════════════════════════════════════════════════════════════════════════════
//                              Kit 状态
// ════════════════════════════════════════════════════════════════════════════

// KitState Kit 状态
type KitState int

const (
	// StateIdle 空闲状态（已创建，未启动）
	StateIdle KitState = iota

	// StateStarting 启动中（Fx App 启动中）
	StateStarting

	// StateRunning 运行中
	StateRunning

	// StateStopping 停止中
	StateStopping

	// StateStopped 已停止
	StateStopped
)

// String 返回状态的字符串表示
func (s KitState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Kit
// ════════════════════════════════════════════════════════════════════════════

// Kit 网络工具包门面
//
// Kit 组装网络频道管理器、下载管理器、Web 请求管理器与驱动循环，
// 是使用者与 netkit 交互的主入口。
//
// 使用示例：
//
//	kit, err := netkit.New(netkit.WithPreset("desktop"))
//	if err != nil {
//	    return err
//	}
//	defer kit.Close()
//
//	if err := kit.Start(ctx); err != nil {
//	    return err
//	}
//
//	ch, _ := kit.Network().CreateNetworkChannel("game", pkgif.ServiceTCP, packet.NewCodec())
//	ch.Connect(net.ParseIP("127.0.0.1"), 9000, nil)
type Kit struct {
	// ────────────────────────────────────────────────────────────────────────
	// 配置
	// ────────────────────────────────────────────────────────────────────────

	opts *options
	app  *fx.App

	// logCloser 滚动日志文件，未配置时为 nil
	logCloser io.Closer

	// ────────────────────────────────────────────────────────────────────────
	// 组件（由 Fx 注入）
	// ────────────────────────────────────────────────────────────────────────

	config     *config.Config
	network    pkgif.NetworkManager
	download   pkgif.DownloadManager
	webRequest pkgif.WebRequestManager
	collector  *metrics.Collector
	introspect *introspect.Server
	loop       *loop.Loop
	updaters   []pkgif.Updater

	// ────────────────────────────────────────────────────────────────────────
	// 生命周期状态
	// ────────────────────────────────────────────────────────────────────────

	mu     sync.RWMutex
	state  KitState
	closed bool
}

var _ pkgif.Updater = (*Kit)(nil)

// New 创建 Kit
//
// 应用选项、配置日志并构建 Fx 应用，不启动任何组件。
func New(opts ...Option) (*Kit, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	closer, err := applyLogConfig(o.config.Log)
	if err != nil {
		return nil, fmt.Errorf("configure log: %w", err)
	}

	kit := &Kit{
		opts:      o,
		logCloser: closer,
	}

	kit.app = buildFxApp(o, kit)
	if err := kit.app.Err(); err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("build fx app: %w", err)
	}

	return kit, nil
}

// Start 快捷启动函数
//
// 等价于 New() + Start()。
func Start(ctx context.Context, opts ...Option) (*Kit, error) {
	kit, err := New(opts...)
	if err != nil {
		return nil, err
	}

	if err := kit.Start(ctx); err != nil {
		_ = kit.Close()
		return nil, fmt.Errorf("start kit: %w", err)
	}
	return kit, nil
}

// applyLogConfig 按配置调整日志格式、级别与输出
func applyLogConfig(cfg config.LogConfig) (io.Closer, error) {
	if cfg.Format != "" {
		log.SetFormat(log.ParseFormat(cfg.Format))
	}
	if cfg.Level != "" {
		log.ApplyLevels(cfg.Level)
	}
	if cfg.File.Path == "" {
		return nil, nil
	}
	return log.SetOutputFile(log.FileOptions{
		Path:       cfg.File.Path,
		MaxSizeMB:  cfg.File.MaxSizeMB,
		MaxBackups: cfg.File.MaxBackups,
		MaxAgeDays: cfg.File.MaxAgeDays,
		Compress:   cfg.File.Compress,
	})
}

// ════════════════════════════════════════════════════════════════════════════
//                              组件访问
// ════════════════════════════════════════════════════════════════════════════

// Config 返回生效的统一配置
func (k *Kit) Config() *config.Config { return k.config }

// Network 返回网络频道管理器
func (k *Kit) Network() pkgif.NetworkManager { return k.network }

// Download 返回下载管理器
func (k *Kit) Download() pkgif.DownloadManager { return k.download }

// WebRequest 返回 Web 请求管理器
func (k *Kit) WebRequest() pkgif.WebRequestManager { return k.webRequest }

// Loop 返回驱动循环，手动驱动时为 nil
func (k *Kit) Loop() *loop.Loop { return k.loop }

// Metrics 返回指标收集器，指标禁用时为 nil
func (k *Kit) Metrics() *metrics.Collector { return k.collector }

// IntrospectAddr 返回自省服务的实际监听地址，未启用时为空
func (k *Kit) IntrospectAddr() string {
	if k.introspect == nil {
		return ""
	}
	return k.introspect.Addr()
}

// State 返回当前状态
func (k *Kit) State() KitState {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state
}

// ════════════════════════════════════════════════════════════════════════════
//                              手动驱动
// ════════════════════════════════════════════════════════════════════════════

// Update 驱动所有组件一帧
//
// 仅在 WithManualDrive 下有效，并且 Kit 必须处于运行状态。
// 组件事件在本调用中分发，事件处理函数可以再次调用 Kit 的方法。
func (k *Kit) Update(elapse, realElapse time.Duration) {
	k.mu.RLock()
	running := k.state == StateRunning
	manual := k.opts.manualDrive
	updaters := k.updaters
	k.mu.RUnlock()

	if !manual {
		logger.Warn("驱动循环运行中，忽略手动 Update")
		return
	}
	if !running {
		return
	}

	for _, u := range updaters {
		u.Update(elapse, realElapse)
	}
}
