// Package logger 提供 netkit 的统一日志系统
//
// 基于标准库 log/slog，支持：
//   - 按子系统配置日志级别
//   - 环境变量配置（NETKIT_LOG_LEVEL, NETKIT_LOG_FORMAT）
//   - 运行时切换输出目标（包括滚动日志文件）与输出格式
//
// 使用示例:
//
//	package network
//
//	import log "github.com/dep2p/go-netkit/internal/util/logger"
//
//	var logger = log.Logger("core/network")
//
//	func foo() {
//	    logger.Info("channel connected", "channel", name, "addr", addr)
//	    logger.Error("send failed", "err", err)
//	}
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 缓存各子系统的 Handler（用于动态调整级别）
	handlers sync.Map // map[string]*subsystemHandler
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用会返回相同的 Logger 实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	handler := newHandler(subsystem, cfg.LevelForSubsystem(subsystem))
	l := slog.New(handler)

	actual, loaded := loggers.LoadOrStore(subsystem, l)
	if !loaded {
		handlers.Store(subsystem, handler)
	}
	return actual.(*slog.Logger)
}

// SetFormat 切换所有 Logger 的输出格式，包括已经创建的
func SetFormat(format LogFormat) {
	globalFormatOnce.Do(func() {})
	globalFormat.Store(int32(format))
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// SetGlobalLevel 设置所有已创建子系统的日志级别
func SetGlobalLevel(level slog.Level) {
	handlers.Range(func(_, value any) bool {
		value.(*subsystemHandler).SetLevel(level)
		return true
	})
}

// ApplyLevels 按 NETKIT_LOG_LEVEL 的格式调整已创建子系统的日志级别
//
// 先设置默认级别，再覆盖单独指定的子系统。
func ApplyLevels(levelStr string) {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
	}
	parseLevelConfig(cfg, levelStr)

	SetGlobalLevel(cfg.DefaultLevel)
	for subsystem, level := range cfg.SubsystemLevels {
		SetLevel(subsystem, level)
	}
}

// Discard 返回一个丢弃所有日志的 Logger
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// SetOutput 设置全局日志输出目标
//
// 所有 Logger 共享 dynamicWriter，已创建的 Logger 也会切换到新的 writer。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}
