package config

import (
	"fmt"
	"strings"
	"time"
)

// LoopConfig 驱动循环配置
type LoopConfig struct {
	// FrameInterval 每帧间隔
	// 默认值: 33ms
	FrameInterval Duration `json:"frame_interval" yaml:"frame_interval"`

	// TimeScale 逻辑时间缩放，elapse = realElapse * TimeScale
	// 默认值: 1
	TimeScale float64 `json:"time_scale" yaml:"time_scale"`
}

// DefaultLoopConfig 返回默认的驱动循环配置
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		FrameInterval: Duration(33 * time.Millisecond),
		TimeScale:     1,
	}
}

// Validate 验证驱动循环配置的有效性
func (c *LoopConfig) Validate() error {
	if c.FrameInterval <= 0 {
		return fmt.Errorf("loop: frame_interval must be > 0")
	}
	if c.TimeScale < 0 {
		return fmt.Errorf("loop: time_scale must be >= 0")
	}
	return nil
}

// MetricsConfig 指标收集配置
type MetricsConfig struct {
	// Enabled 是否启用指标收集
	// 默认值: true
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Namespace Prometheus 命名空间
	// 默认值: netkit
	Namespace string `json:"namespace" yaml:"namespace"`

	// SnapshotInterval 指标快照日志间隔，0 表示不输出快照
	// 默认值: 0
	SnapshotInterval Duration `json:"snapshot_interval" yaml:"snapshot_interval"`

	// ListenAddr /metrics HTTP 监听地址，空表示不监听
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
}

// DefaultMetricsConfig 返回默认的指标收集配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "netkit",
	}
}

// Validate 验证指标收集配置的有效性
func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.Namespace == "" {
		return fmt.Errorf("metrics: namespace must not be empty")
	}
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("metrics: snapshot_interval must be >= 0")
	}
	return nil
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别，格式同 NETKIT_LOG_LEVEL（如 "info" 或 "core/network=debug,info"）
	// 空表示使用环境变量
	Level string `json:"level" yaml:"level"`

	// Format 日志格式：text / json，空表示使用环境变量
	Format string `json:"format" yaml:"format"`

	// File 日志文件，空路径表示输出到标准错误
	File LogFileConfig `json:"file" yaml:"file"`
}

// LogFileConfig 日志文件轮转配置
type LogFileConfig struct {
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// DefaultLogConfig 返回默认的日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		File: LogFileConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Validate 验证日志配置的有效性
func (c *LogConfig) Validate() error {
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", c.Format)
	}
	if c.File.Path != "" && c.File.MaxSizeMB <= 0 {
		return fmt.Errorf("log: file.max_size_mb must be > 0")
	}
	return nil
}
