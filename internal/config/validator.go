package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/dep2p/go-netkit/config"
)

// ValidationError 配置校验错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("配置错误 [%s]: %s", e.Field, e.Message)
}

// ValidationErrors 多个配置校验错误
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors 是否有错误
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator 配置校验器
//
// 与各子配置的 Validate 不同，Validator 收集全部错误，并检查跨模块的约束。
type Validator struct {
	errors ValidationErrors
}

// NewValidator 创建校验器
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// addError 添加错误
func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// Errors 返回所有错误
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// Validate 校验配置
func Validate(cfg *config.Config) error {
	v := NewValidator()

	v.validateNetwork(&cfg.Network)
	v.validateDownload(&cfg.Download, &cfg.Loop)
	v.validateWebRequest(&cfg.WebRequest, &cfg.Loop)
	v.validateLoop(&cfg.Loop)
	v.validateMetrics(&cfg.Metrics)
	v.validateLog(&cfg.Log)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// validateNetwork 校验网络频道配置
func (v *Validator) validateNetwork(cfg *config.NetworkConfig) {
	if cfg.HeartBeatInterval < 0 {
		v.addError("network.heart_beat_interval", "不能为负数")
	}

	if cfg.SendTimeout < 0 {
		v.addError("network.send_timeout", "不能为负数")
	}

	if cfg.ReceiveBufferSize <= 0 {
		v.addError("network.receive_buffer_size", "必须大于 0")
	}
}

// validateDownload 校验下载管理器配置
func (v *Validator) validateDownload(cfg *config.DownloadConfig, loop *config.LoopConfig) {
	if cfg.AgentCount < 0 {
		v.addError("download.agent_count", "不能为负数")
	}

	if cfg.FlushSize <= 0 {
		v.addError("download.flush_size", "必须大于 0")
	}

	if cfg.Timeout <= 0 {
		v.addError("download.timeout", "必须大于 0")
	} else if cfg.Timeout <= loop.FrameInterval {
		v.addError("download.timeout", "必须大于驱动循环的帧间隔")
	}

	if cfg.SpeedLimit < 0 {
		v.addError("download.speed_limit", "不能为负数")
	}
}

// validateWebRequest 校验 Web 请求管理器配置
func (v *Validator) validateWebRequest(cfg *config.WebRequestConfig, loop *config.LoopConfig) {
	if cfg.AgentCount < 0 {
		v.addError("web_request.agent_count", "不能为负数")
	}

	if cfg.Timeout <= 0 {
		v.addError("web_request.timeout", "必须大于 0")
	} else if cfg.Timeout <= loop.FrameInterval {
		v.addError("web_request.timeout", "必须大于驱动循环的帧间隔")
	}
}

// validateLoop 校验驱动循环配置
func (v *Validator) validateLoop(cfg *config.LoopConfig) {
	if cfg.FrameInterval <= 0 {
		v.addError("loop.frame_interval", "必须大于 0")
	}

	if cfg.TimeScale < 0 {
		v.addError("loop.time_scale", "不能为负数")
	}
}

// validateMetrics 校验指标配置
func (v *Validator) validateMetrics(cfg *config.MetricsConfig) {
	if cfg.Enabled && cfg.Namespace == "" {
		v.addError("metrics.namespace", "启用指标时不能为空")
	}

	if cfg.SnapshotInterval < 0 {
		v.addError("metrics.snapshot_interval", "不能为负数")
	}

	if cfg.ListenAddr != "" {
		if !cfg.Enabled {
			v.addError("metrics.listen_addr", "未启用指标时不能监听")
		}
		if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
			v.addError("metrics.listen_addr", "必须是 host:port 格式")
		}
	}
}

// validateLog 校验日志配置
func (v *Validator) validateLog(cfg *config.LogConfig) {
	switch strings.ToLower(cfg.Format) {
	case "", "text", "json":
	default:
		v.addError("log.format", fmt.Sprintf("未知格式 %q", cfg.Format))
	}

	if cfg.File.Path != "" {
		if cfg.File.MaxSizeMB <= 0 {
			v.addError("log.file.max_size_mb", "必须大于 0")
		}
		if cfg.File.MaxBackups < 0 {
			v.addError("log.file.max_backups", "不能为负数")
		}
		if cfg.File.MaxAgeDays < 0 {
			v.addError("log.file.max_age_days", "不能为负数")
		}
	}
}
