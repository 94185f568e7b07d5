package config

import (
	"errors"
	"fmt"
)

// ValidateAll 验证整个配置的有效性
//
// 这是 Config.Validate() 的别名，额外处理 nil。
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并尝试自动修复常见问题
//
// 可修复的问题：
//   - 负的心跳间隔或发送超时 -> 使用默认值
//   - 非正的缓冲区大小 -> 使用默认值
//   - 非正的帧间隔 -> 使用默认值
//   - 启用指标但命名空间为空 -> 使用默认命名空间
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	defNetwork := DefaultNetworkConfig()
	if c.Network.HeartBeatInterval < 0 {
		c.Network.HeartBeatInterval = defNetwork.HeartBeatInterval
	}
	if c.Network.SendTimeout < 0 {
		c.Network.SendTimeout = defNetwork.SendTimeout
	}
	if c.Network.ReceiveBufferSize <= 0 {
		c.Network.ReceiveBufferSize = defNetwork.ReceiveBufferSize
	}

	if c.Download.FlushSize <= 0 {
		c.Download.FlushSize = DefaultDownloadConfig().FlushSize
	}
	if c.Loop.FrameInterval <= 0 {
		c.Loop.FrameInterval = DefaultLoopConfig().FrameInterval
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsConfig().Namespace
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed after fixes: %w", err)
	}
	return c, nil
}

// MustValidate 验证配置，如果失败则 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := ValidateAll(c); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}
}
