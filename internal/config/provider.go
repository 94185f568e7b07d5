// Package config 把统一配置校验后注入 fx 容器
package config

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-netkit/config"
)

// Provider 配置提供者
//
// Provider 负责将配置分发给各个组件
type Provider struct {
	config *config.Config
}

// NewProvider 创建配置提供者
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		config: cfg,
	}
}

// GetConfig 获取完整配置
func (p *Provider) GetConfig() *config.Config {
	return p.config
}

// GetNetwork 获取网络频道配置
func (p *Provider) GetNetwork() *config.NetworkConfig {
	return &p.config.Network
}

// GetDownload 获取下载管理器配置
func (p *Provider) GetDownload() *config.DownloadConfig {
	return &p.config.Download
}

// GetWebRequest 获取 Web 请求管理器配置
func (p *Provider) GetWebRequest() *config.WebRequestConfig {
	return &p.config.WebRequest
}

// GetLoop 获取驱动循环配置
func (p *Provider) GetLoop() *config.LoopConfig {
	return &p.config.Loop
}

// GetMetrics 获取指标配置
func (p *Provider) GetMetrics() *config.MetricsConfig {
	return &p.config.Metrics
}

// GetLog 获取日志配置
func (p *Provider) GetLog() *config.LogConfig {
	return &p.config.Log
}

// ============================================================================
//                              fx 模块
// ============================================================================

// ProviderResult fx 提供者结果
type ProviderResult struct {
	fx.Out

	Provider *Provider
	Config   *config.Config
}

// ProvideConfig 校验配置并提供给各模块
//
// cfg 为 nil 时使用默认配置。返回错误如果任一字段校验失败。
func ProvideConfig(cfg *config.Config) (ProviderResult, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}

	if err := Validate(cfg); err != nil {
		return ProviderResult{}, fmt.Errorf("配置验证失败: %w", err)
	}

	return ProviderResult{
		Provider: NewProvider(cfg),
		Config:   cfg,
	}, nil
}

// Module 返回配置 fx 模块
func Module(cfg *config.Config) fx.Option {
	return fx.Module("config",
		fx.Provide(func() (ProviderResult, error) {
			return ProvideConfig(cfg)
		}),
	)
}
