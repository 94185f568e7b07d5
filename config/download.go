package config

import (
	"fmt"
	"time"
)

// DownloadConfig 下载管理器配置
type DownloadConfig struct {
	// AgentCount 下载代理数量，即最大并发下载数
	// 默认值: 3
	AgentCount int `json:"agent_count" yaml:"agent_count"`

	// FlushSize 缓冲多少字节后写入磁盘
	// 默认值: 1 MiB
	FlushSize int `json:"flush_size" yaml:"flush_size"`

	// Timeout 下载无进展的超时时间
	// 默认值: 30s
	Timeout Duration `json:"timeout" yaml:"timeout"`

	// SpeedLimit 每个代理的限速（字节/秒），0 表示不限速
	// 默认值: 0
	SpeedLimit int `json:"speed_limit" yaml:"speed_limit"`

	// UserAgent HTTP User-Agent
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// DefaultDownloadConfig 返回默认的下载管理器配置
func DefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		AgentCount: 3,
		FlushSize:  1024 * 1024,
		Timeout:    Duration(30 * time.Second),
		SpeedLimit: 0,
		UserAgent:  "netkit/1.0",
	}
}

// Validate 验证下载管理器配置的有效性
func (c *DownloadConfig) Validate() error {
	if c.AgentCount < 0 {
		return fmt.Errorf("download: agent_count must be >= 0")
	}
	if c.FlushSize <= 0 {
		return fmt.Errorf("download: flush_size must be > 0")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("download: timeout must be > 0")
	}
	if c.SpeedLimit < 0 {
		return fmt.Errorf("download: speed_limit must be >= 0")
	}
	return nil
}

// WebRequestConfig Web 请求管理器配置
type WebRequestConfig struct {
	// AgentCount Web 请求代理数量
	// 默认值: 1
	AgentCount int `json:"agent_count" yaml:"agent_count"`

	// Timeout 请求超时时间
	// 默认值: 30s
	Timeout Duration `json:"timeout" yaml:"timeout"`

	// UserAgent HTTP User-Agent
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// DefaultWebRequestConfig 返回默认的 Web 请求管理器配置
func DefaultWebRequestConfig() WebRequestConfig {
	return WebRequestConfig{
		AgentCount: 1,
		Timeout:    Duration(30 * time.Second),
		UserAgent:  "netkit/1.0",
	}
}

// Validate 验证 Web 请求管理器配置的有效性
func (c *WebRequestConfig) Validate() error {
	if c.AgentCount < 0 {
		return fmt.Errorf("web_request: agent_count must be >= 0")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("web_request: timeout must be > 0")
	}
	return nil
}
