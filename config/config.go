// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON / YAML 加载和保存配置
//   - 支持预设配置（mobile/desktop/server/minimal）
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Network.HeartBeatInterval = config.Duration(10 * time.Second)
//
//	// 使用预设配置
//	config.ApplyPreset(cfg, "mobile")
//
//	// 从文件加载（.json / .yaml / .yml）
//	cfg, err := config.LoadFile("netkit.yaml")
package config

// Config 是 netkit 的完整配置结构
//
// 配置按照功能模块组织：
//   - Network: 网络频道
//   - Download: 下载管理器
//   - WebRequest: Web 请求管理器
//   - Loop: 驱动循环
//   - Metrics: 指标收集
//   - Log: 日志输出
type Config struct {
	// Network 网络频道配置
	Network NetworkConfig `json:"network" yaml:"network"`

	// Download 下载管理器配置
	Download DownloadConfig `json:"download" yaml:"download"`

	// WebRequest Web 请求管理器配置
	WebRequest WebRequestConfig `json:"web_request" yaml:"web_request"`

	// Loop 驱动循环配置
	Loop LoopConfig `json:"loop" yaml:"loop"`

	// Metrics 指标收集配置
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Log 日志配置
	Log LogConfig `json:"log" yaml:"log"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，适用于大多数场景。
func NewConfig() *Config {
	return &Config{
		Network:    DefaultNetworkConfig(),
		Download:   DefaultDownloadConfig(),
		WebRequest: DefaultWebRequestConfig(),
		Loop:       DefaultLoopConfig(),
		Metrics:    DefaultMetricsConfig(),
		Log:        DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置是否有效，如果发现无效配置则返回错误。
func (c *Config) Validate() error {
	if err := c.Network.Validate(); err != nil {
		return err
	}
	if err := c.Download.Validate(); err != nil {
		return err
	}
	if err := c.WebRequest.Validate(); err != nil {
		return err
	}
	if err := c.Loop.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
