package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat 无法根据扩展名识别配置文件格式
var ErrUnknownFormat = errors.New("unknown config file format")

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保持默认值。
//
// 示例 JSON:
//
//	{
//	  "network": {"heart_beat_interval": "10s"},
//	  "download": {"agent_count": 4, "timeout": "1m"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// ToJSON 把配置序列化为带缩进的 JSON
func ToJSON(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// FromYAML 从 YAML 数据创建配置
//
// 数据中的 ${VAR} 会先被替换为环境变量的值，未出现的字段保持默认值。
func FromYAML(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// ToYAML 把配置序列化为 YAML
func ToYAML(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	return yaml.Marshal(cfg)
}

// LoadFile 按扩展名从文件加载配置并验证
//
// 支持 .json、.yaml、.yml。
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cfg, err = FromJSON(data)
	case ".yaml", ".yml":
		cfg, err = FromYAML(data)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars 替换 ${VAR_NAME} 为环境变量的值
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "mobile": 移动端，低并发、较长心跳
//   - "desktop": 桌面端默认
//   - "server": 服务器，高并发、输出指标快照
//   - "minimal": 最小配置，关闭指标
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch presetName {
	case "mobile":
		cfg.Network.HeartBeatInterval = Duration(60 * time.Second)
		cfg.Network.ResetHeartBeatElapseOnReceive = true
		cfg.Download.AgentCount = 1
		cfg.Download.FlushSize = 256 * 1024
		cfg.WebRequest.AgentCount = 1
		cfg.Loop.FrameInterval = Duration(50 * time.Millisecond)
	case "desktop", "":
		// 默认值即桌面端配置
	case "server":
		cfg.Download.AgentCount = 16
		cfg.Download.FlushSize = 4 * 1024 * 1024
		cfg.WebRequest.AgentCount = 8
		cfg.Loop.FrameInterval = Duration(10 * time.Millisecond)
		cfg.Metrics.Enabled = true
		cfg.Metrics.SnapshotInterval = Duration(30 * time.Second)
	case "minimal":
		cfg.Download.AgentCount = 1
		cfg.WebRequest.AgentCount = 1
		cfg.Metrics.Enabled = false
		cfg.Metrics.SnapshotInterval = 0
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
	return nil
}

// CloneConfig 克隆配置
//
// 所有子配置都是值类型，浅拷贝即深拷贝。
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	return &cloned
}
