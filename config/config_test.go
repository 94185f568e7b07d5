package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.Network.HeartBeatInterval.Duration())
	assert.True(t, cfg.Network.NoDelay)
	assert.Equal(t, 3, cfg.Download.AgentCount)
	assert.Equal(t, 1, cfg.WebRequest.AgentCount)
	assert.Equal(t, 1.0, cfg.Loop.TimeScale)
	assert.Equal(t, "netkit", cfg.Metrics.Namespace)

	t.Log("✅ NewConfig 测试通过")
}

// TestSubConfig_Validate 测试子配置验证
func TestSubConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative heartbeat", func(c *Config) { c.Network.HeartBeatInterval = Duration(-time.Second) }},
		{"negative send timeout", func(c *Config) { c.Network.SendTimeout = Duration(-1) }},
		{"zero receive buffer", func(c *Config) { c.Network.ReceiveBufferSize = 0 }},
		{"negative download agents", func(c *Config) { c.Download.AgentCount = -1 }},
		{"zero flush size", func(c *Config) { c.Download.FlushSize = 0 }},
		{"zero download timeout", func(c *Config) { c.Download.Timeout = 0 }},
		{"negative speed limit", func(c *Config) { c.Download.SpeedLimit = -1 }},
		{"zero web request timeout", func(c *Config) { c.WebRequest.Timeout = 0 }},
		{"zero frame interval", func(c *Config) { c.Loop.FrameInterval = 0 }},
		{"negative time scale", func(c *Config) { c.Loop.TimeScale = -1 }},
		{"empty namespace", func(c *Config) { c.Metrics.Namespace = "" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestDuration_JSON 测试 Duration 的 JSON 编解码
func TestDuration_JSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1m30s","b":1000000}`), &v))
	assert.Equal(t, 90*time.Second, v.A.Duration())
	assert.Equal(t, time.Millisecond, v.B.Duration())

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1m30s","b":"1ms"}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"soon"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}

// TestFromJSON 测试从 JSON 加载配置
func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{
		"network": {"heart_beat_interval": "10s", "reset_heart_beat_elapse_on_receive": true},
		"download": {"agent_count": 4}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Network.HeartBeatInterval.Duration())
	assert.True(t, cfg.Network.ResetHeartBeatElapseOnReceive)
	assert.Equal(t, 4, cfg.Download.AgentCount)
	assert.Equal(t, DefaultDownloadConfig().FlushSize, cfg.Download.FlushSize, "未出现的字段保持默认值")

	_, err = FromJSON([]byte(`{`))
	assert.Error(t, err)
}

// TestToJSON 测试 JSON 往返
func TestToJSON(t *testing.T) {
	cfg := NewConfig()
	cfg.Loop.TimeScale = 2

	data, err := ToJSON(cfg)
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)

	_, err = ToJSON(nil)
	assert.Error(t, err)
}

// TestFromYAML 测试从 YAML 加载配置并展开环境变量
func TestFromYAML(t *testing.T) {
	t.Setenv("NETKIT_TEST_UA", "tester/2.0")

	cfg, err := FromYAML([]byte(`
network:
  heart_beat_interval: 5s
  send_timeout: 1000000
download:
  user_agent: ${NETKIT_TEST_UA}
loop:
  frame_interval: 16ms
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Network.HeartBeatInterval.Duration())
	assert.Equal(t, time.Millisecond, cfg.Network.SendTimeout.Duration())
	assert.Equal(t, "tester/2.0", cfg.Download.UserAgent)
	assert.Equal(t, 16*time.Millisecond, cfg.Loop.FrameInterval.Duration())

	_, err = FromYAML([]byte("network:\n  heart_beat_interval: later\n"))
	assert.Error(t, err)

	data, err := ToYAML(cfg)
	require.NoError(t, err)
	back, err := FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

// TestLoadFile 测试按扩展名加载配置文件
func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "netkit.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("web_request:\n  agent_count: 2\n"), 0o600))
	cfg, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.WebRequest.AgentCount)

	jsonPath := filepath.Join(dir, "netkit.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"loop":{"frame_interval":"0s"}}`), 0o600))
	_, err = LoadFile(jsonPath)
	assert.Error(t, err, "加载后应验证配置")

	tomlPath := filepath.Join(dir, "netkit.toml")
	require.NoError(t, os.WriteFile(tomlPath, nil, 0o600))
	_, err = LoadFile(tomlPath)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	t.Log("✅ LoadFile 测试通过")
}

// TestApplyPreset 测试应用预设
func TestApplyPreset(t *testing.T) {
	for _, name := range []string{"mobile", "desktop", "server", "minimal", ""} {
		t.Run(name, func(t *testing.T) {
			cfg := NewConfig()
			require.NoError(t, ApplyPreset(cfg, name))
			assert.NoError(t, cfg.Validate())
		})
	}

	cfg := NewConfig()
	require.NoError(t, ApplyPreset(cfg, "minimal"))
	assert.False(t, cfg.Metrics.Enabled)

	assert.Error(t, ApplyPreset(NewConfig(), "invalid"))
	assert.Error(t, ApplyPreset(nil, "mobile"))
}

// TestValidateAndFix 测试自动修复
func TestValidateAndFix(t *testing.T) {
	cfg := NewConfig()
	cfg.Network.HeartBeatInterval = Duration(-1)
	cfg.Network.ReceiveBufferSize = 0
	cfg.Loop.FrameInterval = 0
	cfg.Metrics.Namespace = ""

	fixed, err := ValidateAndFix(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultNetworkConfig().HeartBeatInterval, fixed.Network.HeartBeatInterval)
	assert.Equal(t, 8192, fixed.Network.ReceiveBufferSize)
	assert.Equal(t, "netkit", fixed.Metrics.Namespace)

	fixed, err = ValidateAndFix(nil)
	require.NoError(t, err)
	assert.NotNil(t, fixed)

	assert.Error(t, ValidateAll(nil))
	assert.Panics(t, func() { MustValidate(nil) })
}

// TestCloneConfig 测试克隆配置
func TestCloneConfig(t *testing.T) {
	cfg := NewConfig()
	cloned := CloneConfig(cfg)
	cloned.Download.AgentCount = 99

	assert.Equal(t, 3, cfg.Download.AgentCount)
	assert.Nil(t, CloneConfig(nil))
}
