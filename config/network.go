package config

import (
	"fmt"
	"time"
)

// NetworkConfig 网络频道配置
//
// 新建的网络频道使用这些默认值，创建后可通过频道自身的方法修改心跳参数。
type NetworkConfig struct {
	// HeartBeatInterval 心跳间隔，0 表示不发送心跳
	// 默认值: 30s
	HeartBeatInterval Duration `json:"heart_beat_interval" yaml:"heart_beat_interval"`

	// ResetHeartBeatElapseOnReceive 收到消息包时是否重置心跳流逝时间
	// 默认值: false
	ResetHeartBeatElapseOnReceive bool `json:"reset_heart_beat_elapse_on_receive" yaml:"reset_heart_beat_elapse_on_receive"`

	// SendTimeout 单次写入的超时，超时且已写入部分数据时从断点继续发送
	// 0 表示不设置写超时
	// 默认值: 5s
	SendTimeout Duration `json:"send_timeout" yaml:"send_timeout"`

	// NoDelay 是否禁用 Nagle 算法
	// 默认值: true
	NoDelay bool `json:"no_delay" yaml:"no_delay"`

	// KeepAlive TCP keep-alive 间隔，负数表示禁用
	// 默认值: 15s
	KeepAlive Duration `json:"keep_alive" yaml:"keep_alive"`

	// ReceiveBufferSize 同步接收模式下每次读取的缓冲区大小（字节）
	// 默认值: 8192
	ReceiveBufferSize int `json:"receive_buffer_size" yaml:"receive_buffer_size"`
}

// DefaultNetworkConfig 返回默认的网络频道配置
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		HeartBeatInterval:             Duration(30 * time.Second),
		ResetHeartBeatElapseOnReceive: false,
		SendTimeout:                   Duration(5 * time.Second),
		NoDelay:                       true,
		KeepAlive:                     Duration(15 * time.Second),
		ReceiveBufferSize:             8192,
	}
}

// Validate 验证网络频道配置的有效性
func (c *NetworkConfig) Validate() error {
	if c.HeartBeatInterval < 0 {
		return fmt.Errorf("network: heart_beat_interval must be >= 0")
	}
	if c.SendTimeout < 0 {
		return fmt.Errorf("network: send_timeout must be >= 0")
	}
	if c.ReceiveBufferSize <= 0 {
		return fmt.Errorf("network: receive_buffer_size must be > 0")
	}
	return nil
}
