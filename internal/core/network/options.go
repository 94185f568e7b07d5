package network

import (
	"context"
	"net"
	"time"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/metrics"
)

// Dialer 建立 TCP 连接
//
// *net.Dialer 满足该接口，测试中可替换为返回内存连接的实现。
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options 网络频道选项
type Options struct {
	// HeartBeatInterval 新频道的心跳间隔，0 表示不发送心跳
	HeartBeatInterval time.Duration

	// ResetHeartBeatElapseOnReceive 收到消息包时是否重置心跳流逝时间
	ResetHeartBeatElapseOnReceive bool

	// SendTimeout 单次写入超时
	SendTimeout time.Duration

	// NoDelay 是否禁用 Nagle 算法
	NoDelay bool

	// KeepAlive TCP keep-alive 间隔
	KeepAlive time.Duration

	// ReceiveBufferSize 同步接收模式的读缓冲区大小
	ReceiveBufferSize int

	// Dialer 连接拨号器，为 nil 时使用 net.Dialer
	Dialer Dialer

	// Reporter 指标上报，为 nil 时不上报
	Reporter metrics.Reporter
}

// DefaultOptions 返回默认选项
func DefaultOptions() Options {
	cfg := config.DefaultNetworkConfig()
	return OptionsFromConfig(&cfg)
}

// OptionsFromConfig 从网络配置创建选项
func OptionsFromConfig(cfg *config.NetworkConfig) Options {
	if cfg == nil {
		return DefaultOptions()
	}
	return Options{
		HeartBeatInterval:             cfg.HeartBeatInterval.Duration(),
		ResetHeartBeatElapseOnReceive: cfg.ResetHeartBeatElapseOnReceive,
		SendTimeout:                   cfg.SendTimeout.Duration(),
		NoDelay:                       cfg.NoDelay,
		KeepAlive:                     cfg.KeepAlive.Duration(),
		ReceiveBufferSize:             cfg.ReceiveBufferSize,
	}
}

func (o Options) withDefaults() Options {
	if o.ReceiveBufferSize <= 0 {
		o.ReceiveBufferSize = config.DefaultNetworkConfig().ReceiveBufferSize
	}
	if o.Dialer == nil {
		o.Dialer = &net.Dialer{KeepAlive: o.KeepAlive}
	}
	if o.Reporter == nil {
		o.Reporter = metrics.Discard{}
	}
	return o
}
