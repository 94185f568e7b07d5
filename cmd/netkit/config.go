package main

import (
	"os"
	"strings"

	"github.com/dep2p/go-netkit"
)

// ============================================================================
//                              环境变量（CLI 专用）
// ============================================================================

const (
	envPrefix      = "NETKIT_"
	envConfigFile  = "CONFIG"
	envPreset      = "PRESET"
	envMetricsAddr = "METRICS_ADDR"
	envLogFile     = "LOG_FILE"
)

// buildOptions 构建 Kit 选项
//
// 配置优先级（从高到低）：
//  1. 命令行参数
//  2. 环境变量（NETKIT_* 前缀）
//  3. 配置文件
//  4. 预设默认值
func buildOptions(g *globalFlags) []netkit.Option {
	var opts []netkit.Option

	if path := firstNonEmpty(g.configFile, getEnv(envConfigFile)); path != "" {
		opts = append(opts, netkit.WithConfigFile(path))
	}
	if preset := firstNonEmpty(g.preset, getEnv(envPreset)); preset != "" {
		opts = append(opts, netkit.WithPreset(preset))
	}
	if addr := firstNonEmpty(g.metricsAddr, getEnv(envMetricsAddr)); addr != "" {
		opts = append(opts, netkit.WithMetricsAddr(addr))
	}
	if path := firstNonEmpty(g.logFile, getEnv(envLogFile)); path != "" {
		opts = append(opts, netkit.WithLogFile(path))
	}
	if g.logLevel != "" {
		opts = append(opts, netkit.WithLogLevel(g.logLevel))
	}
	return opts
}

// ============================================================================
//                              辅助函数
// ============================================================================

func getEnv(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
