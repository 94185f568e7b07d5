package logger

import (
	"errors"
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions 滚动日志文件选项
type FileOptions struct {
	// Path 日志文件路径
	Path string

	// MaxSizeMB 单个文件最大大小（MB）
	MaxSizeMB int

	// MaxBackups 保留的历史文件数
	MaxBackups int

	// MaxAgeDays 历史文件保留天数
	MaxAgeDays int

	// Compress 是否压缩历史文件
	Compress bool

	// AlsoStderr 是否同时输出到 stderr
	AlsoStderr bool
}

// ErrEmptyLogPath 日志文件路径为空
var ErrEmptyLogPath = errors.New("log file path is empty")

// SetOutputFile 将全局日志输出切换到滚动日志文件
//
// 返回的 io.Closer 用于在程序退出时关闭文件。
func SetOutputFile(opts FileOptions) (io.Closer, error) {
	if opts.Path == "" {
		return nil, ErrEmptyLogPath
	}

	lj := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	if opts.AlsoStderr {
		SetOutput(io.MultiWriter(os.Stderr, lj))
	} else {
		SetOutput(lj)
	}
	return lj, nil
}
