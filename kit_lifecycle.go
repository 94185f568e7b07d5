package netkit

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"

	log "github.com/dep2p/go-netkit/internal/util/logger"
)

const (
	// startTimeout Fx App 启动超时
	startTimeout = 30 * time.Second

	// closeTimeout Close 停止 Fx App 的超时
	closeTimeout = 30 * time.Second
)

// Start 启动 Kit
//
// 启动所有组件：自省服务、指标快照与驱动循环。
// 手动驱动时启动后由调用方调用 Update。
func (k *Kit) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrKitClosed
	}
	switch k.state {
	case StateRunning, StateStarting:
		return ErrAlreadyStarted
	case StateStopping, StateStopped:
		return ErrKitStopped
	}

	k.state = StateStarting
	logger.Info("正在启动 netkit", "version", Version)

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := k.app.Start(startCtx); err != nil {
		k.state = StateIdle
		logger.Error("netkit 启动失败", "error", err)
		return fmt.Errorf("start fx app: %w", err)
	}

	k.state = StateRunning
	logger.Info("netkit 启动成功",
		"manualDrive", k.opts.manualDrive,
		"metrics", k.collector != nil,
		"introspect", k.IntrospectAddr())
	return nil
}

// Stop 停止 Kit
//
// 停止驱动循环并关闭所有管理器；网络频道被关闭，进行中的下载保留临时文件。
// 停止后不能再次启动。
func (k *Kit) Stop(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return ErrKitClosed
	}
	if k.state != StateRunning {
		return ErrNotStarted
	}
	return k.stopLocked(ctx)
}

func (k *Kit) stopLocked(ctx context.Context) error {
	k.state = StateStopping
	logger.Info("正在停止 netkit")

	// Fx 按反向顺序调用 OnStop
	err := k.app.Stop(ctx)
	k.state = StateStopped
	if err != nil {
		logger.Error("停止 netkit 失败", "error", err)
		return fmt.Errorf("stop fx app: %w", err)
	}

	logger.Info("netkit 已停止")
	return nil
}

// Close 关闭 Kit 并释放所有资源
//
// 运行中时先停止，然后关闭日志文件。重复调用无效。
func (k *Kit) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}

	var err error
	if k.state == StateRunning {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		err = multierr.Append(err, k.stopLocked(ctx))
		cancel()
	}
	k.state = StateStopped
	k.closed = true

	if k.logCloser != nil {
		logger.Info("netkit 已关闭")
		log.SetOutput(os.Stderr)
		err = multierr.Append(err, k.logCloser.Close())
		k.logCloser = nil
	}
	return err
}
