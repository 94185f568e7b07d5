// Package loop 实现驱动循环
//
// Loop 按固定帧间隔在单一协程上依次调用已注册组件的
// Update(elapse, realElapse)。所有网络频道、下载与网页请求管理器都由它驱动，
// 因此它们的 Update 不需要处理并发。
package loop

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-netkit/config"
	log "github.com/dep2p/go-netkit/internal/util/logger"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

var logger = log.Logger("core/loop")

// ErrAlreadyRunning 驱动循环已在运行
var ErrAlreadyRunning = errors.New("loop is already running")

// Option 驱动循环选项
type Option func(*Loop)

// WithClock 设置时钟，测试中使用 clock.NewMock()
func WithClock(clk clock.Clock) Option {
	return func(l *Loop) {
		if clk != nil {
			l.clock = clk
		}
	}
}

// WithFrameInterval 设置帧间隔
func WithFrameInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.frameInterval = d
		}
	}
}

// WithTimeScale 设置逻辑时间缩放
func WithTimeScale(scale float64) Option {
	return func(l *Loop) { l.SetTimeScale(scale) }
}

// WithPanicHandler 设置组件 Update 抛出 panic 时的处理函数
//
// 未设置时 panic 照常向上传播。Module 构建的循环不设置此选项，
// 网络频道在没有错误订阅者时抛出的 panic 因此不会被吞掉。
func WithPanicHandler(fn func(u pkgif.Updater, r any)) Option {
	return func(l *Loop) { l.panicHandler = fn }
}

// Loop 驱动循环
type Loop struct {
	clock         clock.Clock
	frameInterval time.Duration
	timeScale     atomic.Uint64
	panicHandler  func(u pkgif.Updater, r any)

	mu       sync.Mutex
	nextID   uint64
	updaters []registered
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	frames atomic.Int64
}

type registered struct {
	id      uint64
	updater pkgif.Updater
}

// New 创建驱动循环
func New(opts ...Option) *Loop {
	defaults := config.DefaultLoopConfig()
	l := &Loop{
		clock:         clock.New(),
		frameInterval: defaults.FrameInterval.Duration(),
	}
	l.SetTimeScale(defaults.TimeScale)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromConfig 从驱动循环配置创建
func FromConfig(cfg config.LoopConfig, opts ...Option) *Loop {
	base := []Option{
		WithFrameInterval(cfg.FrameInterval.Duration()),
		WithTimeScale(cfg.TimeScale),
	}
	return New(append(base, opts...)...)
}

// FrameInterval 帧间隔
func (l *Loop) FrameInterval() time.Duration { return l.frameInterval }

// TimeScale 逻辑时间缩放
func (l *Loop) TimeScale() float64 {
	return math.Float64frombits(l.timeScale.Load())
}

// SetTimeScale 设置逻辑时间缩放，负数视为 0
func (l *Loop) SetTimeScale(scale float64) {
	if scale < 0 {
		scale = 0
	}
	l.timeScale.Store(math.Float64bits(scale))
}

// Frames 已执行的帧数
func (l *Loop) Frames() int64 { return l.frames.Load() }

// Register 注册组件，返回注销函数
//
// 组件按注册顺序更新。
func (l *Loop) Register(u pkgif.Updater) func() {
	if u == nil {
		return func() {}
	}

	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.updaters = append(l.updaters, registered{id: id, updater: u})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.unregister(id) })
	}
}

func (l *Loop) unregister(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, r := range l.updaters {
		if r.id == id {
			l.updaters = append(l.updaters[:i:i], l.updaters[i+1:]...)
			return
		}
	}
}

// Count 已注册的组件数量
func (l *Loop) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.updaters)
}

// Tick 同步执行一帧，elapse = realElapse * TimeScale
//
// 循环运行期间不要在其他协程调用 Tick。
func (l *Loop) Tick(realElapse time.Duration) {
	elapse := time.Duration(float64(realElapse) * l.TimeScale())

	l.mu.Lock()
	updaters := make([]registered, len(l.updaters))
	copy(updaters, l.updaters)
	l.mu.Unlock()

	for _, r := range updaters {
		l.update(r.updater, elapse, realElapse)
	}
	l.frames.Add(1)
}

func (l *Loop) update(u pkgif.Updater, elapse, realElapse time.Duration) {
	if l.panicHandler != nil {
		defer func() {
			if r := recover(); r != nil {
				l.panicHandler(u, r)
			}
		}()
	}
	u.Update(elapse, realElapse)
}

// Start 在后台协程中启动循环，ctx 取消或调用 Stop 时退出
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	ticker := l.clock.Ticker(l.frameInterval)
	l.wg.Add(1)
	go l.run(ctx, ticker, l.clock.Now())

	logger.Info("驱动循环已启动", "frameInterval", l.frameInterval, "timeScale", l.TimeScale())
	return nil
}

// Stop 停止循环并等待当前帧结束，可重复调用
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	l.wg.Wait()
	logger.Info("驱动循环已停止", "frames", l.Frames())
}

// Running 是否正在运行
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

func (l *Loop) run(ctx context.Context, ticker *clock.Ticker, last time.Time) {
	defer l.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := l.clock.Now()
			l.Tick(now.Sub(last))
			last = now
		}
	}
}
