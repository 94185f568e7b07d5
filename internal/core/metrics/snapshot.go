package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	log "github.com/dep2p/go-netkit/internal/util/logger"
)

var logger = log.Logger("core/metrics")

// Snapshot 网络指标快照
type Snapshot struct {
	// 时间信息
	Timestamp     time.Time     `json:"timestamp"`
	UptimeSeconds int64         `json:"uptimeSeconds"`
	Interval      time.Duration `json:"interval"`

	// 带宽统计
	BytesSent   int64   `json:"bytesSent"`
	BytesRecv   int64   `json:"bytesRecv"`
	SendRateBps float64 `json:"sendRateBps"`
	RecvRateBps float64 `json:"recvRateBps"`
	Channels    int     `json:"channels"`

	// 消息包统计
	PacketsSentTotal  int64   `json:"packetsSentTotal"`
	PacketsRecvTotal  int64   `json:"packetsRecvTotal"`
	PacketsSentPerMin float64 `json:"packetsSentPerMin"`
	PacketsRecvPerMin float64 `json:"packetsRecvPerMin"`
	ErrorsTotal       int64   `json:"errorsTotal"`

	// 资源统计
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heapAllocMB"`
}

// SnapshotCollector 周期性输出指标快照日志
type SnapshotCollector struct {
	clock     clock.Clock
	collector *Collector

	mu               sync.RWMutex
	startTime        time.Time
	lastSnapshot     *Snapshot
	lastSent         int64
	lastRecv         int64
	lastSnapshotTime time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSnapshotCollector 创建快照收集器
func NewSnapshotCollector(collector *Collector, clk clock.Clock) *SnapshotCollector {
	if clk == nil {
		clk = clock.New()
	}
	now := clk.Now()
	return &SnapshotCollector{
		clock:            clk,
		collector:        collector,
		startTime:        now,
		lastSnapshotTime: now,
	}
}

// Start 启动周期性快照
func (c *SnapshotCollector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.lastSnapshotTime = c.clock.Now()
	c.mu.Unlock()

	c.wg.Add(1)
	go c.snapshotLoop(ctx, interval)

	logger.Info("指标快照收集器已启动", "interval", interval)
}

// Stop 停止快照收集
func (c *SnapshotCollector) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
	logger.Info("指标快照收集器已停止")
}

func (c *SnapshotCollector) snapshotLoop(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()

	ticker := c.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.logSnapshot(c.Collect())
		}
	}
}

// Collect 收集当前快照
func (c *SnapshotCollector) Collect() *Snapshot {
	now := c.clock.Now()

	c.mu.RLock()
	lastTime := c.lastSnapshotTime
	lastSent := c.lastSent
	lastRecv := c.lastRecv
	c.mu.RUnlock()

	elapsed := now.Sub(lastTime)
	elapsedMinutes := elapsed.Minutes()
	if elapsedMinutes <= 0 {
		elapsedMinutes = 1.0 / 60.0
	}

	bw := c.collector.bandwidth.Totals()
	sent := c.collector.sentTotal.Load()
	recv := c.collector.receivedTotal.Load()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snapshot := &Snapshot{
		Timestamp:     now,
		UptimeSeconds: int64(now.Sub(c.startTime).Seconds()),
		Interval:      elapsed,

		BytesSent:   bw.TotalOut,
		BytesRecv:   bw.TotalIn,
		SendRateBps: bw.RateOut,
		RecvRateBps: bw.RateIn,
		Channels:    len(c.collector.bandwidth.ByChannel()),

		PacketsSentTotal:  sent,
		PacketsRecvTotal:  recv,
		PacketsSentPerMin: float64(sent-lastSent) / elapsedMinutes,
		PacketsRecvPerMin: float64(recv-lastRecv) / elapsedMinutes,
		ErrorsTotal:       c.collector.errorTotal.Load(),

		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(memStats.HeapAlloc) / 1024 / 1024,
	}

	c.mu.Lock()
	c.lastSnapshot = snapshot
	c.lastSnapshotTime = now
	c.lastSent = sent
	c.lastRecv = recv
	c.mu.Unlock()

	return snapshot
}

func (c *SnapshotCollector) logSnapshot(s *Snapshot) {
	logger.Info("网络指标快照",
		"uptime", s.UptimeSeconds,
		"channels", s.Channels,
		"bytesSent", s.BytesSent,
		"bytesRecv", s.BytesRecv,
		"sendRate", FormatRate(s.SendRateBps),
		"recvRate", FormatRate(s.RecvRateBps),
		"packetsSentPerMin", fmt.Sprintf("%.2f", s.PacketsSentPerMin),
		"packetsRecvPerMin", fmt.Sprintf("%.2f", s.PacketsRecvPerMin),
		"errors", s.ErrorsTotal,
		"goroutines", s.Goroutines,
		"heapAllocMB", fmt.Sprintf("%.2f", s.HeapAllocMB),
	)
}

// LastSnapshot 获取最新快照
func (c *SnapshotCollector) LastSnapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSnapshot
}

// FormatRate 格式化速率
func FormatRate(bps float64) string {
	switch {
	case bps < 1024:
		return fmt.Sprintf("%.2f B/s", bps)
	case bps < 1024*1024:
		return fmt.Sprintf("%.2f KB/s", bps/1024)
	default:
		return fmt.Sprintf("%.2f MB/s", bps/1024/1024)
	}
}
