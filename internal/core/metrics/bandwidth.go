package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Stats 带宽统计快照
type Stats struct {
	TotalIn  int64   // 总入站字节
	TotalOut int64   // 总出站字节
	RateIn   float64 // 入站速率（字节/秒）
	RateOut  float64 // 出站速率（字节/秒）
}

// BandwidthCounter 带宽计数器
//
// 跟踪所有网络频道以及每个频道的收发字节数，并发安全。
type BandwidthCounter struct {
	clock clock.Clock

	totalIn  atomic.Int64
	totalOut atomic.Int64

	totalInRate  *RateMeter
	totalOutRate *RateMeter

	channelMu sync.RWMutex
	channels  map[string]*channelBandwidth
}

type channelBandwidth struct {
	in  *RateMeter
	out *RateMeter
}

// NewBandwidthCounter 创建带宽计数器
func NewBandwidthCounter(clk clock.Clock) *BandwidthCounter {
	if clk == nil {
		clk = clock.New()
	}
	return &BandwidthCounter{
		clock:        clk,
		totalInRate:  NewRateMeter(clk, DefaultRateWindow),
		totalOutRate: NewRateMeter(clk, DefaultRateWindow),
		channels:     make(map[string]*channelBandwidth),
	}
}

// LogSent 记录频道发送的字节数
func (bwc *BandwidthCounter) LogSent(channel string, size int64) {
	bwc.totalOut.Add(size)
	bwc.totalOutRate.Add(size)
	bwc.channel(channel).out.Add(size)
}

// LogRecv 记录频道接收的字节数
func (bwc *BandwidthCounter) LogRecv(channel string, size int64) {
	bwc.totalIn.Add(size)
	bwc.totalInRate.Add(size)
	bwc.channel(channel).in.Add(size)
}

func (bwc *BandwidthCounter) channel(name string) *channelBandwidth {
	bwc.channelMu.RLock()
	c := bwc.channels[name]
	bwc.channelMu.RUnlock()
	if c != nil {
		return c
	}

	bwc.channelMu.Lock()
	defer bwc.channelMu.Unlock()
	if c = bwc.channels[name]; c == nil {
		c = &channelBandwidth{
			in:  NewRateMeter(bwc.clock, DefaultRateWindow),
			out: NewRateMeter(bwc.clock, DefaultRateWindow),
		}
		bwc.channels[name] = c
	}
	return c
}

// Totals 返回所有频道的带宽统计
func (bwc *BandwidthCounter) Totals() Stats {
	return Stats{
		TotalIn:  bwc.totalIn.Load(),
		TotalOut: bwc.totalOut.Load(),
		RateIn:   bwc.totalInRate.Rate(),
		RateOut:  bwc.totalOutRate.Rate(),
	}
}

// ForChannel 返回单个频道的带宽统计
func (bwc *BandwidthCounter) ForChannel(name string) Stats {
	bwc.channelMu.RLock()
	c := bwc.channels[name]
	bwc.channelMu.RUnlock()
	if c == nil {
		return Stats{}
	}
	return c.stats()
}

// ByChannel 返回每个频道的带宽统计
func (bwc *BandwidthCounter) ByChannel() map[string]Stats {
	bwc.channelMu.RLock()
	defer bwc.channelMu.RUnlock()

	result := make(map[string]Stats, len(bwc.channels))
	for name, c := range bwc.channels {
		result[name] = c.stats()
	}
	return result
}

func (c *channelBandwidth) stats() Stats {
	return Stats{
		TotalIn:  c.in.Total(),
		TotalOut: c.out.Total(),
		RateIn:   c.in.Rate(),
		RateOut:  c.out.Rate(),
	}
}

// Reset 清除所有统计
func (bwc *BandwidthCounter) Reset() {
	bwc.totalIn.Store(0)
	bwc.totalOut.Store(0)
	bwc.totalInRate.Reset()
	bwc.totalOutRate.Reset()

	bwc.channelMu.Lock()
	bwc.channels = make(map[string]*channelBandwidth)
	bwc.channelMu.Unlock()
}

// TrimIdle 清理 since 之后没有流量的频道统计
func (bwc *BandwidthCounter) TrimIdle(since time.Time) {
	bwc.channelMu.Lock()
	defer bwc.channelMu.Unlock()

	for name, c := range bwc.channels {
		if c.in.LastUpdate().Before(since) && c.out.LastUpdate().Before(since) {
			delete(bwc.channels, name)
		}
	}
}
