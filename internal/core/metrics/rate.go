package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultRateWindow 默认速率窗口（秒）
const DefaultRateWindow = 60

// ============================================================================
// RateMeter - 速率计算器
// ============================================================================

// RateMeter 速率计算器（基于滑动窗口）
//
// 使用 window 个 1 秒桶计算最近 window 秒的平均速率。
type RateMeter struct {
	clock clock.Clock

	mu       sync.RWMutex
	buckets  []int64
	lastIdx  int
	lastTime time.Time
	total    int64
}

// NewRateMeter 创建速率计算器
//
// clk 为 nil 时使用系统时钟；window 不大于 0 时使用 DefaultRateWindow。
func NewRateMeter(clk clock.Clock, window int) *RateMeter {
	if clk == nil {
		clk = clock.New()
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateMeter{
		clock:    clk,
		buckets:  make([]int64, window),
		lastTime: clk.Now(),
	}
}

// Add 添加字节数到当前桶
func (r *RateMeter) Add(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advance()
	r.buckets[r.lastIdx] += n
	r.total += n
}

// advance 按流逝的整秒数轮转桶，调用方持有写锁
func (r *RateMeter) advance() {
	now := r.clock.Now()
	elapsed := now.Sub(r.lastTime)
	if elapsed < time.Second {
		return
	}

	seconds := int(elapsed / time.Second)
	if seconds >= len(r.buckets) {
		// 整个窗口都没有数据
		for i := range r.buckets {
			r.buckets[i] = 0
		}
		r.lastIdx = 0
	} else {
		for i := 0; i < seconds; i++ {
			r.lastIdx = (r.lastIdx + 1) % len(r.buckets)
			r.buckets[r.lastIdx] = 0
		}
	}
	r.lastTime = r.lastTime.Add(time.Duration(seconds) * time.Second)
}

// Rate 返回窗口内的平均速率（字节/秒）
func (r *RateMeter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advance()
	var sum int64
	for _, v := range r.buckets {
		sum += v
	}
	return float64(sum) / float64(len(r.buckets))
}

// Total 返回累计总量
func (r *RateMeter) Total() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Reset 重置速率计算器
func (r *RateMeter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.buckets {
		r.buckets[i] = 0
	}
	r.lastIdx = 0
	r.total = 0
	r.lastTime = r.clock.Now()
}

// LastUpdate 返回最后一次轮转的时间
func (r *RateMeter) LastUpdate() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastTime
}
