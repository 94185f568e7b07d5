// Package refpool 提供按类型复用对象的引用池
//
// Acquire 返回一个已重置的实例，Release 调用 Clear 后放回池中。
// 同一实例在 Acquire 与 Release 之间只归一个使用方所有。
package refpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrNotAcquired 归还了不是从该池获取（或已归还）的实例
var ErrNotAcquired = errors.New("reference was not acquired from this pool")

// Reference 可被引用池复用的对象
type Reference interface {
	// Clear 清理对象，使其可以被再次获取
	Clear()
}

// Stats 引用池统计
type Stats struct {
	// Unused 池中空闲实例数
	Unused int

	// Using 已获取未归还的实例数
	Using int

	// Acquired 累计获取次数
	Acquired int64

	// Released 累计归还次数
	Released int64

	// Added 累计新建实例数
	Added int64
}

// Pool 引用池
//
// PT 必须是 *T 且实现 Reference。
type Pool[T any, PT interface {
	*T
	Reference
}] struct {
	strict bool

	mu    sync.Mutex
	free  []PT
	using map[PT]struct{}

	acquired atomic.Int64
	released atomic.Int64
	added    atomic.Int64
}

// New 创建引用池
//
// strict 为 true 时检查重复归还与归还陌生实例。
func New[T any, PT interface {
	*T
	Reference
}](strict bool) *Pool[T, PT] {
	return &Pool[T, PT]{
		strict: strict,
		using:  make(map[PT]struct{}),
	}
}

// Acquire 获取一个实例
func (p *Pool[T, PT]) Acquire() PT {
	p.acquired.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()

	var ref PT
	if n := len(p.free); n > 0 {
		ref = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	} else {
		ref = PT(new(T))
		p.added.Add(1)
	}

	if p.strict {
		p.using[ref] = struct{}{}
	}
	return ref
}

// Release 归还实例
func (p *Pool[T, PT]) Release(ref PT) error {
	if ref == nil {
		return fmt.Errorf("release nil reference: %w", ErrNotAcquired)
	}

	ref.Clear()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.strict {
		if _, ok := p.using[ref]; !ok {
			return ErrNotAcquired
		}
		delete(p.using, ref)
	}

	p.free = append(p.free, ref)
	p.released.Add(1)
	return nil
}

// Stats 返回统计信息
func (p *Pool[T, PT]) Stats() Stats {
	p.mu.Lock()
	unused := len(p.free)
	p.mu.Unlock()

	acquired := p.acquired.Load()
	released := p.released.Load()
	return Stats{
		Unused:   unused,
		Using:    int(acquired - released),
		Acquired: acquired,
		Released: released,
		Added:    p.added.Load(),
	}
}

// Reset 丢弃所有空闲实例
func (p *Pool[T, PT]) Reset() {
	p.mu.Lock()
	p.free = nil
	p.mu.Unlock()
}
