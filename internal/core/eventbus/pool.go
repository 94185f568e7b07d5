package eventbus

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	log "github.com/dep2p/go-netkit/internal/util/logger"
)

var logger = log.Logger("core/eventbus")

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrNilHandler 处理器为空
	ErrNilHandler = errors.New("event handler is nil")

	// ErrMultiHandler 事件池不允许同一编号有多个处理器
	ErrMultiHandler = errors.New("event does not allow multiple handlers")

	// ErrNoHandler 事件没有处理器
	ErrNoHandler = errors.New("event has no handler")

	// ErrPoolShutdown 事件池已关闭
	ErrPoolShutdown = errors.New("event pool is shut down")
)

// ============================================================================
// Pool 实现
// ============================================================================

// Identified 带编号的事件
type Identified interface {
	ID() int
}

// Handler 事件处理函数
type Handler[E Identified] func(sender any, e E)

// PoolMode 事件池模式
type PoolMode int

const (
	// PoolDefault 每个事件编号必须有且仅有一个处理器（或默认处理器）
	PoolDefault PoolMode = 0

	// AllowNoHandler 允许事件没有处理器
	AllowNoHandler PoolMode = 1

	// AllowMultiHandler 允许同一编号有多个处理器
	AllowMultiHandler PoolMode = 2
)

// Pool 按编号分发的延迟事件池
type Pool[E Identified] struct {
	mode PoolMode

	handlersMu     sync.Mutex
	nextID         uint64
	nodes          map[int][]handlerEntry[E]
	defaultHandler Handler[E]

	queueMu  sync.Mutex
	queue    []queuedEvent[E]
	shutdown bool
}

type handlerEntry[E Identified] struct {
	id uint64
	fn Handler[E]
}

type queuedEvent[E Identified] struct {
	sender any
	event  E
}

// NewPool 创建事件池
func NewPool[E Identified](mode PoolMode) *Pool[E] {
	return &Pool[E]{
		mode:  mode,
		nodes: make(map[int][]handlerEntry[E]),
	}
}

// Subscribe 订阅指定编号的事件，返回取消订阅函数
func (p *Pool[E]) Subscribe(id int, fn Handler[E]) (func(), error) {
	if fn == nil {
		return nil, ErrNilHandler
	}

	p.handlersMu.Lock()
	if len(p.nodes[id]) > 0 && p.mode&AllowMultiHandler == 0 {
		p.handlersMu.Unlock()
		return nil, fmt.Errorf("event '%d': %w", id, ErrMultiHandler)
	}
	p.nextID++
	entryID := p.nextID
	p.nodes[id] = append(p.nodes[id], handlerEntry[E]{id: entryID, fn: fn})
	p.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { p.unsubscribe(id, entryID) })
	}, nil
}

func (p *Pool[E]) unsubscribe(id int, entryID uint64) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()

	entries := p.nodes[id]
	for i, h := range entries {
		if h.id == entryID {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(p.nodes, id)
		return
	}
	p.nodes[id] = entries
}

// HandlerCount 返回指定编号的处理器数量
func (p *Pool[E]) HandlerCount(id int) int {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	return len(p.nodes[id])
}

// SetDefaultHandler 设置没有处理器时使用的默认处理函数
func (p *Pool[E]) SetDefaultHandler(fn Handler[E]) {
	p.handlersMu.Lock()
	p.defaultHandler = fn
	p.handlersMu.Unlock()
}

// Count 返回待分发的事件数量
func (p *Pool[E]) Count() int {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	return len(p.queue)
}

// Fire 把事件放入队列，在下一次 Update 时分发
//
// 可在任意协程调用。
func (p *Pool[E]) Fire(sender any, e E) {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()

	if p.shutdown {
		return
	}
	p.queue = append(p.queue, queuedEvent[E]{sender: sender, event: e})
}

// FireNow 立即分发事件
func (p *Pool[E]) FireNow(sender any, e E) error {
	return p.handle(sender, e)
}

// Update 分发队列中的所有事件
//
// 没有处理器的事件在非 AllowNoHandler 模式下返回 ErrNoHandler（合并返回），
// 其余事件照常分发。
func (p *Pool[E]) Update() error {
	p.queueMu.Lock()
	pending := p.queue
	p.queue = nil
	p.queueMu.Unlock()

	var errs error
	for _, q := range pending {
		errs = multierr.Append(errs, p.handle(q.sender, q.event))
	}
	return errs
}

func (p *Pool[E]) handle(sender any, e E) error {
	p.handlersMu.Lock()
	entries := make([]handlerEntry[E], len(p.nodes[e.ID()]))
	copy(entries, p.nodes[e.ID()])
	defaultHandler := p.defaultHandler
	p.handlersMu.Unlock()

	if len(entries) > 0 {
		for _, h := range entries {
			h.fn(sender, e)
		}
		return nil
	}

	if defaultHandler != nil {
		defaultHandler(sender, e)
		return nil
	}

	if p.mode&AllowNoHandler == 0 {
		return fmt.Errorf("event '%d': %w", e.ID(), ErrNoHandler)
	}

	logger.Debug("事件没有处理器，已忽略", "id", e.ID())
	return nil
}

// Clear 清空待分发的事件
func (p *Pool[E]) Clear() {
	p.queueMu.Lock()
	p.queue = nil
	p.queueMu.Unlock()
}

// Shutdown 关闭事件池，清空队列与所有处理器
func (p *Pool[E]) Shutdown() {
	p.queueMu.Lock()
	p.queue = nil
	p.shutdown = true
	p.queueMu.Unlock()

	p.handlersMu.Lock()
	p.nodes = make(map[int][]handlerEntry[E])
	p.defaultHandler = nil
	p.handlersMu.Unlock()
}
