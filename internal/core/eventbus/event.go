package eventbus

import "sync"

// Event 同步多播事件
//
// 零值可直接使用。
type Event[T any] struct {
	mu     sync.Mutex
	nextID uint64
	sinks  []sink[T]
}

type sink[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe 订阅事件，返回取消订阅函数
//
// 取消订阅函数可重复调用。
func (e *Event[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.sinks = append(e.sinks, sink[T]{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Event[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range e.sinks {
		if s.id == id {
			e.sinks = append(e.sinks[:i:i], e.sinks[i+1:]...)
			return
		}
	}
}

// Count 返回订阅者数量
func (e *Event[T]) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sinks)
}

// Fire 依次调用所有订阅者，返回被调用的订阅者数量
func (e *Event[T]) Fire(args T) int {
	e.mu.Lock()
	snapshot := make([]sink[T], len(e.sinks))
	copy(snapshot, e.sinks)
	e.mu.Unlock()

	for _, s := range snapshot {
		s.fn(args)
	}
	return len(snapshot)
}

// Clear 移除所有订阅者
func (e *Event[T]) Clear() {
	e.mu.Lock()
	e.sinks = nil
	e.mu.Unlock()
}
