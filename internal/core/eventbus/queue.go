package eventbus

import "sync"

// Queue 延迟执行队列
//
// 任意协程可以 Post，拥有者在自己的协程上 Drain 依次执行。
// 零值可直接使用。
type Queue struct {
	mu    sync.Mutex
	items []func()
}

// Post 放入一个待执行的函数
func (q *Queue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()
}

// Len 待执行的函数数量
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain 按放入顺序执行所有待执行的函数，返回执行数量
//
// 执行期间新放入的函数留到下一次 Drain。
func (q *Queue) Drain() int {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for _, fn := range items {
		fn()
	}
	return len(items)
}

// Clear 丢弃所有待执行的函数
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
