package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	id    int
	value string
}

func (e testEvent) ID() int { return e.id }

// TestPool_FireDeferred 测试 Fire 延迟到 Update 分发
func TestPool_FireDeferred(t *testing.T) {
	pool := NewPool[testEvent](PoolDefault)
	var got []string

	_, err := pool.Subscribe(1, func(sender any, e testEvent) {
		got = append(got, sender.(string)+":"+e.value)
	})
	require.NoError(t, err)

	pool.Fire("s", testEvent{id: 1, value: "a"})
	pool.Fire("s", testEvent{id: 1, value: "b"})

	assert.Equal(t, 2, pool.Count())
	assert.Empty(t, got)

	require.NoError(t, pool.Update())
	assert.Equal(t, []string{"s:a", "s:b"}, got)
	assert.Equal(t, 0, pool.Count())
	t.Log("✅ 延迟分发测试通过")
}

// TestPool_FireNow 测试立即分发
func TestPool_FireNow(t *testing.T) {
	pool := NewPool[testEvent](PoolDefault)
	calls := 0
	_, err := pool.Subscribe(3, func(any, testEvent) { calls++ })
	require.NoError(t, err)

	require.NoError(t, pool.FireNow(nil, testEvent{id: 3}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, pool.Count())
}

// TestPool_MultiHandler 测试多处理器模式
func TestPool_MultiHandler(t *testing.T) {
	strict := NewPool[testEvent](PoolDefault)
	_, err := strict.Subscribe(1, func(any, testEvent) {})
	require.NoError(t, err)
	_, err = strict.Subscribe(1, func(any, testEvent) {})
	assert.ErrorIs(t, err, ErrMultiHandler)

	multi := NewPool[testEvent](AllowMultiHandler)
	calls := 0
	_, err = multi.Subscribe(1, func(any, testEvent) { calls++ })
	require.NoError(t, err)
	_, err = multi.Subscribe(1, func(any, testEvent) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 2, multi.HandlerCount(1))

	require.NoError(t, multi.FireNow(nil, testEvent{id: 1}))
	assert.Equal(t, 2, calls)
}

// TestPool_NoHandler 测试没有处理器时的模式差异
func TestPool_NoHandler(t *testing.T) {
	strict := NewPool[testEvent](PoolDefault)
	strict.Fire(nil, testEvent{id: 9})
	assert.ErrorIs(t, strict.Update(), ErrNoHandler)

	lenient := NewPool[testEvent](AllowNoHandler)
	lenient.Fire(nil, testEvent{id: 9})
	assert.NoError(t, lenient.Update())
}

// TestPool_DefaultHandler 测试默认处理器
func TestPool_DefaultHandler(t *testing.T) {
	pool := NewPool[testEvent](PoolDefault)
	var got []int
	pool.SetDefaultHandler(func(_ any, e testEvent) { got = append(got, e.id) })

	calls := 0
	_, err := pool.Subscribe(1, func(any, testEvent) { calls++ })
	require.NoError(t, err)

	pool.Fire(nil, testEvent{id: 1})
	pool.Fire(nil, testEvent{id: 2})
	require.NoError(t, pool.Update())

	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{2}, got)
}

// TestPool_Unsubscribe 测试取消订阅
func TestPool_Unsubscribe(t *testing.T) {
	pool := NewPool[testEvent](AllowNoHandler)
	unsubscribe, err := pool.Subscribe(1, func(any, testEvent) {})
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, pool.HandlerCount(1))

	_, err = pool.Subscribe(1, nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

// TestPool_ClearAndShutdown 测试清空与关闭
func TestPool_ClearAndShutdown(t *testing.T) {
	pool := NewPool[testEvent](AllowNoHandler)
	pool.Fire(nil, testEvent{id: 1})
	pool.Clear()
	assert.Equal(t, 0, pool.Count())

	_, err := pool.Subscribe(1, func(any, testEvent) {})
	require.NoError(t, err)

	pool.Shutdown()
	assert.Equal(t, 0, pool.HandlerCount(1))

	pool.Fire(nil, testEvent{id: 1})
	assert.Equal(t, 0, pool.Count(), "关闭后 Fire 被忽略")
}

// TestPool_ConcurrentFire 测试多协程 Fire
func TestPool_ConcurrentFire(t *testing.T) {
	pool := NewPool[testEvent](PoolDefault)
	calls := 0
	_, err := pool.Subscribe(1, func(any, testEvent) { calls++ })
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Fire(nil, testEvent{id: 1})
		}()
	}
	wg.Wait()

	require.NoError(t, pool.Update())
	assert.Equal(t, 50, calls)
}
