package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 200; i++ {
		require.True(t, q.Push(i))
	}
	assert.Equal(t, 200, q.Len())

	for i := 0; i < 200; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := q.TryPop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_StopDrainsRemainingItems(t *testing.T) {
	q := New[string]()
	q.Push("a")
	q.Push("b")
	q.Stop()

	assert.False(t, q.Push("c"))

	v, ok := q.WaitAndPop()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = q.WaitAndPop()
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = q.WaitAndPop()
	assert.False(t, ok)
}

func TestQueue_StopWakesAllConsumers(t *testing.T) {
	q := New[int]()

	const consumers = 8
	var wg sync.WaitGroup
	results := make(chan bool, consumers)
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.WaitAndPop()
			results <- ok
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Stop()
	q.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumers were not woken by Stop")
	}

	close(results)
	for ok := range results {
		assert.False(t, ok)
	}
	assert.True(t, q.Stopped())
}

func TestQueue_ConcurrentProducersConsumers(t *testing.T) {
	q := New[int]()

	const producers = 4
	const perProducer = 1000

	var consumed sync.Map
	var cwg sync.WaitGroup
	for i := 0; i < 4; i++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				v, ok := q.WaitAndPop()
				if !ok {
					return
				}
				_, dup := consumed.LoadOrStore(v, struct{}{})
				assert.False(t, dup, "item %d consumed twice", v)
			}
		}()
	}

	var pwg sync.WaitGroup
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(p*perProducer + i)
			}
		}(p)
	}

	pwg.Wait()
	q.Stop()
	cwg.Wait()

	count := 0
	consumed.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, producers*perProducer, count)
}

func TestQueue_Clear(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)

	assert.Equal(t, 2, q.Clear())
	assert.Equal(t, 0, q.Len())
	assert.True(t, q.Push(3))
}
