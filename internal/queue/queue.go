package queue

import "sync"

// Queue is an unbounded FIFO safe for any number of producers and consumers.
// After Stop, consumers drain the remaining items and then observe ok=false.
type Queue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []T
	head    int
	stopped bool
}

func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item and wakes one waiting consumer. It returns false and
// drops the item once the queue has been stopped.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.cond.Signal()
	return true
}

// WaitAndPop blocks until an item is available or the queue is stopped.
// It returns ok=false only when the queue is stopped and empty.
func (q *Queue[T]) WaitAndPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 && !q.stopped {
		q.cond.Wait()
	}

	return q.popLocked()
}

func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.popLocked()
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.lenLocked()
}

// Stop is idempotent and wakes every blocked consumer.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	q.cond.Broadcast()
}

func (q *Queue[T]) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.stopped
}

// Clear discards every pending item and returns how many were dropped.
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.lenLocked()
	q.items = nil
	q.head = 0
	return n
}

func (q *Queue[T]) lenLocked() int {
	return len(q.items) - q.head
}

func (q *Queue[T]) popLocked() (T, bool) {
	var zero T
	if q.lenLocked() == 0 {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// compact once the consumed prefix dominates the backing array
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return item, true
}
