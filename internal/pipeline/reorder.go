package pipeline

import (
	"sync"

	"logtrigger/internal/rules"
)

// ReorderBuffer holds results that arrived ahead of their turn. It only ever
// contains sequence numbers greater than the next expected one.
type ReorderBuffer struct {
	mu      sync.Mutex
	pending map[uint64][]rules.Firing
}

func NewReorderBuffer() *ReorderBuffer {
	return &ReorderBuffer{pending: make(map[uint64][]rules.Firing)}
}

func (b *ReorderBuffer) Put(seq uint64, firings []rules.Firing) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[seq] = firings
}

// Take removes and returns the entry for seq. An empty entry is reported as
// present with a nil slice.
func (b *ReorderBuffer) Take(seq uint64) ([]rules.Firing, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	firings, ok := b.pending[seq]
	if ok {
		delete(b.pending, seq)
	}
	return firings, ok
}

func (b *ReorderBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending)
}

// Drop discards every pending entry and returns how many were dropped.
func (b *ReorderBuffer) Drop() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.pending)
	clear(b.pending)
	return n
}
