package pipeline

import "sync/atomic"

// SequenceCounter hands out 1, 2, 3, ... and is never reset.
type SequenceCounter struct {
	n atomic.Uint64
}

func (c *SequenceCounter) Next() uint64 {
	return c.n.Add(1)
}

// Last returns the most recently issued value, or 0.
func (c *SequenceCounter) Last() uint64 {
	return c.n.Load()
}
