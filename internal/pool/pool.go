// Package pool provides bounded free lists of reusable buffers.
package pool

import (
	"code.hybscloud.com/atomix"
)

type metrics struct {
	hits   atomix.Uint64
	misses atomix.Uint64
}

func (m *metrics) hit() {
	m.hits.Add(1)
}

func (m *metrics) miss() {
	m.misses.Add(1)
}

// Hits reports how many Gets were served from the pool, out of all Gets.
func (m *metrics) Hits() (hits, total uint64) {
	hits = m.hits.Load()
	return hits, hits + m.misses.Load()
}

// SlicePool provides a pool of slices of a fixed length.
type SlicePool[S ~[]T, T any] struct {
	metrics

	ch     chan S
	length int
}

// NewSlicePool returns a pool holding at most depth slices of the given length.
func NewSlicePool[S ~[]T, T any](depth, length int) *SlicePool[S, T] {
	if length <= 0 {
		panic("pool: slice length must be greater than zero")
	}

	return &SlicePool[S, T]{
		ch:     make(chan S, depth),
		length: length,
	}
}

// Get returns a slice of the pool's length, allocating one on a miss.
// A nil pool returns nil.
func (p *SlicePool[S, T]) Get() S {
	if p == nil {
		return nil
	}

	select {
	case b := <-p.ch:
		p.hit()
		return b[:p.length]

	default:
		p.miss()
		return make(S, p.length)
	}
}

// Put returns b to the pool.
// Slices of a different capacity are dropped, as are slices that do not fit.
func (p *SlicePool[S, T]) Put(b S) {
	if p == nil || cap(b) != p.length {
		return
	}

	select {
	case p.ch <- b:
	default:
	}
}

// Len returns the length of the slices handed out by the pool.
func (p *SlicePool[S, T]) Len() int {
	if p == nil {
		return 0
	}

	return p.length
}
