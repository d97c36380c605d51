package ssr

import "sync/atomic"

// fifo is a lock-free single-producer/single-consumer ring buffer of
// non-nil pointers (spec §4.1, C1). Capacity is rounded up to the next
// power of two. push and pop are each safe to call concurrently from
// exactly one producer and one consumer thread; anything beyond that
// requires an external lock, per the contract.
//
// Memory ordering: a slot is written before its occupancy becomes visible
// to the consumer (writeIdx is only advanced after the Store into slots),
// and the consumer only reads a slot after observing that writeIdx has
// passed it — atomic.Uint64 load/store gives the necessary
// acquire/release pairing for that handoff.
type fifo[T any] struct {
	mask     uint64
	slots    []atomic.Pointer[T]
	readIdx  atomic.Uint64
	writeIdx atomic.Uint64 // producer-owned
}

// newFIFO returns a fifo with capacity rounded up to the next power of two,
// at least 2.
func newFIFO[T any](capacity int) *fifo[T] {
	if capacity < 2 {
		capacity = 2
	}
	n := nextPowerOfTwo(capacity)
	return &fifo[T]{
		mask:  uint64(n - 1),
		slots: make([]atomic.Pointer[T], n),
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// push stores p in the queue. It returns false, leaving the queue
// unchanged, if the queue is full. Producer-only.
func (f *fifo[T]) push(p *T) bool {
	if p == nil {
		panic("ssr: fifo.push of nil pointer")
	}
	w := f.writeIdx.Load()
	r := f.readIdx.Load()
	if w-r >= uint64(len(f.slots)) {
		return false // full
	}
	f.slots[w&f.mask].Store(p)
	f.writeIdx.Store(w + 1)
	return true
}

// pop removes and returns the oldest pushed value, or nil if the queue is
// empty. Consumer-only.
func (f *fifo[T]) pop() *T {
	r := f.readIdx.Load()
	w := f.writeIdx.Load()
	if r == w {
		return nil // empty
	}
	p := f.slots[r&f.mask].Swap(nil)
	f.readIdx.Store(r + 1)
	return p
}

// len reports an approximate occupancy; only meaningful for diagnostics,
// since the producer and consumer indices may be read out of step with
// the opposite thread's progress.
func (f *fifo[T]) len() int {
	w := f.writeIdx.Load()
	r := f.readIdx.Load()
	return int(w - r)
}

func (f *fifo[T]) capacity() int { return len(f.slots) }
