// Package candidates holds precomputed duels between matchmaking and the
// callers asking for the next pairing.
//
// Buffer is a bounded multi-producer/multi-consumer ring. Every slot carries a
// sequence stamp derived from the cursor position p that may use it next: 2p
// means free for a push at p, 2p+1 means it holds the value pushed at p. A pop
// at p re-stamps the slot 2(p+size) for the next lap. Free and full stamps
// differ in parity, so they never collide, even with a single slot. Producers
// and consumers claim a cursor position with CAS and publish by storing the
// next stamp, so neither side ever blocks.
package candidates

import "sync/atomic"

type slot[T any] struct {
	seq atomic.Uint64
	val T
}

// Buffer is a lock-free bounded pool. Pop order is the push order of the
// claimed positions but callers must not rely on it.
type Buffer[T any] struct {
	_       [64]byte
	head    atomic.Uint64 // next position to pop
	_       [56]byte
	tail    atomic.Uint64 // next position to push
	_       [56]byte
	dropped atomic.Uint64
	size    uint64
	slots   []slot[T]
}

// NewBuffer allocates a buffer holding at most capacity values. capacity
// below one is raised to one.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	b := &Buffer[T]{
		size:  uint64(capacity),
		slots: make([]slot[T], capacity),
	}
	for i := range b.slots {
		b.slots[i].seq.Store(2 * uint64(i))
	}
	return b
}

// TryPush stores v, returning false when the buffer is full. It never blocks.
func (b *Buffer[T]) TryPush(v T) bool {
	for {
		pos := b.tail.Load()
		s := &b.slots[pos%b.size]
		seq := s.seq.Load()
		switch {
		case seq == 2*pos:
			if b.tail.CompareAndSwap(pos, pos+1) {
				s.val = v
				s.seq.Store(2*pos + 1)
				return true
			}
		case seq < 2*pos:
			// slot still holds the value from the previous lap
			b.dropped.Add(1)
			return false
		}
		// another producer claimed pos; reload
	}
}

// TryPop removes one value. ok is false when nothing is buffered.
func (b *Buffer[T]) TryPop() (v T, ok bool) {
	for {
		pos := b.head.Load()
		s := &b.slots[pos%b.size]
		seq := s.seq.Load()
		switch {
		case seq == 2*pos+1:
			if b.head.CompareAndSwap(pos, pos+1) {
				v = s.val
				var zero T
				s.val = zero
				s.seq.Store(2 * (pos + b.size))
				return v, true
			}
		case seq < 2*pos+1:
			return v, false
		}
		// another consumer took pos; reload
	}
}

// Len returns the number of buffered values. The value is advisory and may
// be stale by the time the caller acts on it.
func (b *Buffer[T]) Len() int {
	head := b.head.Load()
	tail := b.tail.Load()
	if tail <= head {
		return 0
	}
	n := tail - head
	if n > b.size {
		n = b.size
	}
	return int(n)
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return int(b.size)
}

// Dropped returns how many pushes were refused because the buffer was full.
func (b *Buffer[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// BelowLowWater reports whether fewer than half of the slots are occupied.
func (b *Buffer[T]) BelowLowWater() bool {
	return 2*b.Len() < b.Cap()
}
