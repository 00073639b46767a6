package engine

import (
	"math/bits"
	"sync/atomic"
)

// Queue is a bounded ring of samples with exactly one writer (the producer)
// and one reader (the hardware callback). Neither side ever blocks or
// allocates; the writer learns how much room there is and the reader gets
// as many samples as are available.
type Queue struct {
	buf  []float32
	mask uint64
	// write and read are free running counters; only the producer stores
	// write and only the consumer stores read.
	write atomic.Uint64
	_     [56]byte
	read  atomic.Uint64
}

// NewQueue returns a queue holding at least size samples. The capacity is
// rounded up to the next power of two.
func NewQueue(size int) *Queue {
	if size < 2 {
		size = 2
	}
	c := 1 << bits.Len(uint(size-1))
	return &Queue{buf: make([]float32, c), mask: uint64(c - 1)}
}

// Cap returns the capacity of the queue in samples.
func (q *Queue) Cap() int { return len(q.buf) }

// Len returns the number of queued samples. It is exact when called by either
// end of the queue and approximate otherwise.
func (q *Queue) Len() int {
	return int(q.write.Load() - q.read.Load())
}

// Free returns how many samples can be written without overwriting unread
// ones.
func (q *Queue) Free() int { return len(q.buf) - q.Len() }

// Write appends as many samples as fit and returns the count. Producer side
// only.
func (q *Queue) Write(samples []float32) int {
	w := q.write.Load()
	n := min(len(samples), len(q.buf)-int(w-q.read.Load()))
	for i := 0; i < n; i++ {
		q.buf[(w+uint64(i))&q.mask] = samples[i]
	}
	q.write.Store(w + uint64(n))
	return n
}

// Read moves up to len(dst) samples into dst and returns the count. Consumer
// side only.
func (q *Queue) Read(dst []float32) int {
	r := q.read.Load()
	n := min(len(dst), int(q.write.Load()-r))
	for i := 0; i < n; i++ {
		dst[i] = q.buf[(r+uint64(i))&q.mask]
	}
	q.read.Store(r + uint64(n))
	return n
}

// Discard drops everything queued so far and returns how many samples were
// dropped. Consumer side only.
func (q *Queue) Discard() int {
	r := q.read.Load()
	w := q.write.Load()
	q.read.Store(w)
	return int(w - r)
}
