// Package pool provides memory pooling utilities for serialization hot
// paths and a bounded ring buffer backing version history and audit queues.
package pool

import (
	"bytes"
	"sync"
)

// BufferPool is a pool of bytes.Buffer for reducing allocations.
var BufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// GetBuffer retrieves a buffer from the pool, resetting it for use.
func GetBuffer() *bytes.Buffer {
	buf := BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool.
// Buffers larger than 64KB are discarded to avoid holding too much memory.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	if buf.Cap() > 64*1024 {
		return
	}
	BufferPool.Put(buf)
}

// RingBuffer is a fixed-size circular buffer. When full, Push overwrites
// the oldest item, which makes it a natural bound for version history and
// pending audit events.
type RingBuffer[T any] struct {
	data  []T
	head  int
	tail  int
	count int
	cap   int
	mu    sync.Mutex
}

// NewRingBuffer creates a new ring buffer with the given capacity.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{
		data: make([]T, capacity),
		cap:  capacity,
	}
}

// Push adds an item to the buffer. If full, overwrites the oldest item.
func (rb *RingBuffer[T]) Push(item T) (overwritten bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == rb.cap {
		rb.data[rb.tail] = item
		rb.tail = (rb.tail + 1) % rb.cap
		rb.head = (rb.head + 1) % rb.cap
		return true
	}

	rb.data[rb.tail] = item
	rb.tail = (rb.tail + 1) % rb.cap
	rb.count++
	return false
}

// Pop removes and returns the oldest item.
func (rb *RingBuffer[T]) Pop() (T, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	if rb.count == 0 {
		return zero, false
	}

	item := rb.data[rb.head]
	rb.data[rb.head] = zero
	rb.head = (rb.head + 1) % rb.cap
	rb.count--
	return item, true
}

// PopNewest removes and returns the most recently pushed item. Version
// history uses it to step back one revision at a time.
func (rb *RingBuffer[T]) PopNewest() (T, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	if rb.count == 0 {
		return zero, false
	}

	rb.tail = (rb.tail - 1 + rb.cap) % rb.cap
	item := rb.data[rb.tail]
	rb.data[rb.tail] = zero
	rb.count--
	return item, true
}

// Peek returns the oldest item without removing it.
func (rb *RingBuffer[T]) Peek() (T, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	if rb.count == 0 {
		return zero, false
	}

	return rb.data[rb.head], true
}

// Len returns the number of items in the buffer.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Cap returns the buffer capacity.
func (rb *RingBuffer[T]) Cap() int {
	return rb.cap
}

// IsEmpty returns true if the buffer is empty.
func (rb *RingBuffer[T]) IsEmpty() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count == 0
}

// Clear empties the buffer.
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	for i := range rb.data {
		rb.data[i] = zero
	}
	rb.head = 0
	rb.tail = 0
	rb.count = 0
}

// Items returns all items oldest-first without removing them.
func (rb *RingBuffer[T]) Items() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == 0 {
		return nil
	}

	result := make([]T, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.data[(rb.head+i)%rb.cap]
	}
	return result
}

// Drain returns all items oldest-first and clears the buffer.
func (rb *RingBuffer[T]) Drain() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == 0 {
		return nil
	}

	result := make([]T, rb.count)
	var zero T
	for i := 0; i < rb.count; i++ {
		idx := (rb.head + i) % rb.cap
		result[i] = rb.data[idx]
		rb.data[idx] = zero
	}

	rb.head = 0
	rb.tail = 0
	rb.count = 0

	return result
}
