package circularbuff

import (
	"errors"
)

// Buffer implements a non-thread safe fixed size circular log.
// Once max size is reached, every subsequent writing overwrites the oldest element.
type Buffer[T any] struct {
	maxSize int
	next    int
	size    int
	buf     []T
}

// New creates a circular buffer of the given size.
func New[T any](maxSize int) (*Buffer[T], error) {
	if maxSize <= 0 {
		return nil, errors.New("must provide a positive size")
	}
	return &Buffer[T]{
		maxSize: maxSize,
		buf:     make([]T, maxSize),
	}, nil
}

// Add appends a value. Returns true if the oldest value was overwritten.
func (c *Buffer[T]) Add(v T) (evicted bool) {
	evicted = c.size == c.maxSize
	c.buf[c.next] = v
	c.next = (c.next + 1) % c.maxSize
	if !evicted {
		c.size++
	}
	return evicted
}

// Items returns the values from oldest to newest.
func (c *Buffer[T]) Items() []T {
	res := make([]T, 0, c.size)
	start := (c.next - c.size + c.maxSize) % c.maxSize
	for i := 0; i < c.size; i++ {
		res = append(res, c.buf[(start+i)%c.maxSize])
	}
	return res
}

// Oldest returns the oldest value.
func (c *Buffer[T]) Oldest() (v T, ok bool) {
	if c.size == 0 {
		return v, false
	}
	return c.buf[(c.next-c.size+c.maxSize)%c.maxSize], true
}

// Newest returns the latest added value.
func (c *Buffer[T]) Newest() (v T, ok bool) {
	if c.size == 0 {
		return v, false
	}
	return c.buf[(c.next-1+c.maxSize)%c.maxSize], true
}
