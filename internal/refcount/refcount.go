// Package refcount provides a relaxed atomic reference counter with a
// saturation check, shared by record envelopes and anything else that
// needs to know how many holders remain before freeing a payload.
package refcount

import "sync/atomic"

// Counter is a relaxed atomic counter. The zero value is not usable;
// construct with New.
type Counter struct {
	v atomic.Int64
}

// New returns a Counter initialized to n.
func New(n int64) *Counter {
	c := &Counter{}
	c.v.Store(n)
	return c
}

// Add adds delta and returns the resulting value. It panics if the result
// would go negative — a refcount reaching below zero means some holder
// released a reference it never held, which is a caller bug, not a
// recoverable runtime condition.
func (c *Counter) Add(delta int64) int64 {
	n := c.v.Add(delta)
	if n < 0 {
		panic("refcount: decremented below zero")
	}
	return n
}

// Load returns the current value.
func (c *Counter) Load() int64 {
	return c.v.Load()
}
