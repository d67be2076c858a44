// Package proxy picks proxy endpoints from a fixed pool.
package proxy

import "math/rand/v2"

// IntN returns a uniformly random int in [0, n). It must be safe for
// concurrent use.
type IntN func(n int) int

// Selector returns a random proxy from an immutable pool. The pool is copied
// at construction and never mutated, so Pick needs no locking.
type Selector struct {
	pool []string
	intN IntN
}

// Option configures a Selector.
type Option func(*Selector)

// WithIntN replaces the random source, e.g. with a deterministic one in tests.
func WithIntN(fn IntN) Option {
	return func(s *Selector) {
		s.intN = fn
	}
}

// NewSelector creates a Selector over a copy of proxies.
func NewSelector(proxies []string, opts ...Option) *Selector {
	s := &Selector{
		pool: append([]string(nil), proxies...),
		intN: rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pick returns a random proxy, or "" when the pool is empty.
func (s *Selector) Pick() string {
	if s == nil || len(s.pool) == 0 {
		return ""
	}
	return s.pool[s.intN(len(s.pool))]
}

// Len returns the pool size.
func (s *Selector) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pool)
}
