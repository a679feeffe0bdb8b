// Package cache provides the in-memory TTL primitives every data tier
// builds on. A Cell caches one value, a Map caches keyed values. Both
// serve the previous value when a refresh fails, so a flaky upstream
// degrades to stale data instead of an empty answer.
package cache

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so tests can drive expiry deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock used in production.
func RealClock() Clock { return realClock{} }

// Fetcher loads a fresh value from the underlying source.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Result carries a cached value plus the provenance the response
// envelope reports.
type Result[T any] struct {
	Value T
	// Hit is true when the value was served from cache within its TTL,
	// with no fetch attempted.
	Hit bool
	// Stale is true when the TTL had lapsed, the refresh failed, and the
	// previous value was served instead.
	Stale bool
	// Age is the time since the value was last successfully filled.
	Age time.Duration
	// FetchErr holds the refresh failure behind a stale serve. It is nil
	// on hits and fresh fills.
	FetchErr error
}

// Stats is a point-in-time snapshot of a cell's traffic.
type Stats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	StaleServes int64     `json:"staleServes"`
	Errors      int64     `json:"errors"`
	Filled      bool      `json:"filled"`
	LastFill    time.Time `json:"lastFill,omitempty"`
}

// Cell caches a single value with a fixed TTL.
//
// Concurrent callers over an expired cell coalesce: the first caller
// fetches under the lock, the rest block and then see the fresh value.
type Cell[T any] struct {
	mu    sync.Mutex
	clock Clock
	ttl   time.Duration

	value    T
	filled   bool
	filledAt time.Time

	stats Stats
}

// NewCell creates a cell with the given TTL. A nil clock means the wall
// clock.
func NewCell[T any](ttl time.Duration, clock Clock) *Cell[T] {
	if clock == nil {
		clock = RealClock()
	}
	return &Cell[T]{clock: clock, ttl: ttl}
}

// GetOrFetch returns the cached value while it is within its TTL, and
// otherwise invokes fetch. A failed refresh serves the previous value
// marked stale; the error is returned only when no value has ever been
// filled.
func (c *Cell[T]) GetOrFetch(ctx context.Context, fetch Fetcher[T]) (Result[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.filled && now.Sub(c.filledAt) < c.ttl {
		c.stats.Hits++
		return Result[T]{Value: c.value, Hit: true, Age: now.Sub(c.filledAt)}, nil
	}

	c.stats.Misses++
	value, err := fetch(ctx)
	if err != nil {
		c.stats.Errors++
		if c.filled {
			c.stats.StaleServes++
			return Result[T]{Value: c.value, Stale: true, Age: now.Sub(c.filledAt), FetchErr: err}, nil
		}
		return Result[T]{}, err
	}

	c.value = value
	c.filled = true
	c.filledAt = c.clock.Now()
	return Result[T]{Value: value}, nil
}

// Peek returns the current value without fetching, expired or not.
func (c *Cell[T]) Peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.filled
}

// Invalidate drops the cached value so the next read fetches.
func (c *Cell[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.filled = false
	c.filledAt = time.Time{}
}

// Stats returns a snapshot of the cell's counters.
func (c *Cell[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Filled = c.filled
	if c.filled {
		s.LastFill = c.filledAt
	}
	return s
}
