package cache

import (
	"context"
	"sync"
	"time"
)

type mapEntry[T any] struct {
	value    T
	filledAt time.Time
}

// Map caches keyed values. The TTL is supplied per call so one map can
// hold entries with different lifetimes, such as scraped sources that
// each declare their own refresh interval.
type Map[T any] struct {
	mu    sync.Mutex
	clock Clock

	entries map[string]*mapEntry[T]
	stats   Stats
}

// NewMap creates an empty keyed cache. A nil clock means the wall clock.
func NewMap[T any](clock Clock) *Map[T] {
	if clock == nil {
		clock = RealClock()
	}
	return &Map[T]{clock: clock, entries: make(map[string]*mapEntry[T])}
}

// GetOrFetch returns the entry for key while it is within ttl, and
// otherwise invokes fetch. Like Cell, a failed refresh serves the
// previous entry marked stale.
func (m *Map[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch Fetcher[T]) (Result[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	entry, ok := m.entries[key]
	if ok && now.Sub(entry.filledAt) < ttl {
		m.stats.Hits++
		return Result[T]{Value: entry.value, Hit: true, Age: now.Sub(entry.filledAt)}, nil
	}

	m.stats.Misses++
	value, err := fetch(ctx)
	if err != nil {
		m.stats.Errors++
		if ok {
			m.stats.StaleServes++
			return Result[T]{Value: entry.value, Stale: true, Age: now.Sub(entry.filledAt), FetchErr: err}, nil
		}
		return Result[T]{}, err
	}

	m.entries[key] = &mapEntry[T]{value: value, filledAt: m.clock.Now()}
	return Result[T]{Value: value}, nil
}

// Invalidate drops a single key.
func (m *Map[T]) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Clear drops every entry.
func (m *Map[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*mapEntry[T])
}

// Size returns the number of live entries, expired or not.
func (m *Map[T]) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns a snapshot of the map's counters.
func (m *Map[T]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Filled = len(m.entries) > 0
	return s
}
