package catalog

import (
	"context"
	"time"

	"mkb/internal/cache"
	"mkb/internal/logging"
)

// Source is the upstream the loader refreshes from. *Client implements
// it; tests substitute fakes.
type Source interface {
	FetchProducts(ctx context.Context) ([]Product, error)
	FetchSignals(ctx context.Context) (Signals, error)
}

// TTLs carries the cache lifetimes for the two catalog tiers.
type TTLs struct {
	Products time.Duration
	Signals  time.Duration
}

// Loader wraps a Source in TTL cells. Within a TTL window reads are
// pure cache hits; after expiry the loader refetches, and a failed
// refetch serves the previous dataset marked stale.
//
// The product slice returned by Products is shared between callers and
// must be treated as read-only; use CopyProducts before ApplyFlags.
type Loader struct {
	source   Source
	products *cache.Cell[[]Product]
	signals  *cache.Cell[Signals]
	logger   *logging.Logger
}

// NewLoader creates a loader. A nil clock means the wall clock.
func NewLoader(source Source, ttls TTLs, clock cache.Clock, logger *logging.Logger) *Loader {
	return &Loader{
		source:   source,
		products: cache.NewCell[[]Product](ttls.Products, clock),
		signals:  cache.NewCell[Signals](ttls.Signals, clock),
		logger:   logger,
	}
}

// Products returns the cached product collection, refreshing it when
// the TTL has lapsed.
func (l *Loader) Products(ctx context.Context) (cache.Result[[]Product], error) {
	res, err := l.products.GetOrFetch(ctx, l.source.FetchProducts)
	if err != nil {
		return res, err
	}
	if res.Stale {
		l.logger.Warn("serving stale catalog after failed refresh", map[string]interface{}{
			"age":   res.Age.String(),
			"error": res.FetchErr.Error(),
		})
	}
	return res, nil
}

// Signals returns the cached editorial signals, refreshing them when
// the TTL has lapsed.
func (l *Loader) Signals(ctx context.Context) (cache.Result[Signals], error) {
	res, err := l.signals.GetOrFetch(ctx, l.source.FetchSignals)
	if err != nil {
		return res, err
	}
	if res.Stale {
		l.logger.Warn("serving stale signals after failed refresh", map[string]interface{}{
			"age":   res.Age.String(),
			"error": res.FetchErr.Error(),
		})
	}
	return res, nil
}

// Warm reports whether any product data is cached, fresh or stale.
func (l *Loader) Warm() bool {
	products, filled := l.products.Peek()
	return filled && len(products) > 0
}

// Invalidate drops both tiers so the next reads refetch.
func (l *Loader) Invalidate() {
	l.products.Invalidate()
	l.signals.Invalidate()
}

// Stats reports per-tier cache counters for the status surface.
func (l *Loader) Stats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"products": l.products.Stats(),
		"signals":  l.signals.Stats(),
	}
}
