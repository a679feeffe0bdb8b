package taxonomy

import (
	"context"
	"time"

	"mkb/internal/cache"
	"mkb/internal/logging"
)

// Source is the upstream the fetcher refreshes from. *Client
// implements it; tests substitute fakes.
type Source interface {
	FetchTree(ctx context.Context) (Tree, error)
}

// Fetcher serves the taxonomy through a TTL cell. Within the TTL
// window reads are cache hits; after expiry the fetcher refetches, and
// a failed refetch serves the previous tree marked stale. When the
// fetch fails with nothing cached, the embedded static taxonomy
// substitutes and the live source is retried on the next read.
type Fetcher struct {
	source Source
	tree   *cache.Cell[Tree]
	logger *logging.Logger
}

// NewFetcher creates a fetcher. A nil clock means the wall clock.
func NewFetcher(source Source, ttl time.Duration, clock cache.Clock, logger *logging.Logger) *Fetcher {
	return &Fetcher{
		source: source,
		tree:   cache.NewCell[Tree](ttl, clock),
		logger: logger,
	}
}

// Tree returns the current taxonomy snapshot. It never returns an
// error: total source failure degrades to the embedded fallback.
func (f *Fetcher) Tree(ctx context.Context) cache.Result[Tree] {
	res, err := f.tree.GetOrFetch(ctx, f.source.FetchTree)
	if err != nil {
		f.logger.Warn("taxonomy unavailable, using embedded fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return cache.Result[Tree]{Value: Fallback(), FetchErr: err}
	}
	if res.Stale {
		f.logger.Warn("serving stale taxonomy after failed refresh", map[string]interface{}{
			"age":   res.Age.String(),
			"error": res.FetchErr.Error(),
		})
	}
	return res
}

// Table returns the keyword table for the current snapshot.
func (f *Fetcher) Table(ctx context.Context) Table {
	return BuildTable(f.Tree(ctx).Value)
}

// Invalidate drops the cached tree so the next read refetches.
func (f *Fetcher) Invalidate() {
	f.tree.Invalidate()
}

// Stats reports the cache counters for the status surface.
func (f *Fetcher) Stats() cache.Stats {
	return f.tree.Stats()
}
