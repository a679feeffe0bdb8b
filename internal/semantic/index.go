package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"mkb/internal/ai"
	"mkb/internal/cache"
	"mkb/internal/catalog"
	"mkb/internal/logging"
)

// Config bounds the index build and query behavior.
type Config struct {
	// MaxChunks caps how many products are indexed.
	MaxChunks int
	// MaxDescChars caps the description portion of each chunk.
	MaxDescChars int
	// BatchSize is how many chunks are embedded per service call.
	BatchSize int
	// BatchDelay is the pause between consecutive embedding calls.
	BatchDelay time.Duration
	// TopK is the default match count for Search.
	TopK int
	// StaleAfter is the age past which Stats reports the index stale.
	// Staleness is informational; the index only rebuilds on Invalidate.
	StaleAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxChunks <= 0 {
		c.MaxChunks = 500
	}
	if c.MaxDescChars <= 0 {
		c.MaxDescChars = 500
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = time.Hour
	}
	return c
}

// Match is one search hit.
type Match struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Stats is a point-in-time snapshot of the index for the status
// surface.
type Stats struct {
	Ready     bool      `json:"ready"`
	Building  bool      `json:"building"`
	Chunks    int       `json:"chunks"`
	BuiltAt   time.Time `json:"builtAt,omitempty"`
	Stale     bool      `json:"stale"`
	LastError string    `json:"lastError,omitempty"`
}

// Index holds the chunk texts and their vectors, index-aligned and
// replaced together. The build runs at most once per process until
// Invalidate; concurrent callers share one in-flight build instead of
// starting their own.
type Index struct {
	embedder ai.Embedder
	cfg      Config
	clock    cache.Clock
	logger   *logging.Logger

	mu          sync.Mutex
	cond        *sync.Cond
	building    bool
	ready       bool
	chunks      []Chunk
	vectors     [][]float64
	builtAt     time.Time
	buildErr    error
	lastAttempt time.Time
}

// buildRetryWait throttles rebuild attempts after a failed build so a
// burst of requests does not serially re-fail against a dead embedder.
const buildRetryWait = 30 * time.Second

// NewIndex creates an empty index. A nil clock means the wall clock.
func NewIndex(embedder ai.Embedder, cfg Config, clock cache.Clock, logger *logging.Logger) *Index {
	if clock == nil {
		clock = cache.RealClock()
	}
	x := &Index{
		embedder: embedder,
		cfg:      cfg.withDefaults(),
		clock:    clock,
		logger:   logger,
	}
	x.cond = sync.NewCond(&x.mu)
	return x
}

// Ready reports whether the index has been built.
func (x *Index) Ready() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.ready
}

// EnsureBuilt builds the index from products unless it is already
// built. A build already in flight is joined, not duplicated: callers
// block until it finishes and share its outcome, and a failed build is
// not retried until buildRetryWait has passed. An empty product set is
// not an error; the build is simply deferred until data exists.
func (x *Index) EnsureBuilt(ctx context.Context, products []catalog.Product) error {
	x.mu.Lock()
	for x.building {
		x.cond.Wait()
	}
	if x.ready {
		x.mu.Unlock()
		return nil
	}
	if x.buildErr != nil && x.clock.Now().Sub(x.lastAttempt) < buildRetryWait {
		err := x.buildErr
		x.mu.Unlock()
		return err
	}
	if len(products) == 0 {
		x.mu.Unlock()
		return nil
	}
	x.building = true
	x.mu.Unlock()

	chunks := BuildChunks(products, x.cfg.MaxDescChars)
	if len(chunks) > x.cfg.MaxChunks {
		x.logger.Warn("chunk cap trims the corpus", map[string]interface{}{
			"products": len(chunks),
			"cap":      x.cfg.MaxChunks,
		})
		chunks = chunks[:x.cfg.MaxChunks]
	}

	vectors, err := x.embedAll(ctx, chunks)

	x.mu.Lock()
	x.building = false
	x.lastAttempt = x.clock.Now()
	if err != nil {
		x.buildErr = err
		x.cond.Broadcast()
		x.mu.Unlock()
		return err
	}

	if len(vectors) < len(chunks) {
		x.logger.Warn("embedding response short, indexing aligned prefix", map[string]interface{}{
			"chunks":  len(chunks),
			"vectors": len(vectors),
		})
		chunks = chunks[:len(vectors)]
	}

	x.chunks = chunks
	x.vectors = vectors
	x.ready = true
	x.builtAt = x.clock.Now()
	x.buildErr = nil
	x.cond.Broadcast()
	x.mu.Unlock()

	x.logger.Info("semantic index built", map[string]interface{}{
		"chunks": len(chunks),
	})
	return nil
}

// embedAll embeds chunks in fixed-size batches with the configured
// inter-batch delay. A batch error discards the build; a short batch
// response ends the walk and the prefix embedded so far is kept.
func (x *Index) embedAll(ctx context.Context, chunks []Chunk) ([][]float64, error) {
	var vectors [][]float64
	for start := 0; start < len(chunks); start += x.cfg.BatchSize {
		if start > 0 && x.cfg.BatchDelay > 0 {
			if err := sleep(ctx, x.cfg.BatchDelay); err != nil {
				return nil, err
			}
		}

		end := start + x.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := x.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
		if len(batch) < len(texts) {
			break
		}
	}
	return vectors, nil
}

// Search embeds the query and returns the top-k chunks by cosine
// similarity, ties broken by index order. k <= 0 means the configured
// default. An unbuilt or empty index returns no matches and no error.
func (x *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	x.mu.Lock()
	ready := x.ready
	chunks := x.chunks
	vectors := x.vectors
	x.mu.Unlock()

	if !ready || len(chunks) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = x.cfg.TopK
	}

	embedded, err := x.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embedded) == 0 {
		return nil, fmt.Errorf("query embedding returned no vector")
	}
	queryVec := embedded[0]

	matches := make([]Match, len(chunks))
	for i := range chunks {
		matches[i] = Match{Chunk: chunks[i], Score: Cosine(queryVec, vectors[i])}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Invalidate drops the vectors and the ready flag so the next
// EnsureBuilt rebuilds from the current catalog.
func (x *Index) Invalidate() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.chunks = nil
	x.vectors = nil
	x.ready = false
	x.builtAt = time.Time{}
	x.buildErr = nil
	x.lastAttempt = time.Time{}
}

// Stats reports the index state for the status surface.
func (x *Index) Stats() Stats {
	x.mu.Lock()
	defer x.mu.Unlock()

	s := Stats{
		Ready:    x.ready,
		Building: x.building,
		Chunks:   len(x.chunks),
	}
	if x.ready {
		s.BuiltAt = x.builtAt
		s.Stale = x.clock.Now().Sub(x.builtAt) >= x.cfg.StaleAfter
	}
	if x.buildErr != nil {
		s.LastError = x.buildErr.Error()
	}
	return s
}

// Cosine is the similarity of two vectors: dot(a,b) / (|a|*|b|).
// A zero-norm input scores zero. Mismatched lengths compare the
// overlapping prefix.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, v := range a {
		normA += v * v
	}
	for _, v := range b {
		normB += v * v
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
