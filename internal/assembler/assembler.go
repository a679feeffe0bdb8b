// Package assembler produces the bounded context block handed to the
// generation layer: it fans out to every data source under per-source
// timeout budgets, resolves intent and conversation stage, folds in
// semantic matches and editorial content, and trims the result to
// budget. Sources degrade independently; assembly itself never fails.
package assembler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mkb/internal/cache"
	"mkb/internal/catalog"
	"mkb/internal/errors"
	"mkb/internal/funnel"
	"mkb/internal/intent"
	"mkb/internal/logging"
	"mkb/internal/scrape"
	"mkb/internal/semantic"
	"mkb/internal/taxonomy"
)

// Budgets are the per-source timeout budgets, ordered by criticality:
// the catalog gets the longest, editorial content the shortest. Each
// fetch runs under its own context so a losing fetch is cancelled, not
// merely abandoned.
type Budgets struct {
	Catalog    time.Duration
	Taxonomy   time.Duration
	Signals    time.Duration
	Content    time.Duration
	IndexBuild time.Duration
}

func (b Budgets) withDefaults() Budgets {
	if b.Catalog <= 0 {
		b.Catalog = 3 * time.Second
	}
	if b.Taxonomy <= 0 {
		b.Taxonomy = 2 * time.Second
	}
	if b.Signals <= 0 {
		b.Signals = 1500 * time.Millisecond
	}
	if b.Content <= 0 {
		b.Content = time.Second
	}
	if b.IndexBuild <= 0 {
		b.IndexBuild = 45 * time.Second
	}
	return b
}

// Limits bound the assembled block.
type Limits struct {
	MaxProductsPerSection int
	MaxSemanticMatches    int
	MaxBlockBytes         int
}

func (l Limits) withDefaults() Limits {
	if l.MaxProductsPerSection <= 0 {
		l.MaxProductsPerSection = 8
	}
	if l.MaxSemanticMatches <= 0 {
		l.MaxSemanticMatches = 5
	}
	if l.MaxBlockBytes <= 0 {
		l.MaxBlockBytes = 16000
	}
	return l
}

// Config tunes the assembler.
type Config struct {
	Budgets Budgets
	Limits  Limits
	// BlockTTL is how long an assembled block stays cached. Zero
	// means 5 minutes.
	BlockTTL time.Duration
}

// Options are the per-request assembly switches.
type Options struct {
	// IncludeFullCatalog adds the complete product enumeration, which
	// is omitted by default to keep the block small.
	IncludeFullCatalog bool `json:"includeFullCatalog"`
}

// Deps are the pipeline components the assembler orchestrates. Index
// and Scraper are optional; a nil Index skips semantic retrieval and a
// nil Scraper skips editorial content.
type Deps struct {
	Catalog  *catalog.Loader
	Taxonomy *taxonomy.Fetcher
	Resolver *intent.Resolver
	Tracker  *funnel.Tracker
	Index    *semantic.Index
	Scraper  *scrape.Scraper
}

// assembledBlock is what the block cache holds: the rendered text and
// the trimming it took to fit budget.
type assembledBlock struct {
	Block      string
	Truncation Truncation
}

// Assembler builds context blocks. Blocks are cached per
// (query, options, stage) so identical questions inside a TTL window
// get byte-identical context.
type Assembler struct {
	catalog  *catalog.Loader
	taxonomy *taxonomy.Fetcher
	resolver *intent.Resolver
	tracker  *funnel.Tracker
	index    *semantic.Index
	scraper  *scrape.Scraper

	budgets  Budgets
	limits   Limits
	blockTTL time.Duration
	blocks   *cache.Map[assembledBlock]
	clock    cache.Clock
	logger   *logging.Logger
}

// New creates an assembler. A nil clock means the wall clock; a nil
// resolver or tracker falls back to defaults.
func New(deps Deps, cfg Config, clock cache.Clock, logger *logging.Logger) *Assembler {
	if clock == nil {
		clock = cache.RealClock()
	}
	if deps.Resolver == nil {
		deps.Resolver = intent.NewResolver("")
	}
	if deps.Tracker == nil {
		deps.Tracker = funnel.NewTracker(nil)
	}
	if cfg.BlockTTL <= 0 {
		cfg.BlockTTL = 5 * time.Minute
	}
	return &Assembler{
		catalog:  deps.Catalog,
		taxonomy: deps.Taxonomy,
		resolver: deps.Resolver,
		tracker:  deps.Tracker,
		index:    deps.Index,
		scraper:  deps.Scraper,
		budgets:  cfg.Budgets.withDefaults(),
		limits:   cfg.Limits.withDefaults(),
		blockTTL: cfg.BlockTTL,
		blocks:   cache.NewMap[assembledBlock](clock),
		clock:    clock,
		logger:   logger,
	}
}

// Assemble produces the context block for one query. historyLen counts
// the conversation messages exchanged before this one. Assemble always
// returns a usable Result; when no catalog data exists at all, the
// block states that plainly instead of fabricating content.
func (a *Assembler) Assemble(ctx context.Context, query string, historyLen int, opts Options) Result {
	query = strings.TrimSpace(query)

	var (
		productsRes cache.Result[[]catalog.Product]
		productsErr error
		signalsRes  cache.Result[catalog.Signals]
		signalsErr  error
		treeRes     cache.Result[taxonomy.Tree]
		contents    []scrape.Content
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(ctx, a.budgets.Catalog)
		defer cancel()
		productsRes, productsErr = a.catalog.Products(fctx)
		return nil
	})
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(ctx, a.budgets.Signals)
		defer cancel()
		signalsRes, signalsErr = a.catalog.Signals(fctx)
		return nil
	})
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(ctx, a.budgets.Taxonomy)
		defer cancel()
		treeRes = a.taxonomy.Tree(fctx)
		return nil
	})
	if a.scraper != nil {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, a.budgets.Content)
			defer cancel()
			contents = a.scraper.FetchAll(fctx)
			return nil
		})
	}
	_ = g.Wait()

	reports := []SourceReport{
		reportFor("catalog", productsRes, productsErr),
		reportFor("signals", signalsRes, signalsErr),
		taxonomyReport(treeRes),
	}
	if a.scraper != nil {
		reports = append(reports, contentReport(contents))
	}

	// Fixed dependency order: taxonomy before intent, intent before
	// stage.
	it := a.resolver.Resolve(query, taxonomy.BuildTable(treeRes.Value))
	st := a.tracker.Classify(historyLen, query, it)

	if a.index != nil && len(productsRes.Value) > 0 {
		a.kickIndexBuild(productsRes.Value)
	}

	key := blockKey(query, opts, st.Stage)
	blockRes, blockErr := a.blocks.GetOrFetch(ctx, key, a.blockTTL, func(ctx context.Context) (assembledBlock, error) {
		return a.buildBlock(ctx, query, it, st, productsRes.Value, signalsRes.Value, treeRes.Value, contents, opts)
	})

	warnings := degradationWarnings(reports)
	result := Result{Intent: it, Stage: st}
	if blockErr != nil {
		result.Block = unavailableBlock
		warnings = append(warnings, "knowledge base unavailable")
	} else {
		result.Block = blockRes.Value.Block
		result.Trace.Truncation = blockRes.Value.Truncation
	}

	result.Trace.Sources = reports
	result.Trace.Cache = CacheReport{
		Hit:   blockRes.Hit,
		Age:   blockRes.Age,
		Stale: blockRes.Stale,
		Key:   key,
	}
	result.Trace.IndexReady = a.index != nil && a.index.Ready()
	result.Trace.Warnings = warnings
	return result
}

// buildBlock renders a block from the fetched data. It fails only when
// there is no catalog data at all; the caller substitutes the
// knowledge-base-unavailable statement per request so a recovering
// catalog is picked up immediately instead of waiting out the block
// TTL.
func (a *Assembler) buildBlock(ctx context.Context, query string, it intent.Intent, st funnel.State, products []catalog.Product, signals catalog.Signals, tree taxonomy.Tree, contents []scrape.Content, opts Options) (assembledBlock, error) {
	if len(products) == 0 {
		return assembledBlock{}, errors.New(errors.KnowledgeEmpty, "no catalog data, cached or live", nil)
	}

	products = catalog.CopyProducts(products)
	catalog.ApplyFlags(products, signals, a.clock.Now())

	var matches []semantic.Match
	if a.index != nil && a.index.Ready() {
		found, err := a.index.Search(ctx, query, a.limits.MaxSemanticMatches)
		if err != nil {
			a.logger.Warn("semantic retrieval skipped", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			matches = found
		}
	}

	sections := buildSections(blockInput{
		Query:    query,
		Intent:   it,
		Stage:    st,
		Products: products,
		Signals:  signals,
		Tree:     tree,
		Matches:  matches,
		Contents: contents,
		Opts:     opts,
		Limits:   a.limits,
	})
	block, trunc := merge(sections, a.limits.MaxBlockBytes)
	if !trunc.Truncated && !opts.IncludeFullCatalog && len(products) > a.limits.MaxProductsPerSection {
		trunc = Truncation{
			Truncated: true,
			Shown:     a.limits.MaxProductsPerSection,
			Total:     len(products),
			Reason:    "max-products-per-section",
		}
	}

	a.logger.Debug("context block assembled", map[string]interface{}{
		"bytes":    len(block),
		"sections": len(sections),
		"semantic": len(matches),
	})
	return assembledBlock{Block: block, Truncation: trunc}, nil
}

// kickIndexBuild starts the semantic index build in the background so
// no request blocks on embedding the corpus. The build is single-
// flight; redundant kicks join the in-flight build and return.
func (a *Assembler) kickIndexBuild(products []catalog.Product) {
	stats := a.index.Stats()
	if stats.Ready || stats.Building {
		return
	}
	go func() {
		bctx, cancel := context.WithTimeout(context.Background(), a.budgets.IndexBuild)
		defer cancel()
		if err := a.index.EnsureBuilt(bctx, products); err != nil {
			a.logger.Warn("semantic index build failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
}

// RebuildIndex drops the semantic index and rebuilds it from the
// current catalog synchronously.
func (a *Assembler) RebuildIndex(ctx context.Context) error {
	if a.index == nil {
		return errors.New(errors.IndexNotReady, "semantic retrieval is not configured", nil)
	}
	res, err := a.catalog.Products(ctx)
	if err != nil {
		return err
	}
	a.index.Invalidate()
	return a.index.EnsureBuilt(ctx, res.Value)
}

// Status is a point-in-time snapshot of every cache tier for the
// status surface.
type Status struct {
	Catalog  map[string]cache.Stats `json:"catalog"`
	Taxonomy cache.Stats            `json:"taxonomy"`
	Blocks   cache.Stats            `json:"blocks"`
	Content  *cache.Stats           `json:"content,omitempty"`
	Index    *semantic.Stats        `json:"index,omitempty"`
}

// Status reports the cache tiers and index state.
func (a *Assembler) Status() Status {
	s := Status{
		Catalog:  a.catalog.Stats(),
		Taxonomy: a.taxonomy.Stats(),
		Blocks:   a.blocks.Stats(),
	}
	if a.scraper != nil {
		stats := a.scraper.Stats()
		s.Content = &stats
	}
	if a.index != nil {
		stats := a.index.Stats()
		s.Index = &stats
	}
	return s
}

// ResolveIntent classifies one query against the live taxonomy without
// assembling a block.
func (a *Assembler) ResolveIntent(ctx context.Context, query string) intent.Intent {
	fctx, cancel := context.WithTimeout(ctx, a.budgets.Taxonomy)
	defer cancel()
	return a.resolver.Resolve(strings.TrimSpace(query), a.taxonomy.Table(fctx))
}

// Ready reports whether the pipeline can serve: the catalog cache is
// warm, or the catalog source answers a probe fetch.
func (a *Assembler) Ready(ctx context.Context) bool {
	if a.catalog.Warm() {
		return true
	}
	fctx, cancel := context.WithTimeout(ctx, a.budgets.Catalog)
	defer cancel()
	_, err := a.catalog.Products(fctx)
	return err == nil
}

// InvalidateCaches drops every cache tier except the semantic index,
// which only RebuildIndex replaces.
func (a *Assembler) InvalidateCaches() {
	a.catalog.Invalidate()
	a.taxonomy.Invalidate()
	a.blocks.Clear()
	if a.scraper != nil {
		a.scraper.Invalidate()
	}
}

// blockKey normalizes the query and folds in everything that changes
// the rendered block.
func blockKey(query string, opts Options, stage funnel.Stage) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return fmt.Sprintf("%s|full=%t|stage=%s", normalized, opts.IncludeFullCatalog, stage)
}

func taxonomyReport(res cache.Result[taxonomy.Tree]) SourceReport {
	if res.Value.FromFallback {
		report := SourceReport{Name: "taxonomy", Status: StatusFallback}
		if res.FetchErr != nil {
			report.Error = res.FetchErr.Error()
		}
		return report
	}
	return reportFor("taxonomy", res, nil)
}

func contentReport(contents []scrape.Content) SourceReport {
	report := SourceReport{Name: "content"}
	if len(contents) == 0 {
		report.Status = StatusUnavailable
		return report
	}
	report.Status = StatusFresh
	for _, c := range contents {
		if c.Stale {
			report.Status = StatusStale
			break
		}
	}
	return report
}

func degradationWarnings(reports []SourceReport) []string {
	var warnings []string
	for _, r := range reports {
		switch r.Status {
		case StatusUnavailable:
			warnings = append(warnings, r.Name+" unavailable")
		case StatusStale:
			warnings = append(warnings, r.Name+" data is stale")
		case StatusFallback:
			warnings = append(warnings, "taxonomy served from embedded fallback")
		}
	}
	return warnings
}
