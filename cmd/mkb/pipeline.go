package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"mkb/internal/ai"
	"mkb/internal/assembler"
	"mkb/internal/catalog"
	"mkb/internal/chat"
	"mkb/internal/config"
	"mkb/internal/funnel"
	"mkb/internal/intent"
	"mkb/internal/logging"
	"mkb/internal/provider"
	"mkb/internal/scrape"
	"mkb/internal/semantic"
	"mkb/internal/session"
	"mkb/internal/taxonomy"
)

// pipelineRuntime bundles the assembled components every command works
// against.
type pipelineRuntime struct {
	cfg       *config.Config
	assembler *assembler.Assembler
	pipeline  *chat.Pipeline
	sessions  *session.Store
	index     *semantic.Index
}

var (
	runtimeOnce   sync.Once
	sharedRuntime *pipelineRuntime
	runtimeErr    error
)

// getRuntime returns a shared pipeline runtime instance.
// The runtime is lazily initialized on first use.
func getRuntime(baseDir string, logger *logging.Logger) (*pipelineRuntime, error) {
	runtimeOnce.Do(func() {
		rt, err := buildRuntime(baseDir, logger)
		if err != nil {
			runtimeErr = err
			return
		}
		sharedRuntime = rt
	})
	return sharedRuntime, runtimeErr
}

// mustGetRuntime returns the shared runtime or exits on error.
func mustGetRuntime(baseDir string, logger *logging.Logger) *pipelineRuntime {
	rt, err := getRuntime(baseDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing pipeline: %v\n", err)
		os.Exit(1)
	}
	return rt
}

func buildRuntime(baseDir string, logger *logging.Logger) (*pipelineRuntime, error) {
	cfg, details, err := config.LoadConfigWithDetails(baseDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if details.UsedFile {
		logger.Debug("Loaded configuration", map[string]interface{}{
			"path":      details.Path,
			"overrides": len(details.Overrides),
		})
	}

	transport := provider.NewClient(0, logger)

	catClient := catalog.NewClient(transport, catalog.ClientConfig{
		CatalogURL: cfg.Sources.CatalogURL,
		SignalsURL: cfg.Sources.SignalsURL,
		PageSize:   cfg.Sources.PageSize,
		MaxPages:   cfg.Sources.MaxPages,
	}, logger)
	loader := catalog.NewLoader(catClient, catalog.TTLs{
		Products: time.Duration(cfg.TTL.CatalogSeconds) * time.Second,
		Signals:  time.Duration(cfg.TTL.SignalsSeconds) * time.Second,
	}, nil, logger)

	taxClient := taxonomy.NewClient(transport, taxonomy.ClientConfig{
		TaxonomyURL: cfg.Sources.TaxonomyURL,
		OEMURL:      cfg.Sources.OEMURL,
		PageSize:    cfg.Sources.PageSize,
		MaxPages:    cfg.Sources.MaxPages,
	}, logger)
	fetcher := taxonomy.NewFetcher(taxClient, time.Duration(cfg.TTL.TaxonomySeconds)*time.Second, nil, logger)

	playbook, err := funnel.LoadPlaybook(cfg.Playbook.Path)
	if err != nil {
		return nil, fmt.Errorf("load playbook: %w", err)
	}

	registry, err := scrape.LoadRegistry(cfg.Scrape.SourcesPath)
	if err != nil {
		return nil, fmt.Errorf("load content sources: %w", err)
	}
	scraper := scrape.NewScraper(registry, scrape.Options{
		UserAgent: cfg.Scrape.UserAgent,
		MaxChars:  cfg.Scrape.MaxContentChars,
	}, nil, logger)

	// The AI transport gets its own request-level timeout so detached
	// background work (index builds) stays bounded per call.
	aiClient := ai.NewClient(
		provider.NewClient(time.Duration(cfg.Timeouts.CompletionMs)*time.Millisecond, logger),
		ai.ClientConfig{
			Endpoint:             cfg.AI.Endpoint,
			APIKey:               cfg.AI.APIKey,
			APIVersion:           cfg.AI.APIVersion,
			CompletionDeployment: cfg.AI.CompletionDeployment,
			EmbeddingDeployment:  cfg.AI.EmbeddingDeployment,
		}, logger)

	var completer ai.Completer
	var index *semantic.Index
	if aiClient.Configured() {
		completer = aiClient
		index = semantic.NewIndex(aiClient, semantic.Config{
			MaxChunks:    cfg.Budget.MaxChunks,
			MaxDescChars: cfg.Budget.MaxDescriptionChars,
			BatchSize:    cfg.Budget.EmbedBatchSize,
			BatchDelay:   time.Duration(cfg.Budget.EmbedBatchDelayMs) * time.Millisecond,
			TopK:         cfg.Budget.TopK,
			StaleAfter:   time.Duration(cfg.TTL.IndexStaleSeconds) * time.Second,
		}, nil, logger)
	} else {
		logger.Debug("No AI endpoint configured, semantic retrieval and completions disabled", nil)
	}

	asm := assembler.New(assembler.Deps{
		Catalog:  loader,
		Taxonomy: fetcher,
		Resolver: intent.NewResolver(cfg.Sources.ListingBaseURL),
		Tracker:  funnel.NewTracker(playbook),
		Index:    index,
		Scraper:  scraper,
	}, assembler.Config{
		Budgets: assembler.Budgets{
			Catalog:    time.Duration(cfg.Timeouts.CatalogMs) * time.Millisecond,
			Taxonomy:   time.Duration(cfg.Timeouts.TaxonomyMs) * time.Millisecond,
			Signals:    time.Duration(cfg.Timeouts.SignalsMs) * time.Millisecond,
			Content:    time.Duration(cfg.Timeouts.ContentMs) * time.Millisecond,
			IndexBuild: time.Duration(cfg.Timeouts.IndexBuildMs) * time.Millisecond,
		},
		Limits: assembler.Limits{
			MaxProductsPerSection: cfg.Budget.MaxProductsPerSection,
			MaxSemanticMatches:    cfg.Budget.MaxSemanticMatches,
			MaxBlockBytes:         cfg.Budget.MaxBlockBytes,
		},
		BlockTTL: time.Duration(cfg.TTL.KnowledgeSeconds) * time.Second,
	}, nil, logger)

	sessions := session.NewStore(session.Config{
		TTL:         time.Duration(cfg.Session.TTLMinutes) * time.Minute,
		MaxMessages: cfg.Session.MaxMessages,
	}, nil, logger)

	return &pipelineRuntime{
		cfg:       cfg,
		assembler: asm,
		pipeline:  chat.New(asm, completer, logger),
		sessions:  sessions,
		index:     index,
	}, nil
}

// getBaseDir returns the directory configuration is resolved against.
func getBaseDir() (string, error) {
	return os.Getwd()
}

// mustGetBaseDir returns the base directory or exits on error.
func mustGetBaseDir() string {
	baseDir, err := getBaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return baseDir
}

// newContext creates a new context for command execution.
func newContext() context.Context {
	return context.Background()
}

// newLogger creates a logger with the specified format.
func newLogger(format string) *logging.Logger {
	logFormat := logging.HumanFormat
	if format == "json" {
		logFormat = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{
		Format: logFormat,
		Level:  logging.InfoLevel,
	})
}
