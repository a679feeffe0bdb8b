package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"mkb/internal/cache"
	"mkb/internal/logging"
)

// maxBodyBytes bounds how much of a page is read before parsing.
const maxBodyBytes = 1 << 20

// Content is the extracted text of one source.
type Content struct {
	Source string `json:"source"`
	Text   string `json:"text"`
	Stale  bool   `json:"stale"`
}

// Options tunes the scraper.
type Options struct {
	// UserAgent identifies the fetcher to the scraped sites.
	UserAgent string
	// MaxChars caps extracted text for sources without their own cap.
	MaxChars int
	// HTTPClient overrides the transport; nil means a plain client
	// bounded only by the caller's context.
	HTTPClient *http.Client
}

// Scraper fetches registry sources and caches the extracted text per
// source with that source's TTL. A failed refresh serves the previous
// text marked stale; a source with no cached text at all is skipped.
type Scraper struct {
	registry  Registry
	client    *http.Client
	userAgent string
	maxChars  int
	cache     *cache.Map[string]
	logger    *logging.Logger
}

// NewScraper creates a scraper over registry. A nil clock means the
// wall clock.
func NewScraper(registry Registry, opts Options, clock cache.Clock, logger *logging.Logger) *Scraper {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "mkb-content-fetcher/1.0"
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 4000
	}
	return &Scraper{
		registry:  registry,
		client:    client,
		userAgent: opts.UserAgent,
		maxChars:  opts.MaxChars,
		cache:     cache.NewMap[string](clock),
		logger:    logger,
	}
}

// FetchAll returns the extracted text of every reachable source in
// registry order. Sources that fail with nothing cached are dropped
// with a warning; FetchAll itself never fails.
func (s *Scraper) FetchAll(ctx context.Context) []Content {
	var contents []Content
	for _, src := range s.registry.Sources {
		src := src
		result, err := s.cache.GetOrFetch(ctx, src.Name, src.TTL(), func(ctx context.Context) (string, error) {
			return s.fetchSource(ctx, src)
		})
		if err != nil {
			s.logger.Warn("content source unavailable", map[string]interface{}{
				"source": src.Name,
				"error":  err.Error(),
			})
			continue
		}
		if result.Stale {
			s.logger.Warn("serving stale content after failed refresh", map[string]interface{}{
				"source": src.Name,
				"age":    result.Age.String(),
				"error":  result.FetchErr.Error(),
			})
		}
		if result.Value == "" {
			continue
		}
		contents = append(contents, Content{Source: src.Name, Text: result.Value, Stale: result.Stale})
	}
	return contents
}

func (s *Scraper) fetchSource(ctx context.Context, src Source) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned HTTP %d", src.Name, resp.StatusCode)
	}

	maxChars := src.MaxChars
	if maxChars <= 0 {
		maxChars = s.maxChars
	}
	text, err := ExtractText(io.LimitReader(resp.Body, maxBodyBytes), maxChars)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", src.Name, err)
	}

	s.logger.Debug("content source scraped", map[string]interface{}{
		"source": src.Name,
		"chars":  len(text),
	})
	return text, nil
}

// Invalidate drops every cached source so the next FetchAll refetches.
func (s *Scraper) Invalidate() {
	s.cache.Clear()
}

// Stats returns the content cache counters.
func (s *Scraper) Stats() cache.Stats {
	return s.cache.Stats()
}
