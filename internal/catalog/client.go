package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mkb/internal/errors"
	"mkb/internal/logging"
	"mkb/internal/provider"
)

// Client fetches the product collection and the editorial signals
// dataset from their provider endpoints.
type Client struct {
	http       *provider.Client
	catalogURL string
	signalsURL string
	pageSize   int
	maxPages   int
	logger     *logging.Logger
}

// ClientConfig configures a catalog client.
type ClientConfig struct {
	CatalogURL string
	SignalsURL string
	PageSize   int
	MaxPages   int
}

// NewClient creates a catalog client on top of the shared provider
// transport.
func NewClient(http *provider.Client, cfg ClientConfig, logger *logging.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	return &Client{
		http:       http,
		catalogURL: cfg.CatalogURL,
		signalsURL: cfg.SignalsURL,
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		logger:     logger,
	}
}

// FetchProducts walks the paginated catalog endpoint and returns the
// normalized products in source order. Records without an id are
// dropped; an unrecognized envelope shape yields an empty page and a
// warning rather than an error.
func (c *Client) FetchProducts(ctx context.Context) ([]Product, error) {
	if c.catalogURL == "" {
		return nil, errors.New(errors.SourceUnavailable, "no catalog source configured", nil)
	}

	var products []Product
	for page := 1; page <= c.maxPages; page++ {
		body, err := c.http.GetJSON(ctx, pageURL(c.catalogURL, page, c.pageSize))
		if err != nil {
			return nil, fmt.Errorf("fetch catalog page %d: %w", page, err)
		}

		records, shape, err := provider.DecodeList[productRecord](body)
		if err != nil {
			return nil, errors.New(errors.BadEnvelope, fmt.Sprintf("catalog page %d", page), err)
		}
		if shape == provider.ShapeUnknown {
			c.logger.Warn("catalog page had unrecognized envelope shape", map[string]interface{}{
				"page": page,
			})
		}

		dropped := 0
		for _, rec := range records {
			p, ok := normalizeRecord(rec)
			if !ok {
				dropped++
				continue
			}
			products = append(products, p)
		}
		if dropped > 0 {
			c.logger.Warn("dropped catalog records without id", map[string]interface{}{
				"page":    page,
				"dropped": dropped,
			})
		}

		if len(records) < c.pageSize {
			break
		}
	}

	c.logger.Debug("catalog loaded", map[string]interface{}{
		"products": len(products),
	})
	return products, nil
}

// signalsDocument is the wire shape of the signals dataset, either bare
// or under a data/docs wrapper.
type signalsDocument struct {
	Featured      []string            `json:"featured"`
	BestSelling   []string            `json:"bestSelling"`
	RecentlyAdded []string            `json:"recentlyAdded"`
	ByCategory    map[string][]string `json:"byCategory"`
	ByOEM         map[string][]string `json:"byOem"`

	Data *signalsDocument `json:"data"`
	Docs *signalsDocument `json:"docs"`
}

// FetchSignals loads the editorial signals dataset. The document may be
// bare or wrapped the same way list responses are.
func (c *Client) FetchSignals(ctx context.Context) (Signals, error) {
	if c.signalsURL == "" {
		return Signals{}, errors.New(errors.SourceUnavailable, "no signals source configured", nil)
	}

	body, err := c.http.GetJSON(ctx, c.signalsURL)
	if err != nil {
		return Signals{}, fmt.Errorf("fetch signals: %w", err)
	}

	var doc signalsDocument
	if err := json.Unmarshal(bytes.TrimSpace(body), &doc); err != nil {
		return Signals{}, errors.New(errors.BadEnvelope, "signals document", err)
	}

	picked := &doc
	if picked.empty() && doc.Docs != nil {
		picked = doc.Docs
	}
	if picked.empty() && doc.Data != nil {
		picked = doc.Data
	}

	sig := Signals{
		Featured:      picked.Featured,
		BestSelling:   picked.BestSelling,
		RecentlyAdded: picked.RecentlyAdded,
		ByCategory:    picked.ByCategory,
		ByOEM:         picked.ByOEM,
	}
	if sig.Empty() {
		c.logger.Warn("signals document carried no recognizable lists", nil)
	}
	return sig, nil
}

func (d *signalsDocument) empty() bool {
	return len(d.Featured) == 0 && len(d.BestSelling) == 0 && len(d.RecentlyAdded) == 0 &&
		len(d.ByCategory) == 0 && len(d.ByOEM) == 0
}

func pageURL(base string, page, limit int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d&limit=%d", base, sep, page, limit)
}
