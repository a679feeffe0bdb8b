package taxonomy

import (
	"context"
	"fmt"
	"strings"

	"mkb/internal/errors"
	"mkb/internal/logging"
	"mkb/internal/provider"
)

// Client fetches the category and OEM lists from their provider
// endpoints.
type Client struct {
	http        *provider.Client
	taxonomyURL string
	oemURL      string
	pageSize    int
	maxPages    int
	logger      *logging.Logger
}

// ClientConfig configures a taxonomy client.
type ClientConfig struct {
	TaxonomyURL string
	OEMURL      string
	PageSize    int
	MaxPages    int
}

// NewClient creates a taxonomy client on top of the shared provider
// transport.
func NewClient(http *provider.Client, cfg ClientConfig, logger *logging.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	return &Client{
		http:        http,
		taxonomyURL: cfg.TaxonomyURL,
		oemURL:      cfg.OEMURL,
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		logger:      logger,
	}
}

// FetchTree loads the full taxonomy: the paginated category list and,
// when an OEM endpoint is configured, the paginated OEM list. A missing
// OEM endpoint leaves OEMs empty rather than failing the tree.
func (c *Client) FetchTree(ctx context.Context) (Tree, error) {
	if c.taxonomyURL == "" {
		return Tree{}, errors.New(errors.SourceUnavailable, "no taxonomy source configured", nil)
	}

	categories, err := c.fetchCategories(ctx)
	if err != nil {
		return Tree{}, err
	}

	var oems []OEM
	if c.oemURL != "" {
		oems, err = c.fetchOEMs(ctx)
		if err != nil {
			return Tree{}, err
		}
	}

	c.logger.Debug("taxonomy loaded", map[string]interface{}{
		"categories": len(categories),
		"oems":       len(oems),
	})
	return Tree{Categories: categories, OEMs: oems}, nil
}

func (c *Client) fetchCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	for page := 1; page <= c.maxPages; page++ {
		body, err := c.http.GetJSON(ctx, pageURL(c.taxonomyURL, page, c.pageSize))
		if err != nil {
			return nil, fmt.Errorf("fetch taxonomy page %d: %w", page, err)
		}

		records, shape, err := provider.DecodeList[categoryRecord](body)
		if err != nil {
			return nil, errors.New(errors.BadEnvelope, fmt.Sprintf("taxonomy page %d", page), err)
		}
		if shape == provider.ShapeUnknown {
			c.logger.Warn("taxonomy page had unrecognized envelope shape", map[string]interface{}{
				"page": page,
			})
		}

		dropped := 0
		for _, rec := range records {
			cat, ok := normalizeCategory(rec, 1)
			if !ok {
				dropped++
				continue
			}
			categories = append(categories, cat)
		}
		if dropped > 0 {
			c.logger.Warn("dropped taxonomy records without id", map[string]interface{}{
				"page":    page,
				"dropped": dropped,
			})
		}

		if len(records) < c.pageSize {
			break
		}
	}
	return categories, nil
}

func (c *Client) fetchOEMs(ctx context.Context) ([]OEM, error) {
	var oems []OEM
	for page := 1; page <= c.maxPages; page++ {
		body, err := c.http.GetJSON(ctx, pageURL(c.oemURL, page, c.pageSize))
		if err != nil {
			return nil, fmt.Errorf("fetch oem page %d: %w", page, err)
		}

		records, shape, err := provider.DecodeList[oemRecord](body)
		if err != nil {
			return nil, errors.New(errors.BadEnvelope, fmt.Sprintf("oem page %d", page), err)
		}
		if shape == provider.ShapeUnknown {
			c.logger.Warn("oem page had unrecognized envelope shape", map[string]interface{}{
				"page": page,
			})
		}

		for _, rec := range records {
			if oem, ok := normalizeOEM(rec); ok {
				oems = append(oems, oem)
			}
		}

		if len(records) < c.pageSize {
			break
		}
	}
	return oems, nil
}

func pageURL(base string, page, limit int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d&limit=%d", base, sep, page, limit)
}
