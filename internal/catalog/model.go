// Package catalog holds the marketplace product model, the provider
// client that loads it, and the freshness-aware loader the rest of the
// pipeline reads from.
package catalog

import (
	"math"
	"strings"
	"time"
)

// PricePoint is one price/billing-cycle combination offered for a
// product.
type PricePoint struct {
	Amount       float64 `json:"amount"`
	BillingCycle string  `json:"billingCycle"`
}

// SourceHints carries the merchandising flags exactly as the source
// record asserted them. A nil field means the source had no opinion,
// which matters to flag resolution.
type SourceHints struct {
	Featured   *bool
	TopSelling *bool
	Latest     *bool
}

// Product is a normalized marketplace product. Identity fields never
// change after load; the merchandising flags are recomputed whenever
// editorial signals are applied.
type Product struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Vendor        string       `json:"vendor,omitempty"`
	Category      string       `json:"category"`
	CategoryID    string       `json:"categoryId,omitempty"`
	SubCategory   string       `json:"subCategory,omitempty"`
	SubCategoryID string       `json:"subCategoryId,omitempty"`
	Prices        []PricePoint `json:"prices,omitempty"`
	Description   string       `json:"description,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	Features      []string     `json:"features,omitempty"`
	CreatedAt     time.Time    `json:"createdAt,omitempty"`

	Featured   bool `json:"featured"`
	TopSelling bool `json:"topSelling"`
	Latest     bool `json:"latest"`

	Hints SourceHints `json:"-"`
}

// Signals is the editorial signals dataset: ordered merchandising lists
// and per-category/per-OEM rankings. Read-only once loaded.
type Signals struct {
	Featured      []string            `json:"featured"`
	BestSelling   []string            `json:"bestSelling"`
	RecentlyAdded []string            `json:"recentlyAdded"`
	ByCategory    map[string][]string `json:"byCategory"`
	ByOEM         map[string][]string `json:"byOem"`
}

// Empty reports whether the dataset carries no signal at all.
func (s Signals) Empty() bool {
	return len(s.Featured) == 0 && len(s.BestSelling) == 0 && len(s.RecentlyAdded) == 0 &&
		len(s.ByCategory) == 0 && len(s.ByOEM) == 0
}

// productRecord is the wire shape of a catalog entry. Every field is
// optional; normalization fills the gaps.
type productRecord struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Vendor        string       `json:"vendor"`
	Category      string       `json:"category"`
	CategoryID    string       `json:"categoryId"`
	SubCategory   string       `json:"subCategory"`
	SubCategoryID string       `json:"subCategoryId"`
	Price         *float64     `json:"price"`
	BillingCycle  string       `json:"billingCycle"`
	Prices        []PricePoint `json:"prices"`
	Description   string       `json:"description"`
	Tags          []string     `json:"tags"`
	Features      []string     `json:"features"`
	CreatedAt     string       `json:"createdAt"`
	Featured      *bool        `json:"featured"`
	TopSelling    *bool        `json:"topSelling"`
	Latest        *bool        `json:"latest"`
}

var createdAtLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// normalizeRecord turns a raw catalog record into a Product. Missing or
// malformed fields default instead of failing the load: a blank name
// falls back to the id, a blank category to "Uncategorized", and
// negative or non-finite prices to zero.
func normalizeRecord(rec productRecord) (Product, bool) {
	if strings.TrimSpace(rec.ID) == "" {
		return Product{}, false
	}

	p := Product{
		ID:            strings.TrimSpace(rec.ID),
		Name:          strings.TrimSpace(rec.Name),
		Vendor:        strings.TrimSpace(rec.Vendor),
		Category:      strings.TrimSpace(rec.Category),
		CategoryID:    strings.TrimSpace(rec.CategoryID),
		SubCategory:   strings.TrimSpace(rec.SubCategory),
		SubCategoryID: strings.TrimSpace(rec.SubCategoryID),
		Description:   rec.Description,
		Tags:          rec.Tags,
		Features:      rec.Features,
		Hints: SourceHints{
			Featured:   rec.Featured,
			TopSelling: rec.TopSelling,
			Latest:     rec.Latest,
		},
	}

	if p.Name == "" {
		p.Name = p.ID
	}
	if p.Category == "" {
		p.Category = "Uncategorized"
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Features == nil {
		p.Features = []string{}
	}

	for _, pt := range rec.Prices {
		p.Prices = append(p.Prices, normalizePrice(pt))
	}
	if len(p.Prices) == 0 && rec.Price != nil {
		p.Prices = []PricePoint{normalizePrice(PricePoint{Amount: *rec.Price, BillingCycle: rec.BillingCycle})}
	}
	if p.Prices == nil {
		p.Prices = []PricePoint{}
	}

	if rec.CreatedAt != "" {
		for _, layout := range createdAtLayouts {
			if ts, err := time.Parse(layout, rec.CreatedAt); err == nil {
				p.CreatedAt = ts
				break
			}
		}
	}

	return p, true
}

func normalizePrice(pt PricePoint) PricePoint {
	if pt.Amount < 0 || math.IsNaN(pt.Amount) || math.IsInf(pt.Amount, 0) {
		pt.Amount = 0
	}
	if pt.BillingCycle == "" {
		pt.BillingCycle = "one-time"
	}
	return pt
}

// CopyProducts returns a shallow copy of the slice. Product values copy
// by value, so flag mutation on the copy leaves the cached originals
// untouched.
func CopyProducts(products []Product) []Product {
	out := make([]Product, len(products))
	copy(out, products)
	return out
}
