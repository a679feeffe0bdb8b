// Package intent maps free-text queries onto the marketplace taxonomy.
// Resolution is a pure scan over the ordered keyword table and never
// fails: a query that matches nothing yields a zero Intent.
package intent

import (
	"fmt"
	"net/url"
	"strings"

	"mkb/internal/taxonomy"
)

// Confidence levels assigned by the two containment tests.
const (
	// exactConfidence is assigned when a keyword appears verbatim in
	// the query.
	exactConfidence = 0.95
	// fuzzyConfidence is assigned when every word of a multi-word
	// keyword appears somewhere in the query.
	fuzzyConfidence = 0.85
)

// Intent is the resolved meaning of a query: at most one category, at
// most one OEM, and listing URLs for whichever resolved.
type Intent struct {
	CategoryID   string   `json:"categoryId,omitempty"`
	CategoryName string   `json:"categoryName,omitempty"`
	OEMID        string   `json:"oemId,omitempty"`
	OEMName      string   `json:"oemName,omitempty"`
	Confidence   float64  `json:"confidence"`
	ListingURLs  []string `json:"listingUrls,omitempty"`
}

// Resolved reports whether the query matched anything at all.
func (i Intent) Resolved() bool {
	return i.CategoryID != "" || i.OEMID != ""
}

// Resolver resolves queries against a keyword table.
type Resolver struct {
	listingBase string
}

// NewResolver creates a resolver. listingBaseURL is the storefront
// base the listing URLs are built on.
func NewResolver(listingBaseURL string) *Resolver {
	return &Resolver{listingBase: strings.TrimRight(listingBaseURL, "/")}
}

// Resolve scans the table for the query's category and OEM. Entries
// are tried in table order and the first match commits, whatever its
// confidence; category and OEM matching run independently. Keywords
// arrive lowercased from the taxonomy table.
func (r *Resolver) Resolve(query string, table taxonomy.Table) Intent {
	q := strings.ToLower(query)

	var out Intent
	for _, entry := range table.Categories {
		conf, ok := matchEntry(q, entry.Keywords)
		if !ok {
			continue
		}
		out.CategoryID = entry.ID
		out.CategoryName = entry.Name
		out.Confidence = conf
		break
	}

	for _, entry := range table.OEMs {
		conf, ok := matchEntry(q, entry.Keywords)
		if !ok {
			continue
		}
		out.OEMID = entry.ID
		out.OEMName = entry.Name
		if conf > out.Confidence {
			out.Confidence = conf
		}
		break
	}

	if out.CategoryID != "" {
		out.ListingURLs = append(out.ListingURLs, r.listingURL("category", out.CategoryID))
	}
	if out.OEMID != "" {
		out.ListingURLs = append(out.ListingURLs, r.listingURL("oem", out.OEMID))
	}

	return out
}

// matchEntry applies the containment tests to one entry: any keyword
// as an exact substring first, then the all-words test for multi-word
// keywords.
func matchEntry(query string, keywords []string) (float64, bool) {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(query, kw) {
			return exactConfidence, true
		}
	}

	for _, kw := range keywords {
		words := strings.Fields(kw)
		if len(words) < 2 {
			continue
		}
		all := true
		for _, word := range words {
			if !strings.Contains(query, word) {
				all = false
				break
			}
		}
		if all {
			return fuzzyConfidence, true
		}
	}

	return 0, false
}

func (r *Resolver) listingURL(param, id string) string {
	return fmt.Sprintf("%s/products?%s=%s", r.listingBase, param, url.QueryEscape(id))
}
