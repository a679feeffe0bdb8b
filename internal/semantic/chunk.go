// Package semantic maintains the embedding index over the catalog and
// answers nearest-neighbor queries for the context assembler.
package semantic

import (
	"strconv"
	"strings"

	"mkb/internal/catalog"
)

// Chunk is one retrieval unit: the full text describing a single
// product. Exactly one chunk exists per product.
type Chunk struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Text      string `json:"text"`
}

// BuildChunks renders one chunk per product: name, category path,
// vendor, every price/billing combination, the description capped at
// maxDescChars runes, and the feature list.
func BuildChunks(products []catalog.Product, maxDescChars int) []Chunk {
	chunks := make([]Chunk, 0, len(products))
	for _, p := range products {
		chunks = append(chunks, Chunk{
			ProductID: p.ID,
			Name:      p.Name,
			Text:      renderChunk(p, maxDescChars),
		})
	}
	return chunks
}

func renderChunk(p catalog.Product, maxDescChars int) string {
	var b strings.Builder

	b.WriteString(p.Name)
	b.WriteString(". Category: ")
	b.WriteString(p.Category)
	if p.SubCategory != "" {
		b.WriteString(" > ")
		b.WriteString(p.SubCategory)
	}
	b.WriteString(".")

	if p.Vendor != "" {
		b.WriteString(" Vendor: ")
		b.WriteString(p.Vendor)
		b.WriteString(".")
	}

	if len(p.Prices) > 0 {
		b.WriteString(" Price: ")
		for i, pt := range p.Prices {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.FormatFloat(pt.Amount, 'f', 2, 64))
			b.WriteString(" (")
			b.WriteString(pt.BillingCycle)
			b.WriteString(")")
		}
		b.WriteString(".")
	}

	if desc := truncateRunes(strings.TrimSpace(p.Description), maxDescChars); desc != "" {
		b.WriteString(" ")
		b.WriteString(desc)
	}

	if len(p.Features) > 0 {
		b.WriteString(" Features: ")
		b.WriteString(strings.Join(p.Features, ", "))
		b.WriteString(".")
	}

	return b.String()
}

// truncateRunes caps s at n runes so a multibyte character is never
// split. n <= 0 means no cap.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
