// Package taxonomy loads the marketplace category/OEM hierarchy and
// turns it into the ordered keyword table intent resolution runs on.
// When the live source is unreachable and nothing is cached, an
// embedded static taxonomy substitutes so resolution keeps working.
package taxonomy

import "strings"

// maxDepth is the deepest category nesting kept after normalization:
// category, sub-category, sub-sub-category.
const maxDepth = 3

// Category is one node of the category tree.
type Category struct {
	ID       string     `json:"id" yaml:"id"`
	Name     string     `json:"name" yaml:"name"`
	Keywords []string   `json:"keywords,omitempty" yaml:"keywords"`
	Children []Category `json:"children,omitempty" yaml:"children"`
}

// OEM is a vendor entry with its keyword synonyms.
type OEM struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords"`
}

// Tree is a complete taxonomy snapshot. FromFallback marks the
// embedded static taxonomy standing in for an unreachable source.
type Tree struct {
	Categories   []Category `json:"categories" yaml:"categories"`
	OEMs         []OEM      `json:"oems" yaml:"oems"`
	FromFallback bool       `json:"fromFallback,omitempty" yaml:"-"`
}

// Empty reports whether the snapshot carries no entries at all.
func (t Tree) Empty() bool {
	return len(t.Categories) == 0 && len(t.OEMs) == 0
}

// categoryRecord is the wire shape of a category. Nested children may
// arrive under either key; normalization merges them in that order.
type categoryRecord struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`

	Children      []categoryRecord `json:"children"`
	SubCategories []categoryRecord `json:"subCategories"`
}

// oemRecord is the wire shape of an OEM entry.
type oemRecord struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// normalizeCategory turns a wire record into a Category, dropping
// id-less records and any nesting below the third level. Every kept
// node ends up with at least one keyword: when the source provides
// none, the lowercased name is the keyword, so the resolver can still
// match queries that say the category by name.
func normalizeCategory(rec categoryRecord, depth int) (Category, bool) {
	if strings.TrimSpace(rec.ID) == "" {
		return Category{}, false
	}

	c := Category{
		ID:       strings.TrimSpace(rec.ID),
		Name:     strings.TrimSpace(rec.Name),
		Keywords: normalizeKeywords(rec.Keywords),
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	if len(c.Keywords) == 0 {
		c.Keywords = []string{strings.ToLower(c.Name)}
	}

	if depth < maxDepth {
		children := rec.Children
		children = append(children, rec.SubCategories...)
		for _, childRec := range children {
			if child, ok := normalizeCategory(childRec, depth+1); ok {
				c.Children = append(c.Children, child)
			}
		}
	}

	return c, true
}

func normalizeOEM(rec oemRecord) (OEM, bool) {
	if strings.TrimSpace(rec.ID) == "" {
		return OEM{}, false
	}

	o := OEM{
		ID:       strings.TrimSpace(rec.ID),
		Name:     strings.TrimSpace(rec.Name),
		Keywords: normalizeKeywords(rec.Keywords),
	}
	if o.Name == "" {
		o.Name = o.ID
	}
	if len(o.Keywords) == 0 {
		o.Keywords = []string{strings.ToLower(o.Name)}
	}
	return o, true
}

// normalizeKeywords lowercases and trims keywords, dropping blanks and
// duplicates while preserving first-seen order.
func normalizeKeywords(keywords []string) []string {
	var out []string
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
