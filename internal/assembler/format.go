package assembler

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"mkb/internal/catalog"
	"mkb/internal/funnel"
	"mkb/internal/intent"
	"mkb/internal/scrape"
	"mkb/internal/semantic"
	"mkb/internal/taxonomy"
)

// Augmentation triggers. A section is appended only when the
// lowercased query contains one of its triggers.
var (
	bestSellerTriggers = []string{"best seller", "best-seller", "bestseller", "best selling", "top selling", "most popular", "popular"}
	featuredTriggers   = []string{"featured", "recommended", "editors pick", "editor's pick"}
	recentTriggers     = []string{"recently added", "recent", "newest", "latest", "just added", "new arrival"}
)

const unavailableBlock = "The product knowledge base is currently unavailable. " +
	"Tell the customer that product details cannot be looked up right now; do not invent products, prices, or availability."

// blockInput is everything the formatter needs to render one block.
// All slices are already bounded upstream except the product lists,
// which the formatter caps per section.
type blockInput struct {
	Query    string
	Intent   intent.Intent
	Stage    funnel.State
	Products []catalog.Product
	Signals  catalog.Signals
	Tree     taxonomy.Tree
	Matches  []semantic.Match
	Contents []scrape.Content
	Opts     Options
	Limits   Limits
}

type section struct {
	title string
	body  string
}

func (s section) render() string {
	if s.title == "" {
		return s.body
	}
	return s.title + "\n" + s.body
}

// buildSections renders the block sections in their fixed merge order:
// header, stage guidance, intent, semantic matches, catalog
// highlights, query-triggered augmentations, full catalog (opt-in),
// editorial content, taxonomy outline.
func buildSections(in blockInput) []section {
	sections := []section{
		{body: "Marketplace sales context for the current customer conversation."},
		stageSection(in.Stage),
	}

	if in.Intent.Resolved() {
		sections = append(sections, intentSection(in.Intent))
	}
	if len(in.Matches) > 0 {
		sections = append(sections, matchesSection(in.Matches, in.Limits.MaxSemanticMatches))
	}

	sections = append(sections, productSection("Catalog highlights:", in.Products, in.Limits.MaxProductsPerSection))
	sections = append(sections, augmentationSections(in)...)

	if in.Opts.IncludeFullCatalog {
		sections = append(sections, productSection("All products:", in.Products, len(in.Products)))
	}
	for _, content := range in.Contents {
		sections = append(sections, section{
			title: fmt.Sprintf("Editorial notes (%s):", content.Source),
			body:  content.Text,
		})
	}

	sections = append(sections, outlineSection(in.Tree))
	return sections
}

func stageSection(st funnel.State) section {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation stage: %s (confidence %.2f)\n", st.Stage, st.Confidence)
	fmt.Fprintf(&b, "Goal: %s\n", st.Guide.Goal)
	fmt.Fprintf(&b, "Next action: %s", st.Guide.NextAction)
	if st.Guide.Instructions != "" {
		fmt.Fprintf(&b, "\nInstructions: %s", st.Guide.Instructions)
	}
	return section{body: b.String()}
}

func intentSection(it intent.Intent) section {
	var parts []string
	if it.CategoryName != "" {
		parts = append(parts, fmt.Sprintf("category %q", it.CategoryName))
	}
	if it.OEMName != "" {
		parts = append(parts, fmt.Sprintf("vendor %q", it.OEMName))
	}

	body := fmt.Sprintf("Customer intent: %s (confidence %.2f)", strings.Join(parts, ", "), it.Confidence)
	if len(it.ListingURLs) > 0 {
		body += "\nBrowse: " + strings.Join(it.ListingURLs, " ")
	}
	return section{body: body}
}

func matchesSection(matches []semantic.Match, limit int) section {
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s (relevance %.2f)", clip(m.Chunk.Text, 160), m.Score)
	}
	return section{title: "Most relevant products:", body: b.String()}
}

// productSection renders up to limit products as one list section.
func productSection(title string, products []catalog.Product, limit int) section {
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, productLine(p))
	}
	return section{title: title, body: strings.Join(lines, "\n")}
}

func productLine(p catalog.Product) string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(p.Name)
	if p.Vendor != "" {
		fmt.Fprintf(&b, " (%s)", p.Vendor)
	}
	if p.Category != "" {
		b.WriteString(" / ")
		b.WriteString(p.Category)
		if p.SubCategory != "" {
			b.WriteString(" > ")
			b.WriteString(p.SubCategory)
		}
	}
	if len(p.Prices) > 0 {
		fmt.Fprintf(&b, " / %.2f per %s", p.Prices[0].Amount, p.Prices[0].BillingCycle)
	}
	if flags := flagNotes(p); flags != "" {
		b.WriteString(" / ")
		b.WriteString(flags)
	}
	return b.String()
}

func flagNotes(p catalog.Product) string {
	var notes []string
	if p.Featured {
		notes = append(notes, "featured")
	}
	if p.TopSelling {
		notes = append(notes, "top seller")
	}
	if p.Latest {
		notes = append(notes, "new")
	}
	return strings.Join(notes, ", ")
}

// augmentationSections appends the signal-derived sections the query
// asked for. Category and vendor spotlights expand only the first
// taxonomy entry whose name appears in the query.
func augmentationSections(in blockInput) []section {
	query := strings.ToLower(in.Query)
	byID := productIndex(in.Products)
	limit := in.Limits.MaxProductsPerSection
	var sections []section

	signalLists := []struct {
		triggers []string
		title    string
		ids      []string
		flagged  func(catalog.Product) bool
	}{
		{bestSellerTriggers, "Best sellers:", in.Signals.BestSelling, func(p catalog.Product) bool { return p.TopSelling }},
		{featuredTriggers, "Featured products:", in.Signals.Featured, func(p catalog.Product) bool { return p.Featured }},
		{recentTriggers, "Recently added:", in.Signals.RecentlyAdded, func(p catalog.Product) bool { return p.Latest }},
	}
	for _, sl := range signalLists {
		if !containsAny(query, sl.triggers) {
			continue
		}
		if s, ok := rankedSection(sl.title, sl.ids, byID, in.Products, sl.flagged, limit); ok {
			sections = append(sections, s)
		}
	}

	table := taxonomy.BuildTable(in.Tree)
	if entry, ok := firstNamedEntry(query, table.Categories); ok {
		products := rankedProducts(in.Signals.ByCategory[entry.ID], byID)
		if len(products) == 0 {
			products = filterProducts(in.Products, func(p catalog.Product) bool {
				return p.CategoryID == entry.ID || strings.EqualFold(p.Category, entry.Name)
			})
		}
		if len(products) > 0 {
			sections = append(sections, productSection(fmt.Sprintf("Category spotlight (%s):", entry.Name), products, limit))
		}
	}
	if entry, ok := firstNamedEntry(query, table.OEMs); ok {
		products := rankedProducts(in.Signals.ByOEM[entry.ID], byID)
		if len(products) == 0 {
			products = filterProducts(in.Products, func(p catalog.Product) bool {
				return strings.EqualFold(p.Vendor, entry.Name)
			})
		}
		if len(products) > 0 {
			sections = append(sections, productSection(fmt.Sprintf("Vendor spotlight (%s):", entry.Name), products, limit))
		}
	}

	return sections
}

// rankedSection builds a list section from a signal ranking, falling
// back to flag-filtered products when the ranking is empty. A section
// with nothing to list is omitted.
func rankedSection(title string, ids []string, byID map[string]catalog.Product, products []catalog.Product, flagged func(catalog.Product) bool, limit int) (section, bool) {
	list := rankedProducts(ids, byID)
	if len(list) == 0 {
		list = filterProducts(products, flagged)
	}
	if len(list) == 0 {
		return section{}, false
	}
	return productSection(title, list, limit), true
}

func outlineSection(tree taxonomy.Tree) section {
	if tree.Empty() {
		return section{title: "Category outline:", body: "Category data is currently unavailable."}
	}

	var lines []string
	for _, cat := range tree.Categories {
		line := "- " + cat.Name
		if len(cat.Children) > 0 {
			names := make([]string, 0, len(cat.Children))
			for _, child := range cat.Children {
				names = append(names, child.Name)
			}
			line += ": " + strings.Join(names, ", ")
		}
		lines = append(lines, line)
	}
	if len(tree.OEMs) > 0 {
		names := make([]string, 0, len(tree.OEMs))
		for _, oem := range tree.OEMs {
			names = append(names, oem.Name)
		}
		lines = append(lines, "Vendors: "+strings.Join(names, ", "))
	}
	return section{title: "Category outline:", body: strings.Join(lines, "\n")}
}

// merge joins sections and enforces the byte budget. Sections are
// dropped from the end; the header and stage sections are never
// dropped, only hard-truncated if they alone exceed the budget.
func merge(sections []section, maxBytes int) (string, Truncation) {
	total := len(sections)
	kept := total
	for kept > 2 && renderedSize(sections[:kept]) > maxBytes {
		kept--
	}

	block := renderSections(sections[:kept])
	trunc := Truncation{}
	if kept < total {
		trunc = Truncation{Truncated: true, Shown: kept, Total: total, Reason: "max-block-bytes"}
	}
	if len(block) > maxBytes {
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(block[cut]) {
			cut--
		}
		block = strings.TrimSpace(block[:cut])
		trunc = Truncation{Truncated: true, Shown: kept, Total: total, Reason: "max-block-bytes"}
	}
	return block, trunc
}

func renderSections(sections []section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, s.render())
	}
	return strings.Join(parts, "\n\n")
}

func renderedSize(sections []section) int {
	size := 0
	for i, s := range sections {
		if i > 0 {
			size += 2
		}
		size += len(s.render())
	}
	return size
}

func productIndex(products []catalog.Product) map[string]catalog.Product {
	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID
}

// rankedProducts resolves a signal id list against the catalog,
// keeping the ranking order and skipping unknown ids.
func rankedProducts(ids []string, byID map[string]catalog.Product) []catalog.Product {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func filterProducts(products []catalog.Product, keep func(catalog.Product) bool) []catalog.Product {
	var out []catalog.Product
	for _, p := range products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// firstNamedEntry returns the first entry whose name appears in the
// lowercased query.
func firstNamedEntry(query string, entries []taxonomy.Entry) (taxonomy.Entry, bool) {
	for _, entry := range entries {
		if entry.Name != "" && strings.Contains(query, strings.ToLower(entry.Name)) {
			return entry, true
		}
	}
	return taxonomy.Entry{}, false
}

func containsAny(query string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(query, t) {
			return true
		}
	}
	return false
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
