package assembler

import (
	"strings"
	"testing"

	"mkb/internal/catalog"
	"mkb/internal/funnel"
	"mkb/internal/intent"
	"mkb/internal/scrape"
	"mkb/internal/semantic"
	"mkb/internal/taxonomy"
	"mkb/internal/testutil"
)

func formatFixture() blockInput {
	return blockInput{
		Query: "popular analytics tools",
		Intent: intent.Intent{
			CategoryID:   "cat-analytics",
			CategoryName: "Analytics",
			Confidence:   0.95,
			ListingURLs:  []string{"https://shop.test/products?category=cat-analytics"},
		},
		Stage: funnel.State{
			Stage:      funnel.StageRecommendation,
			Confidence: 0.8,
			Guide: funnel.StageGuide{
				Goal:         "Suggest one or two products",
				NextAction:   "Present a short comparison",
				Instructions: "Keep it brief",
			},
		},
		Products: []catalog.Product{
			{
				ID: "p-looker", Name: "Looker Studio Pro", Vendor: "Google",
				Category:   "Analytics",
				Prices:     []catalog.PricePoint{{Amount: 9, BillingCycle: "monthly"}},
				TopSelling: true,
			},
			{
				ID: "p-fabric", Name: "Fabric Warehouse", Vendor: "Microsoft",
				Category: "Data Management",
				Prices:   []catalog.PricePoint{{Amount: 49.99, BillingCycle: "monthly"}},
			},
		},
		Signals: catalog.Signals{BestSelling: []string{"p-looker"}},
		Tree: taxonomy.Tree{
			Categories: []taxonomy.Category{
				{ID: "cat-analytics", Name: "Analytics", Keywords: []string{"analytics"}},
				{
					ID: "cat-data-management", Name: "Data Management",
					Keywords: []string{"data management"},
					Children: []taxonomy.Category{{ID: "cat-data-integration", Name: "Data Integration"}},
				},
			},
			OEMs: []taxonomy.OEM{{ID: "oem-google", Name: "Google"}},
		},
		Matches: []semantic.Match{
			{
				Chunk: semantic.Chunk{ProductID: "p-looker", Name: "Looker Studio Pro", Text: "Looker Studio Pro. Category: Analytics. Vendor: Google."},
				Score: 0.91,
			},
		},
		Contents: []scrape.Content{{Source: "buying-guides", Text: "Pick tools that match your stack."}},
		Limits:   Limits{MaxProductsPerSection: 8, MaxSemanticMatches: 5, MaxBlockBytes: 16000},
	}
}

func TestBlockGolden(t *testing.T) {
	block, trunc := merge(buildSections(formatFixture()), 16000)
	if trunc.Truncated {
		t.Fatalf("Unexpected truncation: %+v", trunc)
	}
	testutil.CompareGolden(t, "testdata/block_basic.golden", []byte(block))
}

func TestBlockSectionOrder(t *testing.T) {
	block, _ := merge(buildSections(formatFixture()), 16000)

	markers := []string{
		"Marketplace sales context",
		"Conversation stage:",
		"Customer intent:",
		"Most relevant products:",
		"Catalog highlights:",
		"Best sellers:",
		"Category spotlight (Analytics):",
		"Editorial notes (buying-guides):",
		"Category outline:",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(block, m)
		if idx < 0 {
			t.Fatalf("Section marker %q missing from block:\n%s", m, block)
		}
		if idx <= last {
			t.Errorf("Section %q out of order (index %d, previous %d)", m, idx, last)
		}
		last = idx
	}
}

func TestBlockOmitsOptionalSections(t *testing.T) {
	in := formatFixture()
	in.Query = "tell me about your products"
	in.Intent = intent.Intent{}
	in.Matches = nil
	in.Contents = nil

	block, _ := merge(buildSections(in), 16000)

	for _, absent := range []string{"Customer intent:", "Most relevant products:", "Best sellers:", "Editorial notes", "All products:"} {
		if strings.Contains(block, absent) {
			t.Errorf("Block should omit %q for this input:\n%s", absent, block)
		}
	}
	if !strings.Contains(block, "Catalog highlights:") {
		t.Errorf("Catalog highlights should always render")
	}
}

func TestFullCatalogSection(t *testing.T) {
	in := formatFixture()
	in.Opts.IncludeFullCatalog = true
	in.Limits.MaxProductsPerSection = 1

	block, _ := merge(buildSections(in), 16000)

	if !strings.Contains(block, "All products:") {
		t.Fatalf("Full catalog section missing:\n%s", block)
	}
	highlights := block[strings.Index(block, "Catalog highlights:"):strings.Index(block, "Best sellers:")]
	if strings.Contains(highlights, "Fabric Warehouse") {
		t.Errorf("Highlights should cap at MaxProductsPerSection, got:\n%s", highlights)
	}
	full := block[strings.Index(block, "All products:"):]
	if !strings.Contains(full, "Fabric Warehouse") {
		t.Errorf("Full catalog section should list every product, got:\n%s", full)
	}
}

func TestAugmentationTriggers(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    []string
		notWant []string
	}{
		{
			name:    "best seller trigger",
			query:   "what are your best sellers",
			want:    []string{"Best sellers:"},
			notWant: []string{"Featured products:", "Recently added:"},
		},
		{
			name:    "featured trigger",
			query:   "show me featured items",
			want:    []string{"Featured products:"},
			notWant: []string{"Best sellers:"},
		},
		{
			name:    "recent trigger",
			query:   "anything recently added",
			want:    []string{"Recently added:"},
			notWant: []string{"Best sellers:", "Featured products:"},
		},
		{
			name:    "no trigger",
			query:   "I need a data warehouse",
			notWant: []string{"Best sellers:", "Featured products:", "Recently added:"},
		},
		{
			name:  "popular is a best seller trigger",
			query: "most popular options",
			want:  []string{"Best sellers:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := formatFixture()
			in.Query = tt.query
			in.Signals = catalog.Signals{
				BestSelling:   []string{"p-looker"},
				Featured:      []string{"p-fabric"},
				RecentlyAdded: []string{"p-fabric"},
			}
			block, _ := merge(buildSections(in), 16000)

			for _, w := range tt.want {
				if !strings.Contains(block, w) {
					t.Errorf("Query %q: expected %q in block:\n%s", tt.query, w, block)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(block, nw) {
					t.Errorf("Query %q: %q should not appear in block:\n%s", tt.query, nw, block)
				}
			}
		})
	}
}

func TestRankedSectionKeepsSignalOrder(t *testing.T) {
	in := formatFixture()
	in.Query = "best selling tools"
	in.Signals = catalog.Signals{BestSelling: []string{"p-fabric", "p-looker"}}

	block, _ := merge(buildSections(in), 16000)

	start := strings.Index(block, "Best sellers:")
	if start < 0 {
		t.Fatalf("Best sellers section missing:\n%s", block)
	}
	sect := block[start:]
	if end := strings.Index(sect, "\n\n"); end >= 0 {
		sect = sect[:end]
	}
	fabric := strings.Index(sect, "Fabric Warehouse")
	looker := strings.Index(sect, "Looker Studio Pro")
	if fabric < 0 || looker < 0 {
		t.Fatalf("Both ranked products should be listed, got:\n%s", sect)
	}
	if fabric > looker {
		t.Errorf("Ranking order not preserved, got:\n%s", sect)
	}
}

func TestRankedSectionFallsBackToFlags(t *testing.T) {
	in := formatFixture()
	in.Query = "best sellers please"
	in.Signals = catalog.Signals{}

	block, _ := merge(buildSections(in), 16000)

	start := strings.Index(block, "Best sellers:")
	if start < 0 {
		t.Fatalf("Best sellers section should fall back to flagged products:\n%s", block)
	}
	sect := block[start:]
	if end := strings.Index(sect, "\n\n"); end >= 0 {
		sect = sect[:end]
	}
	if !strings.Contains(sect, "Looker Studio Pro") {
		t.Errorf("Flag fallback should list the top-selling product, got:\n%s", sect)
	}
	if strings.Contains(sect, "Fabric Warehouse") {
		t.Errorf("Unflagged product should not appear in fallback, got:\n%s", sect)
	}
}

func TestRankedSectionOmittedWhenEmpty(t *testing.T) {
	in := formatFixture()
	in.Query = "best sellers please"
	in.Signals = catalog.Signals{}
	for i := range in.Products {
		in.Products[i].TopSelling = false
	}

	block, _ := merge(buildSections(in), 16000)
	if strings.Contains(block, "Best sellers:") {
		t.Errorf("Empty augmentation section should be omitted:\n%s", block)
	}
}

func TestSpotlightUsesFirstNamedCategory(t *testing.T) {
	in := formatFixture()
	in.Query = "compare analytics and data management tools"

	block, _ := merge(buildSections(in), 16000)

	if !strings.Contains(block, "Category spotlight (Analytics):") {
		t.Fatalf("First named category should be spotlighted:\n%s", block)
	}
	if strings.Contains(block, "Category spotlight (Data Management):") {
		t.Errorf("Only the first named category gets a spotlight:\n%s", block)
	}
}

func TestVendorSpotlight(t *testing.T) {
	in := formatFixture()
	in.Query = "what do you have from google"

	block, _ := merge(buildSections(in), 16000)

	start := strings.Index(block, "Vendor spotlight (Google):")
	if start < 0 {
		t.Fatalf("Vendor spotlight missing:\n%s", block)
	}
	sect := block[start:]
	if end := strings.Index(sect, "\n\n"); end >= 0 {
		sect = sect[:end]
	}
	if !strings.Contains(sect, "Looker Studio Pro") {
		t.Errorf("Vendor spotlight should list the vendor's products, got:\n%s", sect)
	}
	if strings.Contains(sect, "Fabric Warehouse") {
		t.Errorf("Other vendors' products should not appear, got:\n%s", sect)
	}
}

func TestOutlineWhenTaxonomyEmpty(t *testing.T) {
	in := formatFixture()
	in.Tree = taxonomy.Tree{}
	in.Intent = intent.Intent{}

	block, _ := merge(buildSections(in), 16000)
	if !strings.Contains(block, "Category data is currently unavailable.") {
		t.Errorf("Empty taxonomy should render the unavailable outline:\n%s", block)
	}
}

func TestProductLine(t *testing.T) {
	tests := []struct {
		name    string
		product catalog.Product
		want    string
	}{
		{
			name: "full detail",
			product: catalog.Product{
				Name: "Fabric Warehouse", Vendor: "Microsoft",
				Category: "Data Management", SubCategory: "Data Integration",
				Prices:   []catalog.PricePoint{{Amount: 49.99, BillingCycle: "monthly"}},
				Featured: true, Latest: true,
			},
			want: "- Fabric Warehouse (Microsoft) / Data Management > Data Integration / 49.99 per monthly / featured, new",
		},
		{
			name:    "name only",
			product: catalog.Product{Name: "Mystery Tool"},
			want:    "- Mystery Tool",
		},
		{
			name: "no subcategory",
			product: catalog.Product{
				Name: "Looker Studio Pro", Vendor: "Google", Category: "Analytics",
				Prices: []catalog.PricePoint{{Amount: 9, BillingCycle: "monthly"}},
			},
			want: "- Looker Studio Pro (Google) / Analytics / 9.00 per monthly",
		},
		{
			name: "all flags",
			product: catalog.Product{
				Name: "Hot Item", Featured: true, TopSelling: true, Latest: true,
			},
			want: "- Hot Item / featured, top seller, new",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := productLine(tt.product); got != tt.want {
				t.Errorf("productLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeDropsSectionsFromEnd(t *testing.T) {
	sections := []section{
		{body: "header"},
		{body: "stage"},
		{title: "Third:", body: strings.Repeat("a", 50)},
		{title: "Fourth:", body: strings.Repeat("b", 50)},
	}
	budget := renderedSize(sections[:3])

	block, trunc := merge(sections, budget)

	if !trunc.Truncated {
		t.Fatalf("Expected truncation metadata")
	}
	if trunc.Shown != 3 || trunc.Total != 4 || trunc.Reason != "max-block-bytes" {
		t.Errorf("Truncation = %+v, want shown=3 total=4 reason=max-block-bytes", trunc)
	}
	if strings.Contains(block, "Fourth:") {
		t.Errorf("Last section should be dropped:\n%s", block)
	}
	if !strings.Contains(block, "Third:") {
		t.Errorf("Sections within budget should be kept:\n%s", block)
	}
	if len(block) > budget {
		t.Errorf("Block size %d exceeds budget %d", len(block), budget)
	}
}

func TestMergeNeverDropsHeaderOrStage(t *testing.T) {
	sections := []section{
		{body: strings.Repeat("h", 40)},
		{body: strings.Repeat("s", 40)},
		{title: "Extra:", body: strings.Repeat("x", 40)},
	}

	block, trunc := merge(sections, 30)

	if !trunc.Truncated {
		t.Fatalf("Expected truncation")
	}
	if trunc.Shown != 2 {
		t.Errorf("Shown = %d, want 2 (header and stage survive)", trunc.Shown)
	}
	if len(block) > 30 {
		t.Errorf("Hard truncation should enforce the byte budget, got %d bytes", len(block))
	}
	if !strings.HasPrefix(block, "hhh") {
		t.Errorf("Header should survive hard truncation, got %q", block)
	}
}

func TestMergeHardTruncationRespectsRuneBoundaries(t *testing.T) {
	// "é" is 2 bytes in UTF-8; an 11-byte budget lands mid-rune.
	sections := []section{
		{body: strings.Repeat("é", 10)},
		{body: "stage"},
	}

	block, _ := merge(sections, 11)

	if len(block) > 11 {
		t.Fatalf("Block size %d exceeds budget", len(block))
	}
	if strings.Count(block, "é") != 5 {
		t.Errorf("Expected a clean 5-rune cut, got %q", block)
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Errorf("clip should pass short strings through, got %q", got)
	}
	if got := clip("héllo wörld", 4); got != "héll" {
		t.Errorf("clip(4) = %q, want %q", got, "héll")
	}
}
