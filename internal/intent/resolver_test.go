package intent

import (
	"reflect"
	"testing"

	"mkb/internal/taxonomy"
)

func testTable() taxonomy.Table {
	return taxonomy.Table{
		Categories: []taxonomy.Entry{
			{ID: "cat-dm", Name: "Data Management", Keywords: []string{"data management", "database"}},
			{ID: "cat-sec", Name: "Security", Keywords: []string{"security", "firewall"}},
			{ID: "cat-crm", Name: "CRM", Keywords: []string{"crm", "customer relationship"}},
		},
		OEMs: []taxonomy.Entry{
			{ID: "oem-ms", Name: "Microsoft", Keywords: []string{"microsoft", "azure"}},
			{ID: "oem-goog", Name: "Google", Keywords: []string{"google"}},
		},
	}
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver("https://market.example.com")
	table := testTable()

	tests := []struct {
		name           string
		query          string
		wantCategoryID string
		wantOEMID      string
		wantConfidence float64
	}{
		{
			name:           "exact keyword containment",
			query:          "what data management products do you have",
			wantCategoryID: "cat-dm",
			wantConfidence: 0.95,
		},
		{
			name:           "case insensitive",
			query:          "Looking For A FIREWALL",
			wantCategoryID: "cat-sec",
			wantConfidence: 0.95,
		},
		{
			name:           "all words scattered matches fuzzily",
			query:          "how is customer data relationship tracking handled",
			wantCategoryID: "cat-crm",
			wantConfidence: 0.85,
		},
		{
			name:           "oem only",
			query:          "do you sell google licenses",
			wantOEMID:      "oem-goog",
			wantConfidence: 0.95,
		},
		{
			name:           "category and oem together",
			query:          "microsoft security offerings",
			wantCategoryID: "cat-sec",
			wantOEMID:      "oem-ms",
			wantConfidence: 0.95,
		},
		{
			name:  "no match",
			query: "tell me a joke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.query, table)
			if got.CategoryID != tt.wantCategoryID {
				t.Errorf("CategoryID = %q, want %q", got.CategoryID, tt.wantCategoryID)
			}
			if got.OEMID != tt.wantOEMID {
				t.Errorf("OEMID = %q, want %q", got.OEMID, tt.wantOEMID)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestResolver_FirstMatchWins(t *testing.T) {
	r := NewResolver("https://market.example.com")

	// The first entry matches only fuzzily, the second exactly. Table
	// order still decides.
	table := taxonomy.Table{Categories: []taxonomy.Entry{
		{ID: "cat-first", Name: "Data Platform", Keywords: []string{"data platform"}},
		{ID: "cat-second", Name: "Data Warehouse", Keywords: []string{"data warehouse"}},
	}}

	got := r.Resolve("a platform for our data warehouse", table)
	if got.CategoryID != "cat-first" {
		t.Errorf("CategoryID = %q, want cat-first (table order is the tie-break)", got.CategoryID)
	}
	if got.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want fuzzy 0.85 from the committed entry", got.Confidence)
	}
}

func TestResolver_ConfidenceIsMaxOfBoth(t *testing.T) {
	r := NewResolver("https://market.example.com")

	table := taxonomy.Table{
		Categories: []taxonomy.Entry{
			{ID: "cat-dm", Name: "Data Management", Keywords: []string{"data management platform"}},
		},
		OEMs: []taxonomy.Entry{
			{ID: "oem-ms", Name: "Microsoft", Keywords: []string{"microsoft"}},
		},
	}

	// Category matches fuzzily (0.85), OEM exactly (0.95).
	got := r.Resolve("microsoft platform for data management teams", table)
	if got.CategoryID != "cat-dm" || got.OEMID != "oem-ms" {
		t.Fatalf("resolution = %+v", got)
	}
	if got.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want max of the two matches", got.Confidence)
	}
}

func TestResolver_ListingURLs(t *testing.T) {
	r := NewResolver("https://market.example.com/")

	got := r.Resolve("microsoft security tools", testTable())

	want := []string{
		"https://market.example.com/products?category=cat-sec",
		"https://market.example.com/products?oem=oem-ms",
	}
	if !reflect.DeepEqual(got.ListingURLs, want) {
		t.Errorf("ListingURLs = %v, want %v", got.ListingURLs, want)
	}
}

func TestResolver_NoMatchIsZeroIntent(t *testing.T) {
	r := NewResolver("https://market.example.com")

	got := r.Resolve("completely unrelated text", taxonomy.Table{})
	if got.Resolved() {
		t.Errorf("Resolved() = true for empty table, got %+v", got)
	}
	if got.Confidence != 0 || len(got.ListingURLs) != 0 {
		t.Errorf("zero intent should carry nothing, got %+v", got)
	}
}

func TestResolver_SingleWordKeywordNeverMatchesFuzzily(t *testing.T) {
	r := NewResolver("https://market.example.com")

	table := taxonomy.Table{Categories: []taxonomy.Entry{
		{ID: "cat-sec", Name: "Security", Keywords: []string{"firewall"}},
	}}

	got := r.Resolve("fire and wall separately", table)
	if got.Resolved() {
		t.Errorf("single-word keyword should only match by containment, got %+v", got)
	}
}
