package taxonomy

import (
	"reflect"
	"testing"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		name   string
		rec    categoryRecord
		wantOK bool
		want   Category
	}{
		{
			name:   "blank id dropped",
			rec:    categoryRecord{Name: "Orphan"},
			wantOK: false,
		},
		{
			name:   "name defaults to id",
			rec:    categoryRecord{ID: "cat-1"},
			wantOK: true,
			want:   Category{ID: "cat-1", Name: "cat-1", Keywords: []string{"cat-1"}},
		},
		{
			name:   "missing keywords derive from name",
			rec:    categoryRecord{ID: "cat-dm", Name: "Data Management"},
			wantOK: true,
			want:   Category{ID: "cat-dm", Name: "Data Management", Keywords: []string{"data management"}},
		},
		{
			name:   "keywords lowercased and deduplicated",
			rec:    categoryRecord{ID: "cat-sec", Name: "Security", Keywords: []string{" Firewall ", "firewall", "", "SIEM"}},
			wantOK: true,
			want:   Category{ID: "cat-sec", Name: "Security", Keywords: []string{"firewall", "siem"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeCategory(tt.rec, 1)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeCategory() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeCategory_DepthCap(t *testing.T) {
	rec := categoryRecord{
		ID: "l1",
		Children: []categoryRecord{{
			ID: "l2",
			Children: []categoryRecord{{
				ID: "l3",
				Children: []categoryRecord{{
					ID: "l4",
				}},
			}},
		}},
	}

	got, ok := normalizeCategory(rec, 1)
	if !ok {
		t.Fatal("normalizeCategory() rejected valid record")
	}

	l2 := got.Children
	if len(l2) != 1 {
		t.Fatalf("level 2 count = %d, want 1", len(l2))
	}
	l3 := l2[0].Children
	if len(l3) != 1 {
		t.Fatalf("level 3 count = %d, want 1", len(l3))
	}
	if len(l3[0].Children) != 0 {
		t.Errorf("level 4 kept %d children, want tree capped at three levels", len(l3[0].Children))
	}
}

func TestNormalizeCategory_MergesChildKeys(t *testing.T) {
	rec := categoryRecord{
		ID:            "parent",
		Children:      []categoryRecord{{ID: "via-children"}},
		SubCategories: []categoryRecord{{ID: "via-subcategories"}},
	}

	got, ok := normalizeCategory(rec, 1)
	if !ok {
		t.Fatal("normalizeCategory() rejected valid record")
	}
	if len(got.Children) != 2 {
		t.Fatalf("len(Children) = %d, want both wire keys merged", len(got.Children))
	}
	if got.Children[0].ID != "via-children" || got.Children[1].ID != "via-subcategories" {
		t.Errorf("children order = %s, %s; want children before subCategories", got.Children[0].ID, got.Children[1].ID)
	}
}

func TestNormalizeOEM(t *testing.T) {
	if _, ok := normalizeOEM(oemRecord{Name: "No ID"}); ok {
		t.Error("record without id should be dropped")
	}

	got, ok := normalizeOEM(oemRecord{ID: "oem-ms", Name: "Microsoft", Keywords: []string{"Azure"}})
	if !ok {
		t.Fatal("normalizeOEM() rejected valid record")
	}
	want := OEM{ID: "oem-ms", Name: "Microsoft", Keywords: []string{"azure"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeOEM() = %+v, want %+v", got, want)
	}
}
