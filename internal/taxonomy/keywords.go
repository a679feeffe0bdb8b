package taxonomy

// Entry is one row of the keyword table: the keywords that resolve to
// a category or OEM id.
type Entry struct {
	ID       string
	Name     string
	Keywords []string
}

// Table is the flattened lookup the intent resolver scans. Entries
// keep document order; the resolver commits to the first match, so
// this order is the tie-break between overlapping keyword sets.
type Table struct {
	Categories []Entry
	OEMs       []Entry
}

// Empty reports whether the table has nothing to match against.
func (t Table) Empty() bool {
	return len(t.Categories) == 0 && len(t.OEMs) == 0
}

// BuildTable flattens a taxonomy snapshot into the keyword table.
// Categories are walked depth-first in document order, parents before
// their children.
func BuildTable(tree Tree) Table {
	var table Table
	for _, cat := range tree.Categories {
		appendCategory(&table.Categories, cat)
	}
	for _, oem := range tree.OEMs {
		table.OEMs = append(table.OEMs, Entry{
			ID:       oem.ID,
			Name:     oem.Name,
			Keywords: oem.Keywords,
		})
	}
	return table
}

func appendCategory(entries *[]Entry, cat Category) {
	*entries = append(*entries, Entry{
		ID:       cat.ID,
		Name:     cat.Name,
		Keywords: cat.Keywords,
	})
	for _, child := range cat.Children {
		appendCategory(entries, child)
	}
}
