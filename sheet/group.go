package sheet

import "sort"

// CategoryGroup holds the rows of one category in source order.
type CategoryGroup struct {
	Label string `json:"label"`
	Rows  []Row  `json:"rows"`
}

// Order is the ordinal of the group's first row.
func (g CategoryGroup) Order() int {
	if len(g.Rows) == 0 {
		return 0
	}
	return g.Rows[0].CategoryOrder
}

// GroupByCategory buckets rows by label and orders the buckets by the
// ordinal of their first row. Equal ordinals keep first-seen order.
func GroupByCategory(rows []Row) []CategoryGroup {
	index := make(map[string]int)
	groups := make([]CategoryGroup, 0)
	for _, row := range rows {
		i, ok := index[row.Category]
		if !ok {
			i = len(groups)
			index[row.Category] = i
			groups = append(groups, CategoryGroup{Label: row.Category})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Order() < groups[b].Order()
	})
	return groups
}
