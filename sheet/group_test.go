package sheet

import (
	"reflect"
	"testing"
)

func labels(groups []CategoryGroup) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.Label)
	}
	return out
}

func TestGroupByCategoryOrdersByOrdinal(t *testing.T) {
	rows := []Row{
		{ID: 1, Category: "Sleep", CategoryOrder: 3},
		{ID: 2, Category: "Diet", CategoryOrder: 1},
		{ID: 3, Category: "Exercise", CategoryOrder: 2},
	}
	groups := GroupByCategory(rows)
	if got := labels(groups); !reflect.DeepEqual(got, []string{"Diet", "Exercise", "Sleep"}) {
		t.Fatalf("group order = %v", got)
	}
	for i, g := range groups {
		if g.Order() != i+1 {
			t.Fatalf("group %q has ordinal %d, want %d", g.Label, g.Order(), i+1)
		}
	}
}

func TestGroupByCategoryKeepsRowOrderWithinGroup(t *testing.T) {
	rows := []Row{
		{ID: 10, Category: "A", CategoryOrder: 2},
		{ID: 11, Category: "B", CategoryOrder: 1},
		{ID: 12, Category: "A", CategoryOrder: 2},
		{ID: 13, Category: "A", CategoryOrder: 2},
	}
	groups := GroupByCategory(rows)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	var ids []int
	for _, r := range groups[1].Rows {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []int{10, 12, 13}) {
		t.Fatalf("row order in group A = %v", ids)
	}
}

func TestGroupByCategoryStableOnTies(t *testing.T) {
	rows := []Row{
		{ID: 1, Category: "Z", CategoryOrder: 1},
		{ID: 2, Category: "Y", CategoryOrder: 1},
		{ID: 3, Category: "X", CategoryOrder: 0},
		{ID: 4, Category: "W", CategoryOrder: 1},
	}
	if got := labels(GroupByCategory(rows)); !reflect.DeepEqual(got, []string{"X", "Z", "Y", "W"}) {
		t.Fatalf("group order = %v", got)
	}
}

func TestGroupByCategoryUsesFirstRowOrdinal(t *testing.T) {
	rows := []Row{
		{ID: 1, Category: "A", CategoryOrder: 5},
		{ID: 2, Category: "B", CategoryOrder: 3},
		{ID: 3, Category: "A", CategoryOrder: 1},
	}
	if got := labels(GroupByCategory(rows)); !reflect.DeepEqual(got, []string{"B", "A"}) {
		t.Fatalf("group order = %v", got)
	}
}

func TestGroupByCategoryEmpty(t *testing.T) {
	if groups := GroupByCategory(nil); len(groups) != 0 {
		t.Fatalf("GroupByCategory(nil) = %v", groups)
	}
}
