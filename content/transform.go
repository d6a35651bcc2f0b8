package content

import (
	"sort"
	"strings"
)

// activeValue marks a published record in the JSON sheets.
const activeValue = "sim"

// IsActive reports whether a sheet "ativo" cell means published.
func IsActive(v Text) bool {
	return strings.EqualFold(strings.TrimSpace(string(v)), activeValue)
}

// Tips keeps active tips ordered by their ordinal, then id.
func Tips(in []Tip) []Tip {
	out := filter(in, func(t Tip) bool { return IsActive(t.Active) })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Videos keeps active videos, newest first. Undated videos sort last in
// their original order.
func Videos(in []Video) []Video {
	out := filter(in, func(v Video) bool { return IsActive(v.Active) })
	sort.SliceStable(out, func(i, j int) bool {
		ti, oki := ParseDate(out[i].Date)
		tj, okj := ParseDate(out[j].Date)
		switch {
		case oki && okj:
			return ti.After(tj)
		case oki != okj:
			return oki
		default:
			return false
		}
	})
	return out
}

// Ratings keeps active rating prompts ordered by id.
func Ratings(in []Rating) []Rating {
	out := filter(in, func(r Rating) bool { return IsActive(r.Active) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ShareLinks keeps active share links ordered by priority, then id.
func ShareLinks(in []ShareLink) []ShareLink {
	out := filter(in, func(s ShareLink) bool { return IsActive(s.Active) })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
