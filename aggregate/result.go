package aggregate

import (
	"encoding/json"
	"sort"
)

// GroupResult is one rendered group: the composite key (one part per groupBy
// clause, in clause order), the requested stats, and the record total when
// the spec asked for it.
type GroupResult struct {
	Key      []any                     `json:"key"`
	Stats    map[string]map[string]any `json:"stats,omitempty"`
	Total    int64                     `json:"total,omitempty"`
	HasTotal bool                      `json:"-"`
}

// Result is the rendered output of one run. A stats-kind result carries the
// flat per-field stats; a group-kind result carries the ordered group list,
// in first-seen order unless the run options sorted it.
type Result struct {
	Kind     Kind
	Stats    map[string]map[string]any
	Groups   []GroupResult
	Total    int64
	HasTotal bool
	// Partial marks a result rendered from a run that terminated before the
	// end of its source (only produced under RunOptions.AllowPartial).
	Partial bool
}

// AsMap renders the result in its wire shape: a flat mapping for stats
// aggregates, `{"groups": [...]}` for grouped ones. Both are plain nested
// JSON-compatible structures.
func (r *Result) AsMap() map[string]any {
	out := make(map[string]any)
	if r.Kind == KindStats {
		for field, stats := range r.Stats {
			out[field] = stats
		}
		if r.HasTotal {
			out["total"] = r.Total
		}
		return out
	}

	groups := make([]map[string]any, 0, len(r.Groups))
	for _, g := range r.Groups {
		entry := map[string]any{"key": g.Key}
		if g.Stats != nil {
			entry["stats"] = g.Stats
		}
		if g.HasTotal {
			entry["total"] = g.Total
		}
		groups = append(groups, entry)
	}
	out["groups"] = groups
	return out
}

// MarshalJSON renders the wire shape directly.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.AsMap())
}

// sortGroups reorders the rendered list. First-seen order is kept when no
// sort is requested; key ordering compares composite keys part by part under
// the parts' natural ordering, falling back to the canonical encoding when
// parts are not mutually comparable.
func sortGroups(groups []GroupResult, by Sort) {
	if by == SortNone {
		return
	}
	desc := by == SortKeyDesc || by == SortTotalDesc
	byTotal := by == SortTotal || by == SortTotalDesc
	sort.SliceStable(groups, func(i, j int) bool {
		var cmp int
		if byTotal {
			switch {
			case groups[i].Total < groups[j].Total:
				cmp = -1
			case groups[i].Total > groups[j].Total:
				cmp = 1
			}
		} else {
			cmp = compareKeys(groups[i].Key, groups[j].Key)
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareKeys(a, b []any) int {
	for i := range a {
		if i >= len(b) {
			return 1
		}
		if cmp, ok := compareValues(a[i], b[i]); ok {
			if cmp != 0 {
				return cmp
			}
			continue
		}
		ea, _ := json.Marshal(a[i])
		eb, _ := json.Marshal(b[i])
		if cmp := string(ea); cmp != string(eb) {
			if cmp < string(eb) {
				return -1
			}
			return 1
		}
	}
	if len(a) < len(b) {
		return -1
	}
	return 0
}
