package aggregate

import "github.com/shopspring/decimal"

// accumulator computes the requested statistics for one (group, field) pair
// incrementally, one record at a time. Every ingest is O(1) in space and
// time; sources may stream unbounded record counts, so raw values are never
// buffered.
type accumulator struct {
	req StatRequest

	count int64

	sum      decimal.Decimal
	avgCount int64

	min, max any
}

func newAccumulator(req StatRequest) *accumulator {
	return &accumulator{req: req, sum: decimal.Zero}
}

// ingest folds one field value into the running aggregates. Null/absent
// values are excluded from every stat. Non-numeric values under avg, and
// values not comparable to the running extremum under min/max, are type
// mismatches fatal to the run.
func (a *accumulator) ingest(path string, value any) error {
	if value == nil {
		return nil
	}
	if a.req.Count {
		a.count++
	}
	if a.req.Avg {
		d, ok := decimalValue(value)
		if !ok {
			return mismatchErr(path, -1, value, "a number for avg")
		}
		a.sum = a.sum.Add(d)
		a.avgCount++
	}
	if a.req.Min {
		if a.min == nil {
			a.min = value
		} else if cmp, ok := compareValues(value, a.min); !ok {
			return mismatchErr(path, -1, value, "a value comparable for min")
		} else if cmp < 0 {
			a.min = value
		}
	}
	if a.req.Max {
		if a.max == nil {
			a.max = value
		} else if cmp, ok := compareValues(value, a.max); !ok {
			return mismatchErr(path, -1, value, "a value comparable for max")
		} else if cmp > 0 {
			a.max = value
		}
	}
	return nil
}

// render produces the wire shape for this field: only the requested sub-keys,
// and only those that are defined (avg/min/max stay absent when no non-null
// value was seen).
func (a *accumulator) render() map[string]any {
	out := make(map[string]any)
	if a.req.Count {
		out["count"] = a.count
	}
	if a.req.Avg && a.avgCount > 0 {
		avg, _ := a.sum.Div(decimal.NewFromInt(a.avgCount)).Float64()
		out["avg"] = avg
	}
	if a.req.Min && a.min != nil {
		out["min"] = a.min
	}
	if a.req.Max && a.max != nil {
		out["max"] = a.max
	}
	return out
}
