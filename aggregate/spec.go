// Package aggregate implements a backend-agnostic sublanguage for expressing
// statistics and groupings over streams of documents: a normalizer that
// expands the request shorthands into a closed spec, a group-key resolver for
// discrete, numeric-range, fixed-interval and calendar-time-component
// bucketing, incremental stat accumulators, and the one-pass streaming engine
// that ties them together.
package aggregate

import (
	"encoding/json"
	"time"
)

// Kind discriminates the two spec variants.
type Kind string

const (
	// KindStats computes flat statistics over the whole matched set.
	KindStats Kind = "stats"
	// KindGroup partitions matched records by one or more group keys.
	KindGroup Kind = "group"
)

// Spec is a fully expanded, validated aggregate request. Build one with
// Normalize; a hand-built Spec may be passed back through Normalize to
// validate it.
type Spec struct {
	Kind    Kind                   `json:"type"`
	Stats   map[string]StatRequest `json:"stats,omitempty"`
	GroupBy []GroupByClause        `json:"groupBy,omitempty"`
	Total   bool                   `json:"total,omitempty"`
}

// StatRequest selects the statistics to compute for one field. Extra carries
// stat keys the normalizer did not recognize; they pass through opaquely so a
// backend with native aggregation can serve extensions beyond the built-in
// four.
type StatRequest struct {
	Count bool           `json:"count,omitempty"`
	Avg   bool           `json:"avg,omitempty"`
	Min   bool           `json:"min,omitempty"`
	Max   bool           `json:"max,omitempty"`
	Extra map[string]any `json:"-"`
}

func (r StatRequest) empty() bool {
	return !r.Count && !r.Avg && !r.Min && !r.Max && len(r.Extra) == 0
}

// GroupKind discriminates the grouping modes of a clause.
type GroupKind string

const (
	// GroupDiscrete forms one group per distinct field value.
	GroupDiscrete GroupKind = "discrete"
	// GroupRanges buckets numeric values into ordered half-open intervals.
	GroupRanges GroupKind = "ranges"
	// GroupInterval buckets values into fixed-width numeric or duration buckets.
	GroupInterval GroupKind = "interval"
	// GroupTimeComponent buckets timestamps into calendar-aligned spans.
	GroupTimeComponent GroupKind = "timeComponent"
)

// Component names a calendar unit for GroupTimeComponent clauses.
type Component string

const (
	ComponentYear   Component = "year"
	ComponentMonth  Component = "month"
	ComponentWeek   Component = "week"
	ComponentDay    Component = "day"
	ComponentHour   Component = "hour"
	ComponentMinute Component = "minute"
	ComponentSecond Component = "second"
)

// Range is one half-open interval [Start, End). A nil bound is unbounded.
type Range struct {
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
}

// GroupByClause is one tagged grouping directive over a single field. Only
// the fields matching Kind are meaningful. The JSON rendering is the wire
// clause shape, where the grouping mode is implied by which keys are
// present, so a marshaled clause can be fed back through Normalize.
type GroupByClause struct {
	Field string    `json:"field"`
	Kind  GroupKind `json:"-"`

	// GroupRanges
	Ranges []Range `json:"ranges,omitempty"`

	// GroupInterval. A duration interval (IsTime) buckets instants from
	// BaseTime; a numeric interval buckets numbers from Base.
	Interval         float64       `json:"interval,omitempty"`
	IntervalDuration time.Duration `json:"-"`
	IsTime           bool          `json:"-"`
	Base             float64       `json:"base,omitempty"`
	BaseTime         time.Time     `json:"-"`

	// GroupTimeComponent
	Component      Component `json:"timeComponent,omitempty"`
	ComponentCount int       `json:"timeComponentCount,omitempty"`
}

// MarshalJSON renders the clause in its wire shape. Duration intervals
// re-render as an ISO duration string with an RFC 3339 base, since the
// parsed IntervalDuration/BaseTime pair has no wire representation of its
// own.
func (c GroupByClause) MarshalJSON() ([]byte, error) {
	type wire GroupByClause
	if !c.IsTime {
		return json.Marshal(wire(c))
	}
	return json.Marshal(struct {
		wire
		Interval string `json:"interval"`
		Base     string `json:"base"`
	}{wire(c), FormatISODuration(c.IntervalDuration), c.BaseTime.UTC().Format(time.RFC3339Nano)})
}

// Clone returns a deep copy of the spec, so a caller can mutate the result of
// Normalize without aliasing the input.
func (s *Spec) Clone() *Spec {
	if s == nil {
		return nil
	}
	out := &Spec{Kind: s.Kind, Total: s.Total}
	if s.Stats != nil {
		out.Stats = make(map[string]StatRequest, len(s.Stats))
		for k, v := range s.Stats {
			if v.Extra != nil {
				extra := make(map[string]any, len(v.Extra))
				for ek, ev := range v.Extra {
					extra[ek] = ev
				}
				v.Extra = extra
			}
			out.Stats[k] = v
		}
	}
	if s.GroupBy != nil {
		out.GroupBy = make([]GroupByClause, len(s.GroupBy))
		copy(out.GroupBy, s.GroupBy)
		for i, c := range s.GroupBy {
			if c.Ranges != nil {
				out.GroupBy[i].Ranges = make([]Range, len(c.Ranges))
				copy(out.GroupBy[i].Ranges, c.Ranges)
			}
		}
	}
	return out
}
