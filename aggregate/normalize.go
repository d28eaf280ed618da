package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Options configures normalization behavior.
type Options struct {
	// AllowUnknownStats keeps unrecognized stat keys as opaque pass-through
	// entries (StatRequest.Extra) instead of rejecting them, so backends may
	// extend the stat vocabulary beyond count/avg/min/max.
	AllowUnknownStats bool
	// StrictFieldPaths rejects field paths containing whitespace or empty
	// dot-separated segments.
	StrictFieldPaths bool
	// AllowUnknownKeys accepts unrecognized top-level and clause keys instead
	// of failing validation.
	AllowUnknownKeys bool
}

// DefaultOptions returns the normalizer defaults.
func DefaultOptions() Options {
	return Options{AllowUnknownStats: true, StrictFieldPaths: true}
}

var unixEpoch = time.Unix(0, 0).UTC()

// Normalize parses, validates and canonicalizes a raw aggregate request into
// a fully expanded Spec. It accepts the wire form (a nested map) or an
// already-typed Spec, which is re-validated; normalization is idempotent. All
// failures are ValidationErrors and happen before any record is touched.
func Normalize(raw any, opts Options) (*Spec, error) {
	switch v := raw.(type) {
	case *Spec:
		if v == nil {
			return nil, validationErr("", -1, "nil spec")
		}
		return normalizeTyped(v.Clone(), opts)
	case Spec:
		return normalizeTyped(v.Clone(), opts)
	case map[string]any:
		return normalizeMap(v, opts)
	default:
		return nil, validationErr("", -1, "unsupported spec type %T", raw)
	}
}

func normalizeMap(raw map[string]any, opts Options) (*Spec, error) {
	spec := &Spec{}

	for key, value := range raw {
		switch strings.ToLower(key) {
		case "type", "aggregatetype":
			kind, ok := value.(string)
			if !ok {
				return nil, validationErr("", -1, "discriminator %q must be a string, got %T", key, value)
			}
			switch Kind(kind) {
			case KindStats, KindGroup:
				spec.Kind = Kind(kind)
			default:
				return nil, validationErr("", -1, "unknown aggregate type %q", kind)
			}
		case "total":
			total, ok := value.(bool)
			if !ok {
				return nil, validationErr("", -1, "total must be a bool, got %T", value)
			}
			spec.Total = total
		case "stats", "groupby":
			// handled below, after the discriminator is settled
		default:
			if !opts.AllowUnknownKeys {
				return nil, validationErr("", -1, "unknown key %q", key)
			}
		}
	}

	rawGroupBy, hasGroupBy := topKey(raw, "groupBy")
	rawStats, hasStats := topKey(raw, "stats")

	if spec.Kind == "" {
		if hasGroupBy {
			spec.Kind = KindGroup
		} else {
			spec.Kind = KindStats
		}
	}

	if hasStats {
		stats, err := normalizeStats(rawStats, opts)
		if err != nil {
			return nil, err
		}
		spec.Stats = stats
	}
	if hasGroupBy {
		clauses, err := normalizeGroupBy(rawGroupBy, opts)
		if err != nil {
			return nil, err
		}
		spec.GroupBy = clauses
	}

	return spec, validateSpec(spec, opts)
}

// topKey finds a top-level key case-insensitively; wire payloads arrive with
// camelCase keys but config-sourced specs may be lower-cased.
func topKey(raw map[string]any, name string) (any, bool) {
	for k, v := range raw {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func normalizeStats(raw any, opts Options) (map[string]StatRequest, error) {
	switch v := raw.(type) {
	case string:
		// {stats: "field"} shorthand: count that field.
		return map[string]StatRequest{v: {Count: true}}, nil
	case map[string]any:
		out := make(map[string]StatRequest, len(v))
		for field, rawReq := range v {
			req, err := normalizeStatRequest(field, rawReq, opts)
			if err != nil {
				return nil, err
			}
			out[field] = req
		}
		return out, nil
	default:
		return nil, validationErr("", -1, "stats must be a field path or a mapping, got %T", raw)
	}
}

func normalizeStatRequest(field string, raw any, opts Options) (StatRequest, error) {
	switch v := raw.(type) {
	case bool:
		if !v {
			return StatRequest{}, validationErr(field, -1, "stat shorthand must be true")
		}
		return StatRequest{Count: true}, nil
	case map[string]any:
		var req StatRequest
		for key, flagRaw := range v {
			flag, isBool := flagRaw.(bool)
			switch key {
			case "count", "avg", "min", "max":
				if !isBool {
					return StatRequest{}, validationErr(field, -1, "stat %q must be a bool, got %T", key, flagRaw)
				}
				switch key {
				case "count":
					req.Count = flag
				case "avg":
					req.Avg = flag
				case "min":
					req.Min = flag
				case "max":
					req.Max = flag
				}
			default:
				if !opts.AllowUnknownStats {
					return StatRequest{}, validationErr(field, -1, "unknown stat %q", key)
				}
				if req.Extra == nil {
					req.Extra = make(map[string]any)
				}
				req.Extra[key] = flagRaw
			}
		}
		if req.empty() && len(v) > 0 {
			return StatRequest{}, validationErr(field, -1, "no stat requested")
		}
		if req.empty() {
			req.Count = true
		}
		return req, nil
	default:
		return StatRequest{}, validationErr(field, -1, "stat request must be true or a mapping, got %T", raw)
	}
}

func normalizeGroupBy(raw any, opts Options) ([]GroupByClause, error) {
	switch v := raw.(type) {
	case string:
		return []GroupByClause{{Field: v, Kind: GroupDiscrete}}, nil
	case map[string]any:
		clause, err := normalizeClause(v, 0, opts)
		if err != nil {
			return nil, err
		}
		return []GroupByClause{clause}, nil
	case []any:
		if len(v) == 0 {
			return nil, validationErr("", -1, "groupBy requires at least one clause")
		}
		out := make([]GroupByClause, 0, len(v))
		for i, item := range v {
			switch c := item.(type) {
			case string:
				out = append(out, GroupByClause{Field: c, Kind: GroupDiscrete})
			case map[string]any:
				clause, err := normalizeClause(c, i, opts)
				if err != nil {
					return nil, err
				}
				out = append(out, clause)
			default:
				return nil, validationErr("", i, "groupBy clause must be a field path or a mapping, got %T", item)
			}
		}
		return out, nil
	default:
		return nil, validationErr("", -1, "groupBy must be a field path, a clause or a sequence, got %T", raw)
	}
}

// rawClause is the loose wire shape of one groupBy clause before its grouping
// mode is decided.
type rawClause struct {
	Field              string `mapstructure:"field"`
	Ranges             []any  `mapstructure:"ranges"`
	Interval           any    `mapstructure:"interval"`
	Base               any    `mapstructure:"base"`
	TimeComponent      string `mapstructure:"timeComponent"`
	TimeComponentCount any    `mapstructure:"timeComponentCount"`
}

func normalizeClause(raw map[string]any, idx int, opts Options) (GroupByClause, error) {
	var rc rawClause
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:   &rc,
		Metadata: &md,
	})
	if err != nil {
		return GroupByClause{}, fmt.Errorf("aggregate: clause decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return GroupByClause{}, validationErr("", idx, "malformed clause: %v", err)
	}
	if len(md.Unused) > 0 && !opts.AllowUnknownKeys {
		sort.Strings(md.Unused)
		return GroupByClause{}, validationErr(rc.Field, idx, "unknown clause key %q", md.Unused[0])
	}

	clause := GroupByClause{Field: rc.Field}

	modes := 0
	if rc.Ranges != nil {
		modes++
		clause.Kind = GroupRanges
	}
	if rc.Interval != nil {
		modes++
		clause.Kind = GroupInterval
	}
	if rc.TimeComponent != "" {
		modes++
		clause.Kind = GroupTimeComponent
	}
	if modes > 1 {
		return GroupByClause{}, validationErr(rc.Field, idx, "clause mixes grouping modes")
	}
	if modes == 0 {
		clause.Kind = GroupDiscrete
	}

	switch clause.Kind {
	case GroupRanges:
		ranges, err := normalizeRanges(rc.Ranges, rc.Field, idx)
		if err != nil {
			return GroupByClause{}, err
		}
		clause.Ranges = ranges
	case GroupInterval:
		if err := normalizeInterval(&clause, rc, idx); err != nil {
			return GroupByClause{}, err
		}
	case GroupTimeComponent:
		clause.Component = Component(rc.TimeComponent)
		clause.ComponentCount = 1
		if rc.TimeComponentCount != nil {
			count, ok := numericValue(rc.TimeComponentCount)
			if !ok || count != float64(int(count)) {
				return GroupByClause{}, validationErr(rc.Field, idx, "timeComponentCount must be an integer, got %v", rc.TimeComponentCount)
			}
			clause.ComponentCount = int(count)
		}
	}

	return clause, nil
}

func normalizeRanges(raw []any, field string, idx int) ([]Range, error) {
	if len(raw) == 0 {
		return nil, validationErr(field, idx, "ranges must not be empty")
	}

	// Boundary-scalar shorthand: [b1, b2, ...] expands to the half-open chain
	// (-inf,b1), [b1,b2), ..., [bn,+inf).
	if _, scalar := numericValue(raw[0]); scalar {
		bounds := make([]float64, len(raw))
		for i, b := range raw {
			f, ok := numericValue(b)
			if !ok {
				return nil, validationErr(field, idx, "ranges mixes boundary scalars and range objects")
			}
			bounds[i] = f
		}
		for i := 1; i < len(bounds); i++ {
			if bounds[i] <= bounds[i-1] {
				return nil, validationErr(field, idx, "unsorted ranges")
			}
		}
		out := make([]Range, 0, len(bounds)+1)
		out = append(out, Range{End: ptr(bounds[0])})
		for i := 1; i < len(bounds); i++ {
			out = append(out, Range{Start: ptr(bounds[i-1]), End: ptr(bounds[i])})
		}
		out = append(out, Range{Start: ptr(bounds[len(bounds)-1])})
		return out, nil
	}

	out := make([]Range, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, validationErr(field, idx, "range must be a {start, end} mapping, got %T", item)
		}
		var r Range
		for k, v := range m {
			f, ok := numericValue(v)
			if !ok {
				return nil, validationErr(field, idx, "range bound %q must be numeric, got %T", k, v)
			}
			switch strings.ToLower(k) {
			case "start":
				r.Start = ptr(f)
			case "end":
				r.End = ptr(f)
			default:
				return nil, validationErr(field, idx, "unknown range key %q", k)
			}
		}
		out = append(out, r)
	}
	if err := checkRanges(out, field, idx); err != nil {
		return nil, err
	}
	return out, nil
}

// checkRanges enforces the ascending non-overlapping invariant the resolver
// relies on: at most the first range is open at the start, at most the last
// is open at the end, and consecutive ranges never intersect.
func checkRanges(ranges []Range, field string, idx int) error {
	for i, r := range ranges {
		if r.Start != nil && r.End != nil && *r.Start >= *r.End {
			return validationErr(field, idx, "empty range [%v, %v)", *r.Start, *r.End)
		}
		if i == 0 {
			continue
		}
		prev := ranges[i-1]
		if prev.End == nil || r.Start == nil || *r.Start < *prev.End {
			return validationErr(field, idx, "unsorted ranges")
		}
	}
	return nil
}

func normalizeInterval(clause *GroupByClause, rc rawClause, idx int) error {
	switch iv := rc.Interval.(type) {
	case string:
		d, err := ParseISODuration(iv)
		if err != nil {
			return validationErr(rc.Field, idx, "%v", err)
		}
		clause.IsTime = true
		clause.IntervalDuration = d
		clause.BaseTime = unixEpoch
		if rc.Base != nil {
			baseStr, ok := rc.Base.(string)
			if !ok {
				return validationErr(rc.Field, idx, "base for a duration interval must be a timestamp, got %T", rc.Base)
			}
			base, err := ParseTimestamp(baseStr)
			if err != nil {
				return validationErr(rc.Field, idx, "%v", err)
			}
			clause.BaseTime = base
		}
	default:
		f, ok := numericValue(rc.Interval)
		if !ok {
			return validationErr(rc.Field, idx, "interval must be a number or an ISO-8601 duration, got %T", rc.Interval)
		}
		if f <= 0 {
			return validationErr(rc.Field, idx, "interval must be positive, got %v", f)
		}
		clause.Interval = f
		if rc.Base != nil {
			base, ok := numericValue(rc.Base)
			if !ok {
				return validationErr(rc.Field, idx, "base for a numeric interval must be a number, got %T", rc.Base)
			}
			clause.Base = base
		}
	}
	return nil
}

// normalizeTyped re-validates a Spec built in code, filling the same defaults
// the wire path fills so that normalization converges after one pass.
func normalizeTyped(spec *Spec, opts Options) (*Spec, error) {
	if spec.Kind == "" {
		if len(spec.GroupBy) > 0 {
			spec.Kind = KindGroup
		} else {
			spec.Kind = KindStats
		}
	}
	for field, req := range spec.Stats {
		if req.empty() {
			req.Count = true
			spec.Stats[field] = req
		}
		if !opts.AllowUnknownStats && len(req.Extra) > 0 {
			for key := range req.Extra {
				return nil, validationErr(field, -1, "unknown stat %q", key)
			}
		}
	}
	for i := range spec.GroupBy {
		clause := &spec.GroupBy[i]
		if clause.Kind == "" {
			clause.Kind = GroupDiscrete
		}
		switch clause.Kind {
		case GroupRanges:
			if len(clause.Ranges) == 0 {
				return nil, validationErr(clause.Field, i, "ranges must not be empty")
			}
			if err := checkRanges(clause.Ranges, clause.Field, i); err != nil {
				return nil, err
			}
		case GroupInterval:
			if clause.IntervalDuration > 0 {
				clause.IsTime = true
				if clause.BaseTime.IsZero() {
					clause.BaseTime = unixEpoch
				}
			} else if clause.Interval <= 0 {
				return nil, validationErr(clause.Field, i, "interval must be positive, got %v", clause.Interval)
			}
		case GroupTimeComponent:
			if clause.ComponentCount == 0 {
				clause.ComponentCount = 1
			}
		}
	}
	return spec, validateSpec(spec, opts)
}

// validateSpec checks the cross-cutting invariants shared by both input
// paths.
func validateSpec(spec *Spec, opts Options) error {
	switch spec.Kind {
	case KindStats:
		if len(spec.GroupBy) > 0 {
			return validationErr("", -1, "stats aggregate cannot carry groupBy clauses")
		}
		if len(spec.Stats) == 0 && !spec.Total {
			return validationErr("", -1, "stats aggregate requires stats fields or total")
		}
	case KindGroup:
		if len(spec.GroupBy) == 0 {
			return validationErr("", -1, "group aggregate requires at least one groupBy clause")
		}
	default:
		return validationErr("", -1, "unknown aggregate type %q", spec.Kind)
	}

	for field := range spec.Stats {
		if err := checkFieldPath(field, -1, opts); err != nil {
			return err
		}
	}
	for i, clause := range spec.GroupBy {
		if err := checkFieldPath(clause.Field, i, opts); err != nil {
			return err
		}
		if clause.Kind == GroupTimeComponent {
			switch clause.Component {
			case ComponentYear, ComponentMonth, ComponentWeek, ComponentDay,
				ComponentHour, ComponentMinute, ComponentSecond:
			default:
				return validationErr(clause.Field, i, "unknown time component %q", clause.Component)
			}
			if clause.ComponentCount < 1 {
				return validationErr(clause.Field, i, "timeComponentCount must be >= 1, got %d", clause.ComponentCount)
			}
		}
	}
	return nil
}

func checkFieldPath(path string, clause int, opts Options) error {
	if path == "" {
		return validationErr("", clause, "field path must not be empty")
	}
	if !opts.StrictFieldPaths {
		return nil
	}
	if strings.ContainsAny(path, " \t\n") {
		return validationErr(path, clause, "field path contains whitespace")
	}
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return validationErr(path, clause, "field path contains an empty segment")
		}
	}
	return nil
}

func ptr(f float64) *float64 { return &f }
