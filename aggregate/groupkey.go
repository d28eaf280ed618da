package aggregate

import (
	"math"
	"time"
)

// calendarEpoch anchors time-component bucketing: buckets of every unit are
// counted from year 1 (proleptic Gregorian, UTC), not from the Unix epoch, so
// month and week alignment stays calendar-correct. The epoch falls on a
// Monday, which makes week buckets Monday-aligned.
var calendarEpoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// resolveKey computes the group key component a record's field value falls
// into under one clause. ok=false means the value is null/absent or outside
// every range: the record belongs to no group for this clause. Records with
// null group-by values are dropped from all groups rather than collected into
// a null bucket; that mirrors the long-standing behavior of this sublanguage
// and may want revisiting.
func resolveKey(clause GroupByClause, idx int, value any) (key any, ok bool, err error) {
	if value == nil {
		return nil, false, nil
	}
	switch clause.Kind {
	case GroupDiscrete:
		return value, true, nil
	case GroupRanges:
		return resolveRangeKey(clause, idx, value)
	case GroupInterval:
		if clause.IsTime {
			return resolveTimeIntervalKey(clause, idx, value)
		}
		return resolveNumericIntervalKey(clause, idx, value)
	case GroupTimeComponent:
		return resolveComponentKey(clause, idx, value)
	default:
		return nil, false, &UnsupportedOperationError{Op: string(clause.Kind), Path: clause.Field}
	}
}

// resolveRangeKey scans the ordered ranges for the single half-open interval
// containing the value. The ascending non-overlapping invariant guarantees at
// most one match; a value outside every range belongs to no group. The key is
// the zero-based range index.
func resolveRangeKey(clause GroupByClause, idx int, value any) (any, bool, error) {
	f, ok := numericValue(value)
	if !ok {
		return nil, false, mismatchErr(clause.Field, idx, value, "a number for a ranges clause")
	}
	for i, r := range clause.Ranges {
		if r.Start != nil && f < *r.Start {
			continue
		}
		if r.End != nil && f >= *r.End {
			continue
		}
		return i, true, nil
	}
	return nil, false, nil
}

// resolveNumericIntervalKey floors the value into a fixed-width bucket
// counted from the clause base. The key is the bucket's start value.
func resolveNumericIntervalKey(clause GroupByClause, idx int, value any) (any, bool, error) {
	f, ok := numericValue(value)
	if !ok {
		return nil, false, mismatchErr(clause.Field, idx, value, "a number for an interval clause")
	}
	bucket := math.Floor((f - clause.Base) / clause.Interval)
	return clause.Base + bucket*clause.Interval, true, nil
}

// resolveTimeIntervalKey is the instant analog: duration-width buckets
// counted from the base instant. The key is the RFC 3339 rendering of the
// bucket start. Arithmetic runs on millisecond ticks (interval durations
// carry millisecond resolution) rebuilt through time.Unix; nanosecond
// deltas would overflow int64 for instants outside roughly 1678-2262.
func resolveTimeIntervalKey(clause GroupByClause, idx int, value any) (any, bool, error) {
	t, ok := timeValue(value)
	if !ok {
		return nil, false, mismatchErr(clause.Field, idx, value, "a timestamp for a duration interval clause")
	}
	base := clause.BaseTime
	subMs := floorDiv(int64(t.Nanosecond())-int64(base.Nanosecond()), int64(time.Millisecond))
	deltaMs := (t.Unix()-base.Unix())*1000 + subMs
	intervalMs := clause.IntervalDuration.Milliseconds()
	offsetMs := floorDiv(deltaMs, intervalMs) * intervalMs
	secs := floorDiv(offsetMs, 1000)
	start := time.Unix(base.Unix()+secs, int64(base.Nanosecond())+(offsetMs-secs*1000)*int64(time.Millisecond)).UTC()
	return formatTimeKey(start), true, nil
}

// resolveComponentKey truncates the instant to its calendar unit, then groups
// ComponentCount consecutive units into one bucket counted from the unit's
// absolute epoch. The last bucket inside an irregular-length span may be
// shorter than ComponentCount units; that is expected. The key is the
// RFC 3339 rendering of the bucket's calendar start.
func resolveComponentKey(clause GroupByClause, idx int, value any) (any, bool, error) {
	t, ok := timeValue(value)
	if !ok {
		return nil, false, mismatchErr(clause.Field, idx, value, "a timestamp for a timeComponent clause")
	}
	n := int64(clause.ComponentCount)

	var start time.Time
	switch clause.Component {
	case ComponentYear:
		// Years are 1-based: bucket starts land on year 1, 1+n, 1+2n, ...
		y := int64(t.Year()) - 1
		start = time.Date(int((y/n)*n)+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	case ComponentMonth:
		months := int64(t.Year()-1)*12 + int64(t.Month()) - 1
		bucket := (months / n) * n
		start = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, int(bucket), 0)
	default:
		unit, ok := componentSeconds[clause.Component]
		if !ok {
			return nil, false, &UnsupportedOperationError{Op: string(clause.Component), Path: clause.Field}
		}
		// Second-resolution arithmetic: the span back to year 1 overflows
		// time.Duration, so the bucket start is rebuilt from Unix seconds.
		secs := t.Unix() - calendarEpoch.Unix()
		bucket := floorDiv(secs, unit*n) * unit * n
		start = time.Unix(calendarEpoch.Unix()+bucket, 0).UTC()
	}
	return formatTimeKey(start), true, nil
}

// componentSeconds maps the fixed-length calendar units to their width. Weeks
// are 7-day spans from the epoch Monday; years and months are handled via
// calendar fields above.
var componentSeconds = map[Component]int64{
	ComponentWeek:   7 * 86400,
	ComponentDay:    86400,
	ComponentHour:   3600,
	ComponentMinute: 60,
	ComponentSecond: 1,
}

// floorDiv is integer division rounding toward negative infinity, so
// pre-base values land in the bucket below rather than the one above.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
