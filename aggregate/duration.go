package aggregate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseISODuration parses an ISO-8601 duration composed of fixed-length units
// only: weeks, days, hours, minutes and seconds (fractional seconds down to
// millisecond precision). Calendar-variable units (years, months) have no
// fixed width and are rejected; use a timeComponent clause for those.
func ParseISODuration(s string) (time.Duration, error) {
	orig := s
	if len(s) < 2 || (s[0] != 'P' && s[0] != 'p') {
		return 0, fmt.Errorf("invalid duration %q: must start with P", orig)
	}
	s = s[1:]

	datePart := s
	timePart := ""
	if i := strings.IndexAny(s, "Tt"); i >= 0 {
		datePart, timePart = s[:i], s[i+1:]
		if timePart == "" {
			return 0, fmt.Errorf("invalid duration %q: empty time part", orig)
		}
	}

	var total time.Duration
	seen := false

	consume := func(part string, units map[byte]time.Duration, label string) error {
		for part != "" {
			j := 0
			for j < len(part) && (part[j] >= '0' && part[j] <= '9' || part[j] == '.') {
				j++
			}
			if j == 0 || j == len(part) {
				return fmt.Errorf("invalid duration %q: malformed %s part", orig, label)
			}
			unit := part[j] &^ 0x20 // upper-case ASCII
			width, ok := units[unit]
			if !ok {
				if label == "date" && (unit == 'Y' || unit == 'M') {
					return fmt.Errorf("invalid duration %q: calendar-variable unit %q not allowed in interval", orig, string(part[j]))
				}
				return fmt.Errorf("invalid duration %q: unknown unit %q", orig, string(part[j]))
			}
			num := part[:j]
			if unit == 'S' {
				secs, err := strconv.ParseFloat(num, 64)
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", orig, err)
				}
				total += time.Duration(secs*1000) * time.Millisecond
			} else {
				if strings.Contains(num, ".") {
					return fmt.Errorf("invalid duration %q: fractional %s values not supported", orig, string(part[j]))
				}
				n, err := strconv.ParseInt(num, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", orig, err)
				}
				total += time.Duration(n) * width
			}
			seen = true
			part = part[j+1:]
		}
		return nil
	}

	dateUnits := map[byte]time.Duration{
		'W': 7 * 24 * time.Hour,
		'D': 24 * time.Hour,
	}
	timeUnits := map[byte]time.Duration{
		'H': time.Hour,
		'M': time.Minute,
		'S': time.Second,
	}
	if err := consume(datePart, dateUnits, "date"); err != nil {
		return 0, err
	}
	if err := consume(timePart, timeUnits, "time"); err != nil {
		return 0, err
	}
	if !seen {
		return 0, fmt.Errorf("invalid duration %q: no components", orig)
	}
	if total <= 0 {
		return 0, fmt.Errorf("invalid duration %q: must be positive", orig)
	}
	return total, nil
}

// FormatISODuration renders a positive duration in the fixed-unit form
// ParseISODuration accepts, using the largest whole units: days, hours,
// minutes and seconds (fractional down to millisecond precision).
func FormatISODuration(d time.Duration) string {
	var b strings.Builder
	b.WriteByte('P')
	if days := d / (24 * time.Hour); days > 0 {
		fmt.Fprintf(&b, "%dD", days)
		d -= days * 24 * time.Hour
	}
	if d > 0 {
		b.WriteByte('T')
		if h := d / time.Hour; h > 0 {
			fmt.Fprintf(&b, "%dH", h)
			d -= h * time.Hour
		}
		if m := d / time.Minute; m > 0 {
			fmt.Fprintf(&b, "%dM", m)
			d -= m * time.Minute
		}
		if d > 0 {
			secs := float64(d.Milliseconds()) / 1000
			b.WriteString(strconv.FormatFloat(secs, 'f', -1, 64))
			b.WriteByte('S')
		}
	}
	if b.Len() == 1 {
		return "PT0S"
	}
	return b.String()
}

// timeLayouts are the accepted textual timestamp forms, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp, accepting date-only values.
// The result is always UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
