package aggregate

import (
	"testing"
	"time"
)

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"P1D", 24 * time.Hour},
		{"P1W", 7 * 24 * time.Hour},
		{"P2W3D", 17 * 24 * time.Hour},
		{"PT1H", time.Hour},
		{"PT90M", 90 * time.Minute},
		{"PT30S", 30 * time.Second},
		{"PT0.5S", 500 * time.Millisecond},
		{"PT1.250S", 1250 * time.Millisecond},
		{"P1DT6H", 30 * time.Hour},
		{"PT1H30M15S", time.Hour + 30*time.Minute + 15*time.Second},
		{"pt1h", time.Hour}, // unit letters are case-insensitive
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseISODuration(tt.in)
			if err != nil {
				t.Fatalf("ParseISODuration(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseISODuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseISODurationErrors(t *testing.T) {
	tests := []string{
		"",
		"P",
		"1D",
		"P1Y", // calendar-variable
		"P1M", // calendar-variable (month, not minute)
		"PT",  // empty time part
		"P1X", // unknown unit
		"PT1", // trailing number without unit
		"PD",  // unit without number
		"P0D", // zero width
		"P1.5D",
	}
	for _, in := range tests {
		if _, err := ParseISODuration(in); err == nil {
			t.Errorf("ParseISODuration(%q): expected error", in)
		}
	}
}

func TestParseISODurationMinuteVsMonth(t *testing.T) {
	// M means minutes after T and months before it; only the latter is
	// rejected.
	got, err := ParseISODuration("PT5M")
	if err != nil {
		t.Fatalf("PT5M error: %v", err)
	}
	if got != 5*time.Minute {
		t.Errorf("PT5M = %v, want 5m", got)
	}
	if _, err := ParseISODuration("P5M"); err == nil {
		t.Error("P5M: expected calendar-variable rejection")
	}
}

func TestFormatISODuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{24 * time.Hour, "P1D"},
		{7 * 24 * time.Hour, "P7D"},
		{30 * time.Hour, "P1DT6H"},
		{time.Hour, "PT1H"},
		{90 * time.Minute, "PT1H30M"},
		{30 * time.Second, "PT30S"},
		{500 * time.Millisecond, "PT0.5S"},
		{1250 * time.Millisecond, "PT1.25S"},
		{time.Hour + 30*time.Minute + 15*time.Second, "PT1H30M15S"},
	}
	for _, tt := range tests {
		got := FormatISODuration(tt.in)
		if got != tt.want {
			t.Errorf("FormatISODuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
		back, err := ParseISODuration(got)
		if err != nil {
			t.Fatalf("ParseISODuration(%q) error: %v", got, err)
		}
		if back != tt.in {
			t.Errorf("ParseISODuration(%q) = %v, want %v", got, back, tt.in)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2012-01-01", time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2012-01-01T10:30:00", time.Date(2012, 1, 1, 10, 30, 0, 0, time.UTC)},
		{"2012-01-01T10:30:00Z", time.Date(2012, 1, 1, 10, 30, 0, 0, time.UTC)},
		{"2012-01-01T10:30:00.500Z", time.Date(2012, 1, 1, 10, 30, 0, 500000000, time.UTC)},
		{"2012-01-01T10:30:00+02:00", time.Date(2012, 1, 1, 8, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q) error: %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseTimestamp("not a date"); err == nil {
		t.Error("expected error for garbage input")
	}
}
