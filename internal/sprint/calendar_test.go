package sprint

import (
	"errors"
	"testing"
	"time"
)

func mustCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return cal
}

func local(t *testing.T, cal *Calendar, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02T15:04:05", s, cal.Location())
	if err != nil {
		t.Fatalf("bad fixture %q: %v", s, err)
	}
	return ts
}

func TestWindowOf_AnchorScenario(t *testing.T) {
	cal := mustCalendar(t)

	w := cal.WindowOf(63)
	if want := local(t, cal, "2015-01-27T00:00:00"); !w.Start.Equal(want) {
		t.Errorf("Expected start %s, got %s", want, w.Start)
	}
	if want := local(t, cal, "2015-02-10T00:00:00"); !w.Stop.Equal(want) {
		t.Errorf("Expected stop %s, got %s", want, w.Stop)
	}

	if got := cal.SprintContaining(local(t, cal, "2015-01-26T23:59:59")); got != 62 {
		t.Errorf("Expected sprint 62 just before the boundary, got %d", got)
	}
	if got := cal.SprintContaining(local(t, cal, "2015-01-27T00:00:00")); got != 63 {
		t.Errorf("Expected sprint 63 on the boundary, got %d", got)
	}
}

func TestWindowOf_ContiguousAndEvenlySpaced(t *testing.T) {
	cal := mustCalendar(t)

	for n := -40; n <= 400; n++ {
		w := cal.WindowOf(n)
		next := cal.WindowOf(n + 1)
		if !w.Stop.Equal(next.Start) {
			t.Fatalf("sprint %d: stop %s != next start %s", n, w.Stop, next.Start)
		}
		if want := w.Start.AddDate(0, 0, 14); !w.Stop.Equal(want) {
			t.Fatalf("sprint %d: stop %s is not two calendar weeks after %s", n, w.Stop, w.Start)
		}
		// Boundaries stay on local midnight across DST changes.
		if h, m := w.Start.Hour(), w.Start.Minute(); h != 0 || m != 0 {
			t.Fatalf("sprint %d: start drifted to %02d:%02d local", n, h, m)
		}
	}
}

func TestSprintContaining_RoundTrip(t *testing.T) {
	cal := mustCalendar(t)

	for n := -10; n <= 300; n += 7 {
		w := cal.WindowOf(n)
		probes := []time.Time{
			w.Start,
			w.Start.Add(time.Second),
			w.Start.Add(36 * time.Hour),
			w.Start.AddDate(0, 0, 7),
			w.Stop.Add(-time.Nanosecond),
		}
		for _, p := range probes {
			if got := cal.SprintContaining(p); got != n {
				t.Errorf("SprintContaining(%s) = %d, want %d", p, got, n)
			}
			if !w.Contains(p) {
				t.Errorf("window %d does not contain %s", n, p)
			}
		}
		if got := cal.SprintContaining(w.Stop); got != n+1 {
			t.Errorf("SprintContaining(stop of %d) = %d, want %d", n, got, n+1)
		}
		if w.Contains(w.Stop) {
			t.Errorf("window %d must not contain its stop instant", n)
		}
	}
}

func TestSprintContaining_OtherZones(t *testing.T) {
	cal := mustCalendar(t)

	// 2015-01-27T00:00 in Vancouver is 08:00 UTC.
	tests := []struct {
		utc  string
		want int
	}{
		{"2015-01-27T07:59:59Z", 62},
		{"2015-01-27T08:00:00Z", 63},
		{"2015-01-13T08:00:00Z", 62},
		{"2015-01-13T07:59:59Z", 61},
	}
	for _, tt := range tests {
		ts, _ := time.Parse(time.RFC3339, tt.utc)
		if got := cal.SprintContaining(ts); got != tt.want {
			t.Errorf("SprintContaining(%s) = %d, want %d", tt.utc, got, tt.want)
		}
	}
}

func TestWindowOf_NonPositiveSprints(t *testing.T) {
	cal := mustCalendar(t)

	zero := cal.WindowOf(0)
	if !zero.Start.Before(zero.Stop) {
		t.Fatalf("sprint 0 window is empty: %s", zero)
	}
	if got := cal.SprintContaining(zero.Start); got != 0 {
		t.Errorf("Expected sprint 0, got %d", got)
	}
	neg := cal.WindowOf(-3)
	if got := cal.SprintContaining(neg.Start.Add(time.Hour)); got != -3 {
		t.Errorf("Expected sprint -3, got %d", got)
	}
}

func TestCurrent_UsesClock(t *testing.T) {
	fixed := time.Date(2015, 1, 28, 10, 30, 0, 0, time.UTC)
	cal, err := New(DefaultConfig(), WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := cal.Current(); got != 63 {
		t.Errorf("Expected current sprint 63, got %d", got)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"empty anchor", func(c *Config) { c.AnchorDate = "" }, "anchor_date"},
		{"bad anchor", func(c *Config) { c.AnchorDate = "13/01/2015" }, "anchor_date"},
		{"unknown zone", func(c *Config) { c.TimeZone = "Mars/Olympus" }, "time_zone"},
		{"zero period", func(c *Config) { c.PeriodWeeks = 0 }, "period_weeks"},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mut(&cfg)
		_, err := New(cfg)
		var cerr *ConfigError
		if !errors.As(err, &cerr) {
			t.Errorf("%s: expected ConfigError, got %v", tt.name, err)
			continue
		}
		if cerr.Field != tt.field {
			t.Errorf("%s: expected field %q, got %q", tt.name, tt.field, cerr.Field)
		}
	}
}

func TestParseNumber(t *testing.T) {
	if n, err := ParseNumber(" 61 "); err != nil || n != 61 {
		t.Errorf("ParseNumber(61) = %d, %v", n, err)
	}
	for _, bad := range []string{"", "abc", "0", "-4"} {
		if _, err := ParseNumber(bad); err == nil {
			t.Errorf("ParseNumber(%q) should fail", bad)
		}
	}
}

func TestLabel(t *testing.T) {
	if got := Label("#sprint", 64); got != "#sprint64" {
		t.Errorf("Expected #sprint64, got %s", got)
	}
}
