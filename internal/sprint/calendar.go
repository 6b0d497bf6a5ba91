package sprint

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	// Embedded zone database so the reference zone resolves on hosts without one.
	_ "time/tzdata"
)

// AnchorLayout is the layout of Config.AnchorDate, interpreted in Config.TimeZone.
const AnchorLayout = "2006-01-02 15:04"

// Config pins the sprint numbering to a single epoch.
type Config struct {
	// AnchorDate is the local start of AnchorSprint (e.g. "2015-01-13 00:00").
	AnchorDate string `koanf:"anchor_date" json:"anchorDate"`
	// AnchorSprint is the number of the sprint that starts at AnchorDate.
	AnchorSprint int `koanf:"anchor_sprint" json:"anchorSprint"`
	// TimeZone is the IANA zone in which sprint boundaries are computed.
	TimeZone string `koanf:"time_zone" json:"timeZone"`
	// PeriodWeeks is the sprint length in calendar weeks.
	PeriodWeeks int `koanf:"period_weeks" json:"periodWeeks"`
}

// DefaultConfig returns the historical calendar: sprint 62 started on
// 2015-01-13 in Vancouver and sprints last two weeks.
func DefaultConfig() Config {
	return Config{
		AnchorDate:   "2015-01-13 00:00",
		AnchorSprint: 62,
		TimeZone:     "America/Vancouver",
		PeriodWeeks:  2,
	}
}

// Window is the half-open interval [Start, Stop) covered by one sprint.
type Window struct {
	Number int       `json:"number"`
	Start  time.Time `json:"start"`
	Stop   time.Time `json:"stop"`
}

// Contains reports whether t falls inside the window. The Stop instant
// belongs to the next sprint.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.Stop)
}

func (w Window) String() string {
	return fmt.Sprintf("sprint %d [%s, %s)", w.Number, w.Start.Format(time.RFC3339), w.Stop.Format(time.RFC3339))
}

// Calendar maps sprint numbers to windows and back. It is immutable and safe
// for concurrent use.
type Calendar struct {
	cfg    Config
	loc    *time.Location
	anchor time.Time
	days   int
	now    func() time.Time
}

// Option customizes a Calendar.
type Option func(*Calendar)

// WithClock replaces time.Now as the source of the current sprint.
func WithClock(now func() time.Time) Option {
	return func(c *Calendar) { c.now = now }
}

// New validates cfg and builds a Calendar.
func New(cfg Config, opts ...Option) (*Calendar, error) {
	if cfg.TimeZone == "" {
		return nil, &ConfigError{Field: "time_zone", Reason: "must not be empty"}
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, &ConfigError{Field: "time_zone", Reason: err.Error()}
	}
	if strings.TrimSpace(cfg.AnchorDate) == "" {
		return nil, &ConfigError{Field: "anchor_date", Reason: "must not be empty"}
	}
	anchor, err := time.ParseInLocation(AnchorLayout, strings.TrimSpace(cfg.AnchorDate), loc)
	if err != nil {
		return nil, &ConfigError{Field: "anchor_date", Reason: err.Error()}
	}
	if cfg.PeriodWeeks <= 0 {
		return nil, &ConfigError{Field: "period_weeks", Reason: fmt.Sprintf("must be positive, got %d", cfg.PeriodWeeks)}
	}

	c := &Calendar{
		cfg:    cfg,
		loc:    loc,
		anchor: anchor,
		days:   7 * cfg.PeriodWeeks,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the configuration the calendar was built from.
func (c *Calendar) Config() Config {
	return c.cfg
}

// Location returns the reference time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// startOf returns the local start of sprint n. AddDate works on the wall
// clock, so a DST change between the anchor and n does not move the boundary.
func (c *Calendar) startOf(n int) time.Time {
	return c.anchor.AddDate(0, 0, (n-c.cfg.AnchorSprint)*c.days)
}

// WindowOf returns the window of sprint n. Sprints before the anchor,
// including zero and negative numbers, use the same linear formula.
func (c *Calendar) WindowOf(n int) Window {
	return Window{
		Number: n,
		Start:  c.startOf(n),
		Stop:   c.startOf(n + 1),
	}
}

// SprintContaining returns the number of the sprint whose window holds t.
func (c *Calendar) SprintContaining(t time.Time) int {
	t = t.In(c.loc)

	// Estimate from elapsed calendar days, then settle on the exact window.
	// The estimate is off by at most one when a DST shift straddles a boundary.
	elapsed := daysBetween(c.anchor, t)
	n := c.cfg.AnchorSprint + floorDiv(elapsed, c.days)

	for t.Before(c.startOf(n)) {
		n--
	}
	for !t.Before(c.startOf(n + 1)) {
		n++
	}
	return n
}

// Current returns the sprint containing the calendar clock's now.
func (c *Calendar) Current() int {
	return c.SprintContaining(c.now())
}

// Label renders the sprint label for n given a label prefix (e.g. "#sprint").
func Label(prefix string, n int) string {
	return prefix + strconv.Itoa(n)
}

// ParseNumber parses a sprint number given on the command line.
func ParseNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &ConfigError{Field: "sprint", Reason: fmt.Sprintf("%q is not a number", s)}
	}
	if n <= 0 {
		return 0, &ConfigError{Field: "sprint", Reason: fmt.Sprintf("%d is not a positive sprint number", n)}
	}
	return n, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
