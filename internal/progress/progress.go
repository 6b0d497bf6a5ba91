package progress

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"sprintstat/internal/eventlog"
)

// Tracker wraps a progress bar.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
}

// NewSpinner creates a spinner for operations with unknown total count.
func NewSpinner(w io.Writer, label string) *Tracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, label: label}
}

// NewTracker creates a progress bar with the given label and total count.
func NewTracker(w io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label}
}

// Add increments the progress by n. Safe for concurrent use.
func (t *Tracker) Add(n int) {
	_ = t.bar.Add(n)
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	t.Add(1)
}

// Grow raises the total by n.
func (t *Tracker) Grow(n int) {
	t.bar.ChangeMax(t.bar.GetMax() + n)
}

// FinishSuccess clears the bar completely.
func (t *Tracker) FinishSuccess() {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}

// Abort clears the bar where it stopped. The error itself is reported by
// the caller.
func (t *Tracker) Abort() {
	_ = t.bar.Exit()
	_ = t.bar.Clear()
}

// Fetch reports issue listing and event retrieval of a Provider. A nil
// *Fetch is valid and reports nothing.
type Fetch struct {
	w      io.Writer
	mu     sync.Mutex
	issues *Tracker
	events *Tracker

	listed, total, fetched int
}

// NewFetch creates a fetch reporter writing to w.
func NewFetch(w io.Writer) *Fetch {
	return &Fetch{w: w}
}

// Options returns the provider callbacks that drive the bars.
func (f *Fetch) Options() []eventlog.Option {
	if f == nil {
		return nil
	}
	return []eventlog.Option{
		eventlog.WithIssueProgress(f.issuesListed),
		eventlog.WithEventsStarted(f.eventsStarted),
		eventlog.WithEventProgress(f.eventFetched),
	}
}

func (f *Fetch) issuesListed(repo string, n int) {
	f.mu.Lock()
	if f.issues == nil {
		f.issues = NewSpinner(f.w, "Listing issues")
	}
	f.listed += n
	t := f.issues
	f.mu.Unlock()
	t.Add(n)
}

func (f *Fetch) eventsStarted(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total += n
	if f.events == nil {
		f.events = NewTracker(f.w, "Fetching events", n)
		return
	}
	f.events.Grow(n)
}

func (f *Fetch) eventFetched() {
	f.mu.Lock()
	f.fetched++
	t := f.events
	f.mu.Unlock()
	if t != nil {
		t.Tick()
	}
}

// Counts returns how many issues were listed, how many histories were
// requested and how many of those have arrived.
func (f *Fetch) Counts() (listed, total, fetched int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed, f.total, f.fetched
}

// Finish clears every bar. A failed fetch (err != nil) leaves the bars
// unfilled.
func (f *Fetch) Finish(err error) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range []*Tracker{f.issues, f.events} {
		if t == nil {
			continue
		}
		if err != nil {
			t.Abort()
			continue
		}
		t.FinishSuccess()
	}
}
