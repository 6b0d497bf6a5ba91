package eventlog

import (
	"time"

	"sprintstat/internal/sprint"
)

// accumulator carries the fold state across an issue's events. Start and
// done are first-write-wins; only an explicit reset clears start.
type accumulator struct {
	start *int
	done  *int
}

func (a *accumulator) started(n int) {
	if a.start == nil {
		a.start = &n
	}
}

func (a *accumulator) finished(n int) {
	if a.done == nil {
		a.done = &n
	}
}

func (a *accumulator) reset() {
	a.start = nil
}

// Classify folds an issue's chronological events into its lifecycle.
//
// Timestamps are mapped to sprints through cal. Sprint labels contribute the
// sprint they name, not the sprint they were applied in, because labels are
// often added before the sprint opens. The issue's own close time is always
// a final completion candidate. A start that is no longer backed by any
// committed state at the end of the scan is reported as rejected instead.
func Classify(issue Issue, cal *sprint.Calendar, vocab Vocabulary) (Lifecycle, error) {
	var acc accumulator

	for i, e := range issue.Events {
		if e.Kind == Other {
			continue
		}
		if e.At.IsZero() {
			return Lifecycle{}, &MalformedEventError{Issue: issue.ID(), Index: i, Kind: e.Kind}
		}
		at := cal.SprintContaining(e.At)

		switch e.Kind {
		case Closed:
			acc.finished(at)
		case Labeled:
			acc.apply(e.Label, at, vocab)
		}
	}

	if issue.ClosedAt != nil && !issue.ClosedAt.IsZero() {
		acc.finished(cal.SprintContaining(*issue.ClosedAt))
	}

	lc := Lifecycle{Start: acc.start, Done: acc.done}
	if lc.Start != nil && lc.Done == nil && !vocab.Committed(issue.Labels) {
		lc.Rejected = lc.Start
		lc.Start = nil
	}
	return lc, nil
}

func (a *accumulator) apply(label string, at int, vocab Vocabulary) {
	if label == "" {
		return
	}
	switch label {
	case vocab.InProgress, vocab.InReview, vocab.ReadyForVerification:
		a.started(at)
		return
	case vocab.ReadyToShip:
		a.finished(at)
		return
	case vocab.BackToTriage, vocab.Planning:
		a.reset()
		return
	}
	if n, ok := vocab.SprintOf(label); ok {
		a.started(n)
	}
}

// ClosedAtSprint returns the sprint an issue was closed in, if it was.
func ClosedAtSprint(issue Issue, cal *sprint.Calendar) (int, bool) {
	if issue.ClosedAt == nil || issue.ClosedAt.IsZero() {
		return 0, false
	}
	return cal.SprintContaining(*issue.ClosedAt), true
}

// Chronological reports whether events are in non-decreasing time order.
func Chronological(events []Event) bool {
	var last time.Time
	for _, e := range events {
		if e.At.IsZero() {
			continue
		}
		if e.At.Before(last) {
			return false
		}
		last = e.At
	}
	return true
}
