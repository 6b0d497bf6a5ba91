package eventlog

import (
	"fmt"
	"slices"
	"time"
)

// Kind defines the lifecycle-relevant nature of an issue event.
type Kind string

const (
	// Labeled indicates a label was added to the issue.
	Labeled Kind = "labeled"
	// Closed indicates the issue (or pull request) was closed.
	Closed Kind = "closed"
	// Other covers every event kind the classifier ignores.
	Other Kind = "other"
)

// KindOf maps a raw event name from the source to a Kind.
func KindOf(raw string) Kind {
	switch raw {
	case string(Labeled):
		return Labeled
	case string(Closed):
		return Closed
	default:
		return Other
	}
}

// Event represents a single change in an issue's lifecycle.
type Event struct {
	// Kind is the classified event kind.
	Kind Kind `json:"kind"`
	// Raw is the event name as reported by the source (e.g. "unlabeled").
	Raw string `json:"raw,omitempty"`
	// At is when the event happened.
	At time.Time `json:"at"`
	// Label is the label name for Labeled events.
	Label string `json:"label,omitempty"`
	// Actor is the login that caused the event, kept for the history dump.
	Actor string `json:"actor,omitempty"`
}

// Issue is the typed record the core consumes. Everything else the source
// returns is dropped at the source boundary.
type Issue struct {
	Repository    string     `json:"repository"`
	Number        int        `json:"number"`
	Title         string     `json:"title,omitempty"`
	State         string     `json:"state"`
	Labels        []string   `json:"labels,omitempty"`
	IsPullRequest bool       `json:"isPullRequest,omitempty"`
	Milestone     string     `json:"milestone,omitempty"`
	Assignee      string     `json:"assignee,omitempty"`
	Author        string     `json:"author,omitempty"`
	URL           string     `json:"url,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
	Events        []Event    `json:"events,omitempty"`
}

// ID returns the "owner/repo#number" identifier of the issue.
func (i Issue) ID() string {
	return fmt.Sprintf("%s#%d", i.Repository, i.Number)
}

// HasLabel reports whether the issue currently carries the named label.
func (i Issue) HasLabel(name string) bool {
	return name != "" && slices.Contains(i.Labels, name)
}

// IsOpen reports whether the issue is still open.
func (i Issue) IsOpen() bool {
	return i.State == "open"
}

// Lifecycle is the outcome of classifying one issue's event history. Each
// field is a sprint number, nil when unset.
type Lifecycle struct {
	Start    *int `json:"start,omitempty"`
	Done     *int `json:"done,omitempty"`
	Rejected *int `json:"rejected,omitempty"`
}

// Started reports whether work on the issue started and was not rejected.
func (l Lifecycle) Started() bool {
	return l.Start != nil
}

// ClosedUnworked reports an issue that was finished without ever being
// started, e.g. closed as a duplicate straight from the backlog.
func (l Lifecycle) ClosedUnworked() bool {
	return l.Done != nil && l.Start == nil
}

func (l Lifecycle) String() string {
	return fmt.Sprintf("start %s done %s rejected %s", fmtSprint(l.Start), fmtSprint(l.Done), fmtSprint(l.Rejected))
}

func fmtSprint(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *n)
}
