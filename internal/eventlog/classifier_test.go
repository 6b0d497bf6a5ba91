package eventlog

import (
	"errors"
	"testing"
	"time"

	"sprintstat/internal/sprint"
)

func testCalendar(t *testing.T) *sprint.Calendar {
	t.Helper()
	cal, err := sprint.New(sprint.DefaultConfig())
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	return cal
}

// inSprint returns an instant two days into sprint n.
func inSprint(cal *sprint.Calendar, n int) time.Time {
	return cal.WindowOf(n).Start.Add(48 * time.Hour)
}

func labeled(at time.Time, label string) Event {
	return Event{Kind: Labeled, Raw: "labeled", At: at, Label: label}
}

func closed(at time.Time) Event {
	return Event{Kind: Closed, Raw: "closed", At: at}
}

func intp(n int) *int { return &n }

func sameSprint(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func TestClassify(t *testing.T) {
	cal := testCalendar(t)
	vocab := DefaultVocabulary()
	closedIn := func(n int) *time.Time { ts := inSprint(cal, n); return &ts }

	tests := []struct {
		name  string
		issue Issue
		want  Lifecycle
	}{
		{
			name: "started then closed",
			issue: Issue{
				State:    "closed",
				Events:   []Event{labeled(inSprint(cal, 70), "#wip"), closed(inSprint(cal, 71))},
				ClosedAt: closedIn(71),
			},
			want: Lifecycle{Start: intp(70), Done: intp(71)},
		},
		{
			name: "planning resets start",
			issue: Issue{
				State:  "open",
				Events: []Event{labeled(inSprint(cal, 70), "#wip"), labeled(inSprint(cal, 70).Add(time.Hour), "#plan")},
			},
			want: Lifecycle{},
		},
		{
			name: "retracted wip is rejected",
			issue: Issue{
				State:  "open",
				Events: []Event{labeled(inSprint(cal, 72), "#wip")},
			},
			want: Lifecycle{Rejected: intp(72)},
		},
		{
			name: "still labeled wip stays in progress",
			issue: Issue{
				State:  "open",
				Labels: []string{"#wip"},
				Events: []Event{labeled(inSprint(cal, 72), "#wip")},
			},
			want: Lifecycle{Start: intp(72)},
		},
		{
			name: "first start wins",
			issue: Issue{
				State:  "open",
				Labels: []string{"#verify"},
				Events: []Event{
					labeled(inSprint(cal, 70), "#wip"),
					labeled(inSprint(cal, 72), "#review"),
					labeled(inSprint(cal, 73), "#verify"),
				},
			},
			want: Lifecycle{Start: intp(70)},
		},
		{
			name: "back to triage then restart",
			issue: Issue{
				State:  "open",
				Labels: []string{"#review"},
				Events: []Event{
					labeled(inSprint(cal, 70), "#wip"),
					labeled(inSprint(cal, 71), "#tob"),
					labeled(inSprint(cal, 74), "#review"),
				},
			},
			want: Lifecycle{Start: intp(74)},
		},
		{
			name: "sprint label uses its own number",
			issue: Issue{
				State:  "open",
				Labels: []string{"#sprint75"},
				Events: []Event{labeled(inSprint(cal, 74), "#sprint75")},
			},
			want: Lifecycle{Start: intp(75)},
		},
		{
			name: "ready to ship finishes before close",
			issue: Issue{
				State:    "closed",
				Events:   []Event{labeled(inSprint(cal, 70), "#wip"), labeled(inSprint(cal, 71), "#tbr"), closed(inSprint(cal, 73))},
				ClosedAt: closedIn(73),
			},
			want: Lifecycle{Start: intp(70), Done: intp(71)},
		},
		{
			name: "close timestamp is a fallback completion",
			issue: Issue{
				State:    "closed",
				Events:   []Event{labeled(inSprint(cal, 70), "#wip")},
				ClosedAt: closedIn(72),
			},
			want: Lifecycle{Start: intp(70), Done: intp(72)},
		},
		{
			name: "closed without being worked",
			issue: Issue{
				State:    "closed",
				Events:   []Event{closed(inSprint(cal, 66))},
				ClosedAt: closedIn(66),
			},
			want: Lifecycle{Done: intp(66)},
		},
		{
			name: "first close wins over reopen and close",
			issue: Issue{
				State:    "closed",
				Labels:   []string{"#wip"},
				Events:   []Event{labeled(inSprint(cal, 60), "#wip"), closed(inSprint(cal, 61)), {Kind: Other, Raw: "reopened", At: inSprint(cal, 62)}, closed(inSprint(cal, 64))},
				ClosedAt: closedIn(64),
			},
			want: Lifecycle{Start: intp(60), Done: intp(61)},
		},
		{
			name: "unknown labels and events are ignored",
			issue: Issue{
				State:  "open",
				Labels: []string{"#sprint80"},
				Events: []Event{
					labeled(inSprint(cal, 70), "enhancement"),
					labeled(inSprint(cal, 70), "#sprintly"),
					{Kind: Other, Raw: "assigned", At: inSprint(cal, 70)},
					{Kind: Other, Raw: "mentioned"},
					labeled(inSprint(cal, 79), "#sprint80"),
				},
			},
			want: Lifecycle{Start: intp(80)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.issue.Repository = "strongloop/loopback"
			tt.issue.Number = 7
			got, err := Classify(tt.issue, cal, vocab)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if !sameSprint(got.Start, tt.want.Start) || !sameSprint(got.Done, tt.want.Done) || !sameSprint(got.Rejected, tt.want.Rejected) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
			if got.Done != nil && got.Rejected != nil {
				t.Errorf("done and rejected both set: %s", got)
			}
		})
	}
}

func TestClassify_MissingTimestamp(t *testing.T) {
	cal := testCalendar(t)
	issue := Issue{
		Repository: "strongloop/strong-pm",
		Number:     98,
		Events:     []Event{labeled(inSprint(cal, 70), "#wip"), {Kind: Labeled, Label: "#review"}},
	}

	_, err := Classify(issue, cal, DefaultVocabulary())
	var merr *MalformedEventError
	if !errors.As(err, &merr) {
		t.Fatalf("Expected MalformedEventError, got %v", err)
	}
	if merr.Issue != "strongloop/strong-pm#98" || merr.Index != 1 {
		t.Errorf("Unexpected error details: %+v", merr)
	}
}

func TestClassify_CustomVocabulary(t *testing.T) {
	cal := testCalendar(t)
	vocab := Vocabulary{
		SprintPrefix: "sprint-",
		InProgress:   "status: in progress",
		ReadyToShip:  "status: shippable",
		Planning:     "status: planning",
	}
	issue := Issue{
		Repository: "acme/api",
		Number:     1,
		State:      "open",
		Labels:     []string{"sprint-90"},
		Events: []Event{
			labeled(inSprint(cal, 88), "#wip"),
			labeled(inSprint(cal, 89), "sprint-90"),
		},
	}

	got, err := Classify(issue, cal, vocab)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !sameSprint(got.Start, intp(90)) {
		t.Errorf("Expected start 90, got %s", got)
	}
}

func TestVocabulary_SprintOf(t *testing.T) {
	vocab := DefaultVocabulary()
	tests := []struct {
		label string
		want  int
		ok    bool
	}{
		{"#sprint64", 64, true},
		{"#sprint", 0, false},
		{"#sprint6a", 0, false},
		{"sprint#65", 0, false},
		{"#wip", 0, false},
	}
	for _, tt := range tests {
		got, ok := vocab.SprintOf(tt.label)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SprintOf(%q) = %d, %v; want %d, %v", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKindOf(t *testing.T) {
	if KindOf("labeled") != Labeled || KindOf("closed") != Closed || KindOf("unlabeled") != Other {
		t.Error("KindOf mapping mismatch")
	}
}
