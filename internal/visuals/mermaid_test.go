package visuals

import (
	"strings"
	"testing"

	"sprintstat/internal/stats"
)

func TestVelocityChart(t *testing.T) {
	v := stats.Velocity{Sprints: map[int]map[string]*stats.Entry{
		64: {stats.Complete: {Count: 5}, stats.Incomplete: {Count: 2}},
		63: {stats.Incomplete: {Count: 4}},
	}}

	chart := VelocityChart(v)
	if !strings.HasPrefix(chart, "```mermaid\nxychart-beta\n") {
		t.Fatalf("Expected a mermaid xychart, got %q", chart)
	}
	for _, want := range []string{
		`x-axis "Sprint" ["63", "64"]`,
		"bar [0, 5]",
		"line [4, 2]",
		"y-axis \"Issues\" 0 --> 6",
	} {
		if !strings.Contains(chart, want) {
			t.Errorf("Expected chart to contain %q, got:\n%s", want, chart)
		}
	}
}

func TestVelocityChart_Empty(t *testing.T) {
	if got := VelocityChart(stats.Velocity{}); got != "" {
		t.Errorf("Expected empty chart, got %q", got)
	}
}

func TestSummaryChart(t *testing.T) {
	s := stats.SprintSummary{Milestones: []stats.Tally{
		{Name: "Bugs"},
		{Name: "v3", Open: 1, Resolved: 10},
	}}
	s.Window.Number = 64

	chart := SummaryChart(s)
	if strings.Contains(chart, `"Bugs"`) {
		t.Errorf("Expected empty tallies to be skipped, got:\n%s", chart)
	}
	if !strings.Contains(chart, `x-axis ["v3"]`) || !strings.Contains(chart, "bar [10]") {
		t.Errorf("Unexpected chart:\n%s", chart)
	}
	if !strings.Contains(chart, "Resolved in sprint 64") {
		t.Errorf("Expected sprint number in title, got:\n%s", chart)
	}
	if SummaryChart(stats.SprintSummary{}) != "" {
		t.Error("Expected no chart for an empty summary")
	}
}
