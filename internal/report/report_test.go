package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/reposync"
	"sprintstat/internal/sprint"
	"sprintstat/internal/stats"
)

func testVelocity() stats.Velocity {
	return stats.Velocity{
		Current: 64,
		Sprints: map[int]map[string]*stats.Entry{
			64: {
				stats.Incomplete:          {Count: 1, Issues: map[string][]int{"a/b": {2}}},
				stats.Incomplete + ":bug": {Count: 1, Issues: map[string][]int{"a/b": {2}}},
			},
			63: {
				stats.Complete:            {Count: 2, Issues: map[string][]int{"a/b": {1}, "a/a": {9}}},
				stats.Complete + ":issue": {Count: 2, Issues: map[string][]int{"a/b": {1}, "a/a": {9}}},
			},
		},
		Excluded: []stats.IssueRef{{Repository: "a/b", Number: 3, Title: "Dup", Reason: stats.ReasonClosedUnworked}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"", FormatText},
		{"TEXT", FormatText},
		{"md", FormatMarkdown},
		{"json", FormatJSON},
		{"yml", FormatYAML},
		{"yaml", FormatYAML},
		{"mermaid", FormatMermaid},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestVelocityTable_SortedRows(t *testing.T) {
	table := VelocityTable(testVelocity())

	require.Len(t, table.Rows, 4)
	assert.Equal(t, []string{"63", "complete", "2", "a/a#9 a/b#1"}, table.Rows[0])
	assert.Equal(t, []string{"63", "complete:issue", "2", "a/a#9 a/b#1"}, table.Rows[1])
	assert.Equal(t, []string{"64 *", "incomplete", "1", "a/b#2"}, table.Rows[2])
	assert.Equal(t, "incomplete:bug", table.Rows[3][1])
}

func TestExcludedTable(t *testing.T) {
	table := ExcludedTable(testVelocity())
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"a/b#3", "Dup", stats.ReasonClosedUnworked}, table.Rows[0])

	empty := ExcludedTable(stats.Velocity{})
	assert.Empty(t, empty.Rows)
	assert.NotNil(t, empty.RenderData())
}

func TestIssueGroupTable(t *testing.T) {
	vocab := eventlog.DefaultVocabulary()
	g := stats.Group{Title: "Sprint 63", Issues: []eventlog.Issue{
		{Repository: "strongloop/strong-pm", Number: 4, Title: "Add logs", Labels: []string{"#fib-3"}, Milestone: "v3"},
		{Repository: "strongloop/loopback", Number: 5, Title: "Unsized"},
		{Repository: "strongloop/loopback", Number: 6, Title: "PR", Labels: []string{"#fib-8"}, IsPullRequest: true},
	}}

	table := IssueGroupTable(g, vocab, true)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"3", "v3: Add logs (pm/4)"}, table.Rows[0])
	assert.Equal(t, []string{"-", "Unsized (loopback/5)"}, table.Rows[1])
	assert.Equal(t, []string{"3", "total size, 3 issues"}, table.Footer)
}

func TestScrumReport_SectionTitles(t *testing.T) {
	backlog := stats.Group{Title: "Backlog"}
	r := ScrumReport(stats.ScrumReport{
		Current: 64,
		Closed:  []stats.Group{{Title: "Sprint 63", Sprint: 63}},
		InWork:  []stats.Group{{Title: "#wip", Sprint: 64}},
		Backlog: &backlog,
	}, eventlog.DefaultVocabulary(), false)

	require.Len(t, r.Sections, 3)
	var titles []string
	for _, s := range r.Sections {
		titles = append(titles, s.(*Table).Title)
	}
	assert.Equal(t, []string{"Sprint 63", "Incomplete in #wip", "Backlog"}, titles)
}

func TestFormatter_Output(t *testing.T) {
	report := VelocityReport(testVelocity())

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriterFormatter(FormatText, &buf, false).Output(report))
		out := buf.String()
		for _, want := range []string{"Velocity (current sprint 64)", "Breakdown", "SPRINT", "complete:issue", "a/b#3", "closed without being worked", "over the last 1 finished sprints: median 2.0, mean 2.0"} {
			assert.Contains(t, out, want)
		}
		assert.NotContains(t, out, "```mermaid")
	})

	t.Run("markdown", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriterFormatter(FormatMarkdown, &buf, false).Output(report))
		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "# Velocity (current sprint 64)\n\n```mermaid\n"))
		assert.Contains(t, out, "| Sprint | Category | Count | Issues |")
		assert.Contains(t, out, "| 64 * | incomplete | 1 | a/b#2 |")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriterFormatter(FormatJSON, &buf, false).Output(report))
		var got stats.Velocity
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, 64, got.Current)
		assert.Equal(t, 2, got.Count(63, stats.Complete))
		assert.Equal(t, []int{1}, got.Entry(63, stats.Complete).Issues["a/b"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriterFormatter(FormatYAML, &buf, false).Output(report))
		var got map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, 64, got["current"])
		assert.Contains(t, buf.String(), "closed without being worked")
	})

	t.Run("mermaid", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewWriterFormatter(FormatMermaid, &buf, false).Output(report))
		assert.Contains(t, buf.String(), "xychart-beta")
		assert.NotContains(t, buf.String(), "Breakdown")
	})

	t.Run("mermaid without chart", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewWriterFormatter(FormatMermaid, &buf, false).Output(ExcludedTable(testVelocity()))
		assert.ErrorIs(t, err, ErrNoChart)
	})
}

func TestTable_MarkdownEscapesPipes(t *testing.T) {
	table := &Table{Headers: []string{"Title"}, Rows: [][]string{{"a | b"}}}
	var buf bytes.Buffer
	require.NoError(t, table.RenderMarkdown(&buf))
	assert.Contains(t, buf.String(), `| a \| b |`)
}

func TestHistoryReport(t *testing.T) {
	cal, err := sprint.New(sprint.DefaultConfig())
	require.NoError(t, err)

	start := cal.WindowOf(63).Start
	closed := cal.WindowOf(64).Start.Add(time.Hour)
	issue := eventlog.Issue{
		Repository: "strongloop/loopback",
		Number:     7,
		Title:      "Fix relations",
		State:      "closed",
		CreatedAt:  start,
		ClosedAt:   &closed,
		Events: []eventlog.Event{
			{Kind: eventlog.Labeled, Raw: "labeled", At: start.Add(time.Hour), Label: "#wip", Actor: "sam"},
			{Kind: eventlog.Other, Raw: "subscribed", At: start.Add(2 * time.Hour)},
			{Kind: eventlog.Closed, Raw: "closed", At: closed},
		},
	}
	s63, s64 := 63, 64
	r := HistoryReport(stats.Classified{Issue: issue, Lifecycle: eventlog.Lifecycle{Start: &s63, Done: &s64}}, cal)

	events := r.Sections[1].(*Table)
	require.Len(t, events.Rows, 2)
	assert.Equal(t, "63", events.Rows[0][2])
	assert.Equal(t, "#wip", events.Rows[0][4])
	assert.Equal(t, "2", events.Rows[1][0])
	assert.Equal(t, "64", events.Rows[1][2])

	var buf bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatText, &buf, false).Output(r))
	assert.Contains(t, buf.String(), "strongloop/loopback#7")
	assert.Contains(t, buf.String(), "start 63 done 64 rejected -")
}

func TestSummaryReport(t *testing.T) {
	cal, err := sprint.New(sprint.DefaultConfig())
	require.NoError(t, err)

	s := stats.SprintSummary{
		Window:     cal.WindowOf(62),
		Milestones: []stats.Tally{{Name: "v3", Open: 1, Resolved: 2}},
		Resolved:   2,
	}
	var buf bytes.Buffer
	require.NoError(t, NewWriterFormatter(FormatText, &buf, false).Output(SummaryReport(s)))
	out := buf.String()
	assert.Contains(t, out, "Sprint 62: 2015-01-13 to 2015-01-27")
	assert.Contains(t, out, "No issues assigned for the sprint.")
	assert.Contains(t, out, "Total 2 issues resolved for sprint 62")
}

func TestSyncTable(t *testing.T) {
	table := SyncTable([]reposync.Action{{Repo: "a/b", Kind: reposync.KindLabel, Op: reposync.OpCreate, Name: "#wip", Detail: "ededed"}}, true)
	assert.Equal(t, "Sync (dry run)", table.Title)
	assert.Equal(t, []string{"a/b", "label", "create", "#wip", "ededed"}, table.Rows[0])
	assert.NotNil(t, SyncTable(nil, false).RenderData())
}
