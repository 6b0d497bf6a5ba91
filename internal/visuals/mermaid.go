package visuals

import (
	"fmt"
	"math"
	"strings"

	"sprintstat/internal/stats"
)

// VelocityChart creates a Mermaid xychart-beta with completed issues per sprint
// as bars and the incomplete carry-over as a line.
func VelocityChart(v stats.Velocity) string {
	sprints := v.SprintNumbers()
	if len(sprints) == 0 {
		return ""
	}

	var labels []string
	var complete []string
	var incomplete []string

	maxVal := 0
	for _, n := range sprints {
		done := v.Count(n, stats.Complete)
		open := v.Count(n, stats.Incomplete)
		labels = append(labels, fmt.Sprintf("\"%d\"", n))
		complete = append(complete, fmt.Sprintf("%d", done))
		incomplete = append(incomplete, fmt.Sprintf("%d", open))
		maxVal = max(maxVal, done, open)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Velocity\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis \"Sprint\" [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Issues\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(complete, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(incomplete, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// SummaryChart creates a Mermaid bar chart of resolved issues per milestone.
func SummaryChart(s stats.SprintSummary) string {
	var labels []string
	var values []string
	maxVal := 0
	for _, t := range s.Milestones {
		if t.Open+t.InProgress+t.Resolved == 0 {
			continue
		}
		labels = append(labels, fmt.Sprintf("%q", t.Name))
		values = append(values, fmt.Sprintf("%d", t.Resolved))
		maxVal = max(maxVal, t.Resolved)
	}
	if len(labels) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"Resolved in sprint %d\"\n", s.Window.Number))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Issues Resolved\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}
