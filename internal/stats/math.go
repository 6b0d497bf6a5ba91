package stats

import "slices"

// Median finds the median value in a slice of integers.
func Median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}

	// Work on a copy to avoid mutating the original
	temp := slices.Clone(values)
	slices.Sort(temp)

	n := len(temp)
	if n%2 == 1 {
		return float64(temp[n/2])
	}
	return float64(temp[n/2-1]+temp[n/2]) / 2.0
}

// Mean is the arithmetic mean, zero for no values.
func Mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// Trend summarizes completed work over finished sprints.
type Trend struct {
	// Sprints is the number of finished sprints from the first one with any
	// contribution up to the one before the current sprint.
	Sprints int     `json:"sprints" yaml:"sprints"`
	Median  float64 `json:"median" yaml:"median"`
	Mean    float64 `json:"mean" yaml:"mean"`
	// Last is the complete count of the sprint before the current one.
	Last int `json:"last" yaml:"last"`
}

// Trend computes the completion trend. Finished sprints without any
// completed issue count as zero; the current sprint is left out.
func (v Velocity) Trend() Trend {
	sprints := v.SprintNumbers()
	if len(sprints) == 0 || sprints[0] >= v.Current {
		return Trend{}
	}

	counts := make([]int, 0, v.Current-sprints[0])
	for n := sprints[0]; n < v.Current; n++ {
		counts = append(counts, v.Count(n, Complete))
	}
	return Trend{
		Sprints: len(counts),
		Median:  Median(counts),
		Mean:    Mean(counts),
		Last:    counts[len(counts)-1],
	}
}
