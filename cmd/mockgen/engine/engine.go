package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"sprintstat/internal/eventlog"
)

// Scenarios understood by Generate.
const (
	Steady  = "steady"
	Churn   = "churn"
	Rejects = "rejects"
)

type GeneratorConfig struct {
	Scenario     string
	Distribution string // "uniform" or "weibull"
	Count        int
	Repos        []string
	Now          time.Time
	Seed         uint64
	Vocabulary   eventlog.Vocabulary
}

// Generate builds Count issues spread round-robin over the repositories,
// one arrival per day ending at Now, each with a labeled and closed history
// shaped by the scenario.
func Generate(cfg GeneratorConfig) ([]eventlog.Issue, error) {
	switch cfg.Scenario {
	case Steady, Churn, Rejects:
	default:
		return nil, fmt.Errorf("unknown scenario %q (want steady, churn or rejects)", cfg.Scenario)
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if len(cfg.Repos) == 0 {
		cfg.Repos = []string{"sprintstat/mock"}
	}
	if cfg.Vocabulary == (eventlog.Vocabulary{}) {
		cfg.Vocabulary = eventlog.DefaultVocabulary()
	}
	vocab := cfg.Vocabulary
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	issues := make([]eventlog.Issue, 0, cfg.Count)
	tArrival := cfg.Now.AddDate(0, 0, -cfg.Count)
	numbers := make(map[string]int)

	for i := 0; i < cfg.Count; i++ {
		repo := cfg.Repos[i%len(cfg.Repos)]
		numbers[repo]++
		arrival := tArrival.Add(time.Duration(i*24) * time.Hour)

		issue := eventlog.Issue{
			Repository:    repo,
			Number:        numbers[repo],
			Title:         fmt.Sprintf("Mock issue %d", i+1),
			State:         "open",
			IsPullRequest: rng.Float64() < 0.2,
			Author:        "mockgen",
			CreatedAt:     arrival,
			UpdatedAt:     arrival,
		}
		if !issue.IsPullRequest && rng.Float64() < 0.25 {
			issue.Labels = append(issue.Labels, vocab.Bug)
		}

		// Total cycle time in days: uniform 6-11, or a Weibull tail.
		var total float64
		if cfg.Distribution == "weibull" {
			total = weibullSample(rng, 2.5, 9.5)
		} else {
			total = 6.0 + rng.Float64()*5.0
		}
		at := func(fraction float64) time.Time {
			return arrival.Add(time.Duration(total * fraction * 24 * float64(time.Hour)))
		}
		label := func(t time.Time, name string) {
			if t.Before(cfg.Now) {
				issue.Events = append(issue.Events, eventlog.Event{Kind: eventlog.Labeled, Raw: "labeled", At: t, Label: name, Actor: "mockgen"})
			}
		}

		// Roughly one in ten issues is closed without ever being worked.
		if rng.Float64() < 0.1 {
			closeAt(&issue, at(0.5), cfg.Now)
			issues = append(issues, finish(issue, nil))
			continue
		}

		label(at(0.4), vocab.InProgress)
		switch {
		case cfg.Scenario == Churn && rng.Float64() < 0.3:
			label(at(0.55), vocab.BackToTriage)
			label(at(0.8), vocab.InProgress)
			total *= 1.5
		case cfg.Scenario == Rejects && rng.Float64() < 0.25:
			// Work stops and the label comes off: started, never finished.
			if t := at(0.6); t.Before(cfg.Now) {
				issue.Events = append(issue.Events, eventlog.Event{Kind: eventlog.Other, Raw: "unlabeled", At: t, Label: vocab.InProgress, Actor: "mockgen"})
			}
			issues = append(issues, finish(issue, nil))
			continue
		}
		label(at(0.7), vocab.InReview)

		if closeAt(&issue, at(1.0), cfg.Now) {
			issues = append(issues, finish(issue, nil))
			continue
		}
		var current []string
		switch {
		case at(0.7).Before(cfg.Now):
			current = []string{vocab.InReview}
		case at(0.4).Before(cfg.Now):
			current = []string{vocab.InProgress}
		}
		issues = append(issues, finish(issue, current))
	}
	return issues, nil
}

// closeAt closes the issue at t when t is in the past.
func closeAt(issue *eventlog.Issue, t, now time.Time) bool {
	if !t.Before(now) {
		return false
	}
	issue.State = "closed"
	issue.ClosedAt = &t
	issue.Events = append(issue.Events, eventlog.Event{Kind: eventlog.Closed, Raw: "closed", At: t, Actor: "mockgen"})
	return true
}

// finish sets the final labels and the update time.
func finish(issue eventlog.Issue, labels []string) eventlog.Issue {
	issue.Labels = append(slices.Clone(issue.Labels), labels...)
	for _, e := range issue.Events {
		if e.At.After(issue.UpdatedAt) {
			issue.UpdatedAt = e.At
		}
	}
	return issue
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}
