package eventlog

import (
	"strconv"
	"strings"

	"sprintstat/internal/sprint"
)

// Vocabulary names the labels that drive the lifecycle. Projects use
// different label sets, so none of them is hardcoded in the classifier.
type Vocabulary struct {
	SprintPrefix         string `koanf:"sprint_prefix" json:"sprintPrefix"`
	InProgress           string `koanf:"in_progress" json:"inProgress"`
	InReview             string `koanf:"in_review" json:"inReview"`
	ReadyForVerification string `koanf:"ready_for_verification" json:"readyForVerification"`
	ReadyToShip          string `koanf:"ready_to_ship" json:"readyToShip"`
	BackToTriage         string `koanf:"back_to_triage" json:"backToTriage"`
	Planning             string `koanf:"planning" json:"planning"`
	Bug                  string `koanf:"bug" json:"bug"`
	Community            string `koanf:"community" json:"community"`
	SizePrefix           string `koanf:"size_prefix" json:"sizePrefix"`
}

// DefaultVocabulary returns the label set of the scrum boards the tool was
// first written for.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		SprintPrefix:         "#sprint",
		InProgress:           "#wip",
		InReview:             "#review",
		ReadyForVerification: "#verify",
		ReadyToShip:          "#tbr",
		BackToTriage:         "#tob",
		Planning:             "#plan",
		Bug:                  "bug",
		Community:            "#community contribution",
		SizePrefix:           "#fib-",
	}
}

// SprintOf parses a sprint label ("#sprint64") into its sprint number.
// Anything else, including a bare prefix, is not a sprint label.
func (v Vocabulary) SprintOf(label string) (int, bool) {
	if v.SprintPrefix == "" || !strings.HasPrefix(label, v.SprintPrefix) {
		return 0, false
	}
	digits := label[len(v.SprintPrefix):]
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsSprintLabel reports whether label encodes a sprint number.
func (v Vocabulary) IsSprintLabel(label string) bool {
	_, ok := v.SprintOf(label)
	return ok
}

// Committed reports whether the current labels place the issue in active
// work: any in-progress, review, verify or ship-ready label, or a sprint label.
func (v Vocabulary) Committed(labels []string) bool {
	for _, l := range labels {
		if l == "" {
			continue
		}
		switch l {
		case v.ReadyToShip, v.ReadyForVerification, v.InReview, v.InProgress:
			return true
		}
		if v.IsSprintLabel(l) {
			return true
		}
	}
	return false
}

// InSprintLabels lists the labels that put an open issue in the current
// sprint, in reporting order.
func (v Vocabulary) InSprintLabels(current int) []string {
	return []string{
		v.ReadyForVerification,
		v.InReview,
		v.InProgress,
		sprint.Label(v.SprintPrefix, current),
	}
}

// IsWorkflowLabel reports labels that only track workflow state and are
// hidden when decorating titles.
func (v Vocabulary) IsWorkflowLabel(label string) bool {
	switch label {
	case v.InProgress, v.InReview, v.ReadyForVerification, v.ReadyToShip, v.BackToTriage:
		return true
	}
	if v.SizePrefix != "" && strings.HasPrefix(label, v.SizePrefix) {
		return true
	}
	return v.SprintPrefix != "" && strings.HasPrefix(label, v.SprintPrefix)
}
