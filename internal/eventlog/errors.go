package eventlog

import (
	"errors"
	"fmt"
)

// ErrIssueNotFound is returned when a requested issue does not exist.
var ErrIssueNotFound = errors.New("issue not found")

// MalformedEventError reports an event that cannot be classified because a
// required field is missing. It names the issue so the operator can inspect
// the source data.
type MalformedEventError struct {
	Issue string
	Index int
	Kind  Kind
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("%s: %s event #%d has no timestamp", e.Issue, e.Kind, e.Index)
}
