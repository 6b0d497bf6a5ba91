package github

import "fmt"

// SourceFetchError reports a request that still failed after the retry
// policy was exhausted, or that could not be retried at all.
type SourceFetchError struct {
	Repo     string
	Number   int
	Op       string
	Attempts int
	Err      error
}

func (e *SourceFetchError) Error() string {
	target := e.Repo
	if e.Number > 0 {
		target = fmt.Sprintf("%s#%d", e.Repo, e.Number)
	}
	return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Op, target, e.Attempts, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}
