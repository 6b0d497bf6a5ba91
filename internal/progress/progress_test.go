package progress

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"strings"
	"testing"

	"sprintstat/internal/eventlog"
)

type pagedSource struct{}

func (pagedSource) IssuePages(ctx context.Context, repo string, q eventlog.Query) iter.Seq2[[]eventlog.Issue, error] {
	return func(yield func([]eventlog.Issue, error) bool) {
		if !yield([]eventlog.Issue{{Repository: repo, Number: 1}, {Repository: repo, Number: 2}}, nil) {
			return
		}
		yield([]eventlog.Issue{{Repository: repo, Number: 3}}, nil)
	}
}

func (pagedSource) Events(ctx context.Context, repo string, number int) ([]eventlog.Event, error) {
	return nil, nil
}

func TestFetch_DrivesBars(t *testing.T) {
	var buf bytes.Buffer
	f := NewFetch(&buf)
	p := eventlog.NewProvider(pagedSource{}, 2, f.Options()...)

	issues, err := p.Collect(context.Background(), []string{"a/b", "a/c"}, eventlog.Query{}, true)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(issues) != 6 {
		t.Fatalf("Expected 6 issues, got %d", len(issues))
	}

	listed, total, fetched := f.Counts()
	if listed != 6 {
		t.Errorf("Expected 6 listed issues, got %d", listed)
	}
	if total != 6 {
		t.Errorf("Expected events total 6, got %d", total)
	}
	if fetched != 6 {
		t.Errorf("Expected 6 fetched histories, got %d", fetched)
	}
	if got := f.events.bar.GetMax(); got != 6 {
		t.Errorf("Expected bar max 6, got %d", got)
	}
	f.Finish(nil)
}

func TestFetch_NilIsQuiet(t *testing.T) {
	var f *Fetch
	if opts := f.Options(); opts != nil {
		t.Errorf("Expected no options, got %d", len(opts))
	}
	f.Finish(nil)
}

func TestFetch_FinishWithErrorOnlyClears(t *testing.T) {
	var buf bytes.Buffer
	f := NewFetch(&buf)
	p := eventlog.NewProvider(pagedSource{}, 1, f.Options()...)
	if _, err := p.Collect(context.Background(), []string{"a/b"}, eventlog.Query{}, true); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe failed: %v", err)
	}
	stderr := os.Stderr
	os.Stderr = w
	f.Finish(errors.New("rate limited"))
	os.Stderr = stderr
	w.Close()
	printed, _ := io.ReadAll(r)

	for _, out := range []string{buf.String(), string(printed)} {
		if strings.Contains(out, "rate limited") {
			t.Errorf("Expected the error to be left to the caller, got %q", out)
		}
	}
}
