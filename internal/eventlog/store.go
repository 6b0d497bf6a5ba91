package eventlog

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
)

// SaveSnapshot persists issues (with their events) to a JSONL file, one
// issue per line. The file is replaced atomically.
func SaveSnapshot(path string, issues []Issue) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, issue := range issues {
		if err := encoder.Encode(issue); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode issue %s: %w", issue.ID(), err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	log.Info().Str("path", path).Int("count", len(issues)).Msg("Snapshot saved")
	return nil
}

// LoadSnapshot reads a JSONL snapshot written by SaveSnapshot. Lines that
// do not decode are skipped with a warning.
func LoadSnapshot(path string) ([]Issue, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var issues []Issue
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var issue Issue
		if err := json.Unmarshal(scanner.Bytes(), &issue); err != nil {
			log.Warn().Err(err).Str("path", path).Int("line", line).Msg("Skipping invalid JSON line in snapshot")
			continue
		}
		issues = append(issues, issue)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}

	log.Info().Str("path", path).Int("count", len(issues)).Msg("Loaded issues from snapshot")
	return issues, nil
}

// SnapshotSource serves previously captured issues as a Source, so reports
// can be rebuilt offline.
type SnapshotSource struct {
	mu       sync.RWMutex
	byRepo   map[string][]Issue
	pageSize int
}

// NewSnapshotSource indexes issues by repository.
func NewSnapshotSource(issues []Issue) *SnapshotSource {
	s := &SnapshotSource{
		byRepo:   make(map[string][]Issue),
		pageSize: 100,
	}
	for _, issue := range issues {
		s.byRepo[issue.Repository] = append(s.byRepo[issue.Repository], issue)
	}
	for repo := range s.byRepo {
		slices.SortFunc(s.byRepo[repo], func(a, b Issue) int { return a.Number - b.Number })
	}
	return s
}

// OpenSnapshotSource loads a snapshot file into a SnapshotSource.
func OpenSnapshotSource(path string) (*SnapshotSource, error) {
	issues, err := LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return NewSnapshotSource(issues), nil
}

// Repositories lists the repositories present in the snapshot.
func (s *SnapshotSource) Repositories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repos := make([]string, 0, len(s.byRepo))
	for repo := range s.byRepo {
		repos = append(repos, repo)
	}
	slices.Sort(repos)
	return repos
}

// IssuePages yields the repository's matching issues in pages. Events are
// stripped so the Provider fetches them the same way it would online.
func (s *SnapshotSource) IssuePages(ctx context.Context, repo string, q Query) iter.Seq2[[]Issue, error] {
	return func(yield func([]Issue, error) bool) {
		s.mu.RLock()
		all := s.byRepo[repo]
		s.mu.RUnlock()

		var page []Issue
		for _, issue := range all {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !q.Matches(issue) {
				continue
			}
			issue.Events = nil
			page = append(page, issue)
			if len(page) == s.pageSize {
				if !yield(page, nil) {
					return
				}
				page = nil
			}
		}
		if len(page) > 0 {
			yield(page, nil)
		}
	}
}

// Issue returns one recorded issue without its events.
func (s *SnapshotSource) Issue(ctx context.Context, repo string, number int) (Issue, error) {
	if err := ctx.Err(); err != nil {
		return Issue{}, err
	}
	issue, ok := s.find(repo, number)
	if !ok {
		return Issue{}, fmt.Errorf("%s#%d: %w", repo, number, ErrIssueNotFound)
	}
	issue.Events = nil
	return issue, nil
}

func (s *SnapshotSource) find(repo string, number int) (Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issues := s.byRepo[repo]
	i, found := slices.BinarySearchFunc(issues, number, func(issue Issue, n int) int { return issue.Number - n })
	if !found {
		return Issue{}, false
	}
	return issues[i], true
}

// Events returns the recorded events of one issue.
func (s *SnapshotSource) Events(ctx context.Context, repo string, number int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	issue, ok := s.find(repo, number)
	if !ok {
		return nil, fmt.Errorf("%s#%d: %w", repo, number, ErrIssueNotFound)
	}
	return slices.Clone(issue.Events), nil
}

// Recorder wraps a Source and keeps every issue and event history it
// serves, so a live run can be saved as a snapshot afterwards.
type Recorder struct {
	src    Source
	mu     sync.Mutex
	issues map[string]Issue
}

// NewRecorder wraps src.
func NewRecorder(src Source) *Recorder {
	return &Recorder{src: src, issues: make(map[string]Issue)}
}

func (r *Recorder) keep(issue Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.issues[issue.ID()]; ok && len(issue.Events) == 0 {
		issue.Events = prev.Events
	}
	r.issues[issue.ID()] = issue
}

// IssuePages passes pages through, recording each issue.
func (r *Recorder) IssuePages(ctx context.Context, repo string, q Query) iter.Seq2[[]Issue, error] {
	return func(yield func([]Issue, error) bool) {
		for page, err := range r.src.IssuePages(ctx, repo, q) {
			for _, issue := range page {
				r.keep(issue)
			}
			if !yield(page, err) {
				return
			}
		}
	}
}

// Issue fetches one issue through the wrapped source. A source that cannot
// fetch single issues is scanned page by page.
func (r *Recorder) Issue(ctx context.Context, repo string, number int) (Issue, error) {
	if g, ok := r.src.(IssueGetter); ok {
		issue, err := g.Issue(ctx, repo, number)
		if err != nil {
			return Issue{}, err
		}
		r.keep(issue)
		return issue, nil
	}
	for page, err := range r.IssuePages(ctx, repo, Query{State: "all"}) {
		if err != nil {
			return Issue{}, err
		}
		for _, issue := range page {
			if issue.Number == number {
				return issue, nil
			}
		}
	}
	return Issue{}, fmt.Errorf("%s#%d: %w", repo, number, ErrIssueNotFound)
}

// Events fetches and records one issue's history.
func (r *Recorder) Events(ctx context.Context, repo string, number int) ([]Event, error) {
	events, err := r.src.Events(ctx, repo, number)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id := Issue{Repository: repo, Number: number}.ID()
	issue, ok := r.issues[id]
	if !ok {
		issue = Issue{Repository: repo, Number: number}
	}
	issue.Events = slices.Clone(events)
	r.issues[id] = issue
	return events, nil
}

// IsCollaborator passes the check through when the wrapped source supports
// it; otherwise everyone counts as a collaborator.
func (r *Recorder) IsCollaborator(ctx context.Context, repo, login string) (bool, error) {
	if c, ok := r.src.(CollaboratorChecker); ok {
		return c.IsCollaborator(ctx, repo, login)
	}
	return true, nil
}

// Issues returns everything recorded so far, ordered by repository and
// number.
func (r *Recorder) Issues() []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()

	issues := make([]Issue, 0, len(r.issues))
	for _, issue := range r.issues {
		issues = append(issues, issue)
	}
	slices.SortFunc(issues, func(a, b Issue) int {
		return cmp.Or(cmp.Compare(a.Repository, b.Repository), cmp.Compare(a.Number, b.Number))
	})
	return issues
}
