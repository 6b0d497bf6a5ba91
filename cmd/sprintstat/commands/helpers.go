package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"

	"sprintstat/internal/config"
	"sprintstat/internal/eventlog"
	"sprintstat/internal/github"
	"sprintstat/internal/progress"
	"sprintstat/internal/report"
	"sprintstat/internal/sprint"
	"sprintstat/internal/stats"
)

func (o *options) loadProject() (*config.Project, error) {
	path := o.projectPath
	if path == "" {
		found, ok := config.FindProject()
		if !ok {
			log.Debug().Msg("No project file found, using the default calendar and vocabulary")
			return config.DefaultProject(), nil
		}
		path = found
	}
	project, err := config.LoadProject(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Strs("repos", project.Repos).Msg("Loaded project file")
	return project, nil
}

func (o *options) calendar() (*sprint.Calendar, error) {
	var opts []sprint.Option
	if o.now != "" {
		now, err := time.Parse(time.RFC3339, o.now)
		if err != nil {
			return nil, fmt.Errorf("invalid --now %q: %w", o.now, err)
		}
		opts = append(opts, sprint.WithClock(func() time.Time { return now }))
	}
	return sprint.New(o.project.Calendar, opts...)
}

// githubClient creates a live client. cacheTTL enables the session cache.
func (o *options) githubClient(cacheTTL time.Duration) (*github.Client, error) {
	gcfg := o.cfg.GitHub
	gcfg.CacheTTL = cacheTTL
	return github.NewClient(gcfg)
}

// source returns the issue source: a snapshot when --from-snapshot is set,
// GitHub otherwise. With --snapshot the source is wrapped in a recorder.
func (o *options) source(cacheTTL time.Duration) (eventlog.Source, error) {
	var src eventlog.Source
	if o.fromSnapshot != "" {
		snap, err := o.snapshotSource()
		if err != nil {
			return nil, err
		}
		src = snap
	} else {
		client, err := o.githubClient(cacheTTL)
		if err != nil {
			return nil, err
		}
		src = client
	}

	if o.snapshot != "" {
		if o.recorder == nil {
			o.recorder = eventlog.NewRecorder(src)
		}
		return o.recorder, nil
	}
	return src, nil
}

// snapshotSource loads the --from-snapshot file once.
func (o *options) snapshotSource() (*eventlog.SnapshotSource, error) {
	if o.snap == nil {
		snap, err := eventlog.OpenSnapshotSource(o.snapshotPath(o.fromSnapshot, true))
		if err != nil {
			return nil, err
		}
		o.snap = snap
	}
	return o.snap, nil
}

// session builds a report session. The returned Fetch drives progress bars
// on stderr and is nil when they are disabled.
func (o *options) session() (*stats.Session, *progress.Fetch, error) {
	cal, err := o.calendar()
	if err != nil {
		return nil, nil, err
	}
	src, err := o.source(0)
	if err != nil {
		return nil, nil, err
	}

	var fetch *progress.Fetch
	if o.showProgress() {
		fetch = progress.NewFetch(os.Stderr)
	}
	provider := eventlog.NewProvider(src, o.cfg.Concurrency, fetch.Options()...)
	return stats.NewSession(provider, cal, o.project.Vocabulary), fetch, nil
}

// targets parses repository arguments, falling back to the project's
// repositories and then to every repository in the snapshot.
func (o *options) targets(args []string) ([]stats.Target, error) {
	if len(args) == 0 {
		args = o.project.Repos
	}
	if len(args) == 0 && o.fromSnapshot != "" {
		snap, err := o.snapshotSource()
		if err != nil {
			return nil, err
		}
		args = snap.Repositories()
	}
	if len(args) == 0 {
		return nil, errors.New("no repositories given and none listed in the project file")
	}
	targets := make([]stats.Target, 0, len(args))
	for _, arg := range args {
		t, err := stats.ParseTarget(arg)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (o *options) showProgress() bool {
	if o.noProgress || o.verbose {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

func (o *options) colored() bool {
	return o.output == "" && isatty.IsTerminal(os.Stdout.Fd())
}

// render writes data in the requested format.
func (o *options) render(data any) error {
	format, err := report.ParseFormat(o.format)
	if err != nil {
		return err
	}
	formatter, err := report.NewFormatter(format, o.output, o.colored())
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(data)
}

func (o *options) saveSnapshot() error {
	if o.recorder == nil {
		return nil
	}
	path := o.snapshotPath(o.snapshot, false)
	issues := o.recorder.Issues()
	if err := eventlog.SaveSnapshot(path, issues); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("issues", len(issues)).Msg("Snapshot saved")
	return nil
}

// snapshotPath places bare file names in the snapshot directory. A bare
// name that exists in the working directory is read from there.
func (o *options) snapshotPath(name string, reading bool) string {
	if filepath.Base(name) != name {
		return name
	}
	if reading {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return filepath.Join(o.cfg.SnapshotDir, name)
}
