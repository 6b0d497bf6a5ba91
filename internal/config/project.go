package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"sprintstat/internal/eventlog"
	"sprintstat/internal/reposync"
	"sprintstat/internal/sprint"
)

// keyDelim separates koanf key paths. Label and milestone names are map
// keys and routinely contain dots ("v3.1"), so "." cannot be used.
const keyDelim = "::"

// Project is a project file: the repositories a board covers, its sprint
// calendar and label vocabulary, and the labels and milestones kept in sync
// across its repositories.
type Project struct {
	Repos      []string            `koanf:"repos"`
	Since      string              `koanf:"since"`
	Calendar   sprint.Config       `koanf:"calendar"`
	Vocabulary eventlog.Vocabulary `koanf:"vocabulary"`
	// Labels maps a label name to its color; an empty color deletes it.
	Labels map[string]string `koanf:"labels"`
	// Milestones maps a title to a due date, false (close) or null (delete).
	Milestones map[string]any `koanf:"milestones"`
}

// DefaultProject returns a project with the default calendar and
// vocabulary and no repositories.
func DefaultProject() *Project {
	return &Project{
		Calendar:   sprint.DefaultConfig(),
		Vocabulary: eventlog.DefaultVocabulary(),
	}
}

// LoadProject reads a project file. The parser follows the extension; json
// is assumed when there is none.
func LoadProject(path string) (*Project, error) {
	k := koanf.New(keyDelim)
	p := DefaultProject()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	default:
		parser = json.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to read project file %s: %w", path, err)
	}
	if err := k.Unmarshal("", p); err != nil {
		return nil, fmt.Errorf("invalid project file %s: %w", path, err)
	}

	// Unmarshal merges into the defaults, which is wrong for the sync maps:
	// null milestones must survive as deletions.
	if k.Exists("milestones") {
		if raw, ok := k.Get("milestones").(map[string]any); ok {
			p.Milestones = raw
		}
	}
	return p, nil
}

// FindProject looks for a project file in the working directory.
func FindProject() (string, bool) {
	for _, base := range []string{"sprintstat", ".sprintstat"} {
		for _, ext := range projectExts {
			if _, err := os.Stat(base + ext); err == nil {
				return base + ext, true
			}
		}
	}
	return "", false
}

// projectExts are the project file extensions, in lookup order.
var projectExts = []string{".yaml", ".yml", ".json", ".toml"}

// FindScrum resolves a scrum board name to its project file in
// <dataPath>/scrums. A name that is already an existing file is returned
// unchanged.
func FindScrum(dataPath, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("scrum name is required")
	}
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return name, nil
	}
	dir := filepath.Join(dataPath, "scrums")
	for _, ext := range projectExts {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("scrum %s not found in %s", name, dir)
}

// SinceTime parses Since (YYYY-MM-DD) in the calendar's zone. An empty
// Since is the zero time.
func (p *Project) SinceTime(cal *sprint.Calendar) (time.Time, error) {
	if p.Since == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, p.Since, cal.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since %q: %w", p.Since, err)
	}
	return t, nil
}

// SyncDefinitions returns the label and milestone definitions to sync.
func (p *Project) SyncDefinitions() (reposync.Definitions, error) {
	milestones, err := reposync.ParseMilestones(p.Milestones)
	if err != nil {
		return reposync.Definitions{}, err
	}
	return reposync.Definitions{Labels: p.Labels, Milestones: milestones}, nil
}
