package reposync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintstat/internal/github"
)

type fakeClient struct {
	mu         sync.Mutex
	labels     map[string][]github.Label
	milestones map[string][]github.Milestone
	failRepo   string
	calls      []string
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeClient) Labels(ctx context.Context, repo string) ([]github.Label, error) {
	if repo == f.failRepo {
		return nil, errors.New("boom")
	}
	return f.labels[repo], nil
}

func (f *fakeClient) CreateLabel(ctx context.Context, repo string, l github.Label) error {
	f.record("create label " + l.Name + " " + l.Color)
	return nil
}

func (f *fakeClient) UpdateLabel(ctx context.Context, repo string, l github.Label) error {
	f.record("update label " + l.Name + " " + l.Color)
	return nil
}

func (f *fakeClient) DeleteLabel(ctx context.Context, repo, label string) error {
	f.record("delete label " + label)
	return nil
}

func (f *fakeClient) Milestones(ctx context.Context, repo string) ([]github.Milestone, error) {
	return f.milestones[repo], nil
}

func (f *fakeClient) CreateMilestone(ctx context.Context, repo string, m github.Milestone) error {
	f.record("create milestone " + m.Title + " " + m.DueOn.Format(time.RFC3339))
	return nil
}

func (f *fakeClient) UpdateMilestone(ctx context.Context, repo string, m github.Milestone) error {
	due := ""
	if m.DueOn != nil {
		due = m.DueOn.Format(time.RFC3339)
	}
	f.record("update milestone " + m.Title + " " + m.State + " " + due)
	return nil
}

func (f *fakeClient) DeleteMilestone(ctx context.Context, repo string, number int) error {
	f.record("delete milestone " + repo)
	return nil
}

func dueOn(s string) *time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return &t
}

func newFake() *fakeClient {
	return &fakeClient{
		labels: map[string][]github.Label{
			"a/b": {{Name: "#wip", Color: "EDEDED"}, {Name: "bug", Color: "fc2929"}, {Name: "old", Color: "000000"}},
		},
		milestones: map[string][]github.Milestone{
			"a/b": {
				{Number: 1, Title: "v1", State: "open"},
				{Number: 2, Title: "v2", State: "closed"},
				{Number: 3, Title: "v3", State: "open", DueOn: dueOn("2015-03-10T07:00:00Z")},
				{Number: 4, Title: "v3.1", State: "open", DueOn: dueOn("2015-03-10T07:00:00Z")},
				{Number: 5, Title: "junk", State: "open"},
			},
		},
	}
}

func testDefinitions() Definitions {
	return Definitions{
		Labels: map[string]string{
			"#wip":    "ededed",
			"bug":     "#ff0000",
			"#review": "00ff00",
			"old":     "",
			"gone":    "",
		},
		Milestones: map[string]MilestoneSpec{
			"v1":    {Close: true},
			"v2":    {Close: true},
			"v0":    {Close: true},
			"v3":    {Due: "2015-03-10"},
			"v3.1":  {Due: "2015-03-24"},
			"v4":    {Due: "2015-04-07"},
			"junk":  {Delete: true},
			"never": {Delete: true},
		},
	}
}

func TestPlan(t *testing.T) {
	actions, err := Plan(context.Background(), newFake(), "a/b", testDefinitions())
	require.NoError(t, err)

	type row struct {
		kind Kind
		op   Op
		name string
	}
	var got []row
	for _, a := range actions {
		got = append(got, row{a.Kind, a.Op, a.Name})
	}
	assert.Equal(t, []row{
		{KindLabel, OpCreate, "#review"},
		{KindLabel, OpSkip, "#wip"},
		{KindLabel, OpUpdate, "bug"},
		{KindLabel, OpDelete, "old"},
		{KindMilestone, OpDelete, "junk"},
		{KindMilestone, OpSkip, "v0"},
		{KindMilestone, OpClose, "v1"},
		{KindMilestone, OpSkip, "v2"},
		{KindMilestone, OpSkip, "v3"},
		{KindMilestone, OpUpdate, "v3.1"},
		{KindMilestone, OpCreate, "v4"},
	}, got)
}

func TestRun_DryRunDoesNotWrite(t *testing.T) {
	c := newFake()
	actions, err := Run(context.Background(), c, []string{"a/b"}, testDefinitions(), true, 2)
	require.NoError(t, err)
	assert.Len(t, actions, 11)
	assert.Empty(t, c.calls)
}

func TestRun_Applies(t *testing.T) {
	c := newFake()
	_, err := Run(context.Background(), c, []string{"a/b"}, testDefinitions(), false, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create label #review 00ff00",
		"update label bug ff0000",
		"delete label old",
		"delete milestone a/b",
		"update milestone v1 closed ",
		"update milestone v3.1 open 2015-03-24T07:00:00Z",
		"create milestone v4 2015-04-07T07:00:00Z",
	}, c.calls)
}

func TestRun_ContinuesPastFailingRepository(t *testing.T) {
	c := newFake()
	c.labels["c/d"] = nil
	c.failRepo = "x/y"

	actions, err := Run(context.Background(), c, []string{"x/y", "a/b", "not-a-repo"}, Definitions{Labels: map[string]string{"#wip": "ededed"}}, true, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "not-a-repo")
	require.Len(t, actions, 1)
	assert.Equal(t, "a/b", actions[0].Repo)
}

func TestParseMilestones(t *testing.T) {
	specs, err := ParseMilestones(map[string]any{"v3": "2015-03-10", "v2": false, "old": nil})
	require.NoError(t, err)
	assert.Equal(t, map[string]MilestoneSpec{
		"v3":  {Due: "2015-03-10"},
		"v2":  {Close: true},
		"old": {Delete: true},
	}, specs)

	for _, bad := range []map[string]any{{"v": true}, {"v": "March"}, {"v": 3}} {
		_, err := ParseMilestones(bad)
		assert.Error(t, err)
	}
}
