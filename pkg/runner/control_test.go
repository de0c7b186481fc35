package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunControl_MissingRunID(t *testing.T) {
	repo := newFakeRepo()
	launcher := &fakeLauncher{session: &fakeSession{}}
	r := newTestRunner(t, repo, launcher)

	result := r.RunControl(context.Background(), ControlInput{Action: ActionGoto, URL: "https://example.com"})

	assert.False(t, result.OK)
	assert.Equal(t, "runId is required", result.Error)
	assert.Zero(t, launcher.launches)
}

func TestRunControl_Goto(t *testing.T) {
	repo := newFakeRepo()
	session := &fakeSession{text: "hello"}
	launcher := &fakeLauncher{session: session}
	r := newTestRunner(t, repo, launcher)

	result := r.RunControl(context.Background(), ControlInput{
		RunID:  "r1",
		Action: ActionGoto,
		URL:    "https://example.com",
	})

	require.True(t, result.OK)
	require.NotNil(t, result.Output)
	assert.Equal(t, "https://example.com", result.Output.URL)
	assert.NotEmpty(t, result.Output.SnapshotID)
	assert.Len(t, repo.snapshots, 1)
	assert.Equal(t, 1, session.closes)
}

func TestRunControl_GotoRequiresURL(t *testing.T) {
	repo := newFakeRepo()
	launcher := &fakeLauncher{session: &fakeSession{}}
	r := newTestRunner(t, repo, launcher)

	result := r.RunControl(context.Background(), ControlInput{RunID: "r1", Action: ActionGoto})

	assert.False(t, result.OK)
	assert.Equal(t, "url is required for goto", result.Error)
	assert.Zero(t, launcher.launches)
}

func TestRunControl_UnsupportedAction(t *testing.T) {
	repo := newFakeRepo()
	launcher := &fakeLauncher{session: &fakeSession{}}
	r := newTestRunner(t, repo, launcher)

	result := r.RunControl(context.Background(), ControlInput{RunID: "r1", Action: "teleport"})

	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "unsupported action")
}

func TestRunControl_SnapshotRevisitsLastPage(t *testing.T) {
	repo := newFakeRepo()
	session := &fakeSession{text: "hello"}
	launcher := &fakeLauncher{session: session}
	r := newTestRunner(t, repo, launcher)

	first := r.RunControl(context.Background(), ControlInput{
		RunID:  "r1",
		Action: ActionGoto,
		URL:    "https://example.com/page",
	})
	require.True(t, first.OK)

	second := r.RunControl(context.Background(), ControlInput{RunID: "r1", Action: ActionSnapshot})
	require.True(t, second.OK)
	assert.Equal(t, "https://example.com/page", second.Output.URL)
	assert.Len(t, repo.snapshots, 2)
}

func TestRunControl_ReloadWithoutHistory(t *testing.T) {
	repo := newFakeRepo()
	launcher := &fakeLauncher{session: &fakeSession{}}
	r := newTestRunner(t, repo, launcher)

	result := r.RunControl(context.Background(), ControlInput{RunID: "r1", Action: ActionReload})

	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "no page to reload")
	assert.Zero(t, launcher.launches)
}
