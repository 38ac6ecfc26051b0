package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videowizard/render-api/internal/model"
)

func TestRegistry_GetAbsent(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_SetReplacesWholeSnapshot(t *testing.T) {
	r := NewRegistry()

	progress := 0.5
	r.Set("a", model.Job{ID: "a", Status: model.JobStatusInProgress, Progress: &progress})
	r.Set("a", model.Job{ID: "a", Status: model.JobStatusCompleted, VideoURL: "http://host/renders/a.mp4"})

	job, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Nil(t, job.Progress, "stale fields must not survive a replace")
	assert.Equal(t, "http://host/renders/a.mp4", job.VideoURL)
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	r.Set("a", model.Job{ID: "a", Status: model.JobStatusQueued})

	job, ok := r.Get("a")
	require.True(t, ok)
	job.Status = model.JobStatusFailed

	stored, _ := r.Get("a")
	assert.Equal(t, model.JobStatusQueued, stored.Status, "mutating a snapshot must not change the registry")
}

func TestRegistry_DeleteAndList(t *testing.T) {
	r := NewRegistry()
	r.Set("a", model.Job{ID: "a"})
	r.Set("b", model.Job{ID: "b"})
	require.Equal(t, 2, r.Len())

	r.Delete("a")
	_, ok := r.Get("a")
	assert.False(t, ok)

	jobs := r.List()
	require.Len(t, jobs, 1)
	assert.Equal(t, "b", jobs[0].ID)

	// Deleting an absent id is a no-op.
	r.Delete("a")
	assert.Equal(t, 1, r.Len())
}
