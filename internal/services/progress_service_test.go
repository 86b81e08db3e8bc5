package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestProgressTrackerLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := NewProgressService()
	tracker := svc.CreateTracker("task-1")
	assert.Same(t, tracker, svc.CreateTracker("task-1"))

	ch := tracker.Subscribe()
	first := <-ch
	assert.Equal(t, ProgressRunning, first.Status)
	assert.Equal(t, "task-1", first.TaskID)

	tracker.UpdateProgress(40, "Generating Mara")
	tracker.UpdateProgress(20, "")
	update := <-ch
	assert.Equal(t, 40, update.Progress)
	update = <-ch
	assert.Equal(t, 40, update.Progress, "progress does not go backwards")
	assert.Equal(t, "Generating Mara", update.Message)

	tracker.Complete("")
	update = <-ch
	assert.Equal(t, ProgressCompleted, update.Status)
	assert.Equal(t, 100, update.Progress)

	select {
	case <-tracker.Done():
	case <-time.After(time.Second):
		t.Fatal("done not closed")
	}

	// second finish is a no-op
	tracker.Fail("late")
	assert.Equal(t, ProgressCompleted, tracker.Snapshot().Status)

	tracker.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestProgressCleanup(t *testing.T) {
	svc := NewProgressService()
	svc.CreateTracker("running")
	svc.CreateTracker("failed").Fail("boom")

	assert.Equal(t, 0, svc.CleanupCompletedTasks(time.Hour))
	assert.Equal(t, 1, svc.CleanupCompletedTasks(-time.Second))

	_, ok := svc.GetTracker("failed")
	assert.False(t, ok)
	tracker, ok := svc.GetTracker("running")
	require.True(t, ok)
	assert.Equal(t, "Starting...", tracker.Snapshot().Message)
}
