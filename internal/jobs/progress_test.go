package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
	"github.com/ternarybob/assero/internal/services/events"
)

func newTestTracker(t *testing.T, store *Store, interval time.Duration) *Tracker {
	t.Helper()
	return NewTracker(store, events.NewNotifier(nil), arbor.NewLogger(), "job_a", models.JobTypeGeneralChat, interval)
}

func trackedJob(t *testing.T, store *Store) {
	t.Helper()
	require.NoError(t, store.Put(newPendingJob("job_a")))
	require.NoError(t, store.MarkProcessing("job_a"))
}

func TestTrackerMapsStepWindows(t *testing.T) {
	store := newTestStore(t)
	trackedJob(t, store)
	tracker := newTestTracker(t, store, 0)

	// Step 1 of 2 owns [0, 50).
	tracker.BeginStep(1, 2)
	require.NoError(t, tracker.Update(50, "halfway through step one"))
	job, _ := store.Get("job_a")
	assert.Equal(t, 25, job.Progress)

	require.NoError(t, tracker.Update(100, "step one done"))
	job, _ = store.Get("job_a")
	assert.Equal(t, 50, job.Progress)

	// Step 2 of 2 owns [50, 100).
	tracker.BeginStep(2, 2)
	require.NoError(t, tracker.Update(50, "halfway through step two"))
	job, _ = store.Get("job_a")
	assert.Equal(t, 75, job.Progress)

	// Inner 100 of the final step still stays below the completion mark.
	require.NoError(t, tracker.Update(100, "step two done"))
	job, _ = store.Get("job_a")
	assert.Equal(t, 99, job.Progress)
}

func TestTrackerThrottlesWrites(t *testing.T) {
	store := newTestStore(t)
	trackedJob(t, store)
	tracker := newTestTracker(t, store, time.Hour)

	tracker.BeginStep(1, 1)
	require.NoError(t, tracker.Update(10, "first"))
	job, _ := store.Get("job_a")
	assert.Equal(t, 10, job.Progress)

	// Inside the throttle interval the write is dropped, not an error.
	require.NoError(t, tracker.Update(90, "second"))
	job, _ = store.Get("job_a")
	assert.Equal(t, 10, job.Progress)
}

func TestTrackerSignalsCancellation(t *testing.T) {
	store := newTestStore(t)
	trackedJob(t, store)
	tracker := newTestTracker(t, store, 0)

	tracker.BeginStep(1, 1)
	require.NoError(t, tracker.Update(10, "before cancel"))

	_, err := store.Cancel("job_a")
	require.NoError(t, err)

	assert.True(t, tracker.Cancelled())
	err = tracker.Update(50, "after cancel")
	assert.ErrorIs(t, err, interfaces.ErrJobCancelled)

	// The suppressed write left progress untouched.
	job, _ := store.Get("job_a")
	assert.Equal(t, 10, job.Progress)
}

func TestTrackerProgressMonotonicAcrossSteps(t *testing.T) {
	store := newTestStore(t)
	trackedJob(t, store)
	tracker := newTestTracker(t, store, 0)

	tracker.BeginStep(2, 3)
	require.NoError(t, tracker.Update(100, "step two done"))
	job, _ := store.Get("job_a")
	progressAfterStepTwo := job.Progress

	// A later step reporting a low inner percentage never regresses the bar.
	tracker.BeginStep(3, 3)
	require.NoError(t, tracker.Update(0, "step three starting"))
	job, _ = store.Get("job_a")
	assert.GreaterOrEqual(t, job.Progress, progressAfterStepTwo)
}
