package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/services/events"
)

// Tracker maps step-scoped progress onto the job's overall 0..100 range and
// throttles store writes. Step k of n owns the window
// [100*(k-1)/n, 100*k/n); inner percentages interpolate inside it. The
// tracker is owned by the single worker goroutine running the job and is
// not safe for concurrent use.
type Tracker struct {
	store    *Store
	notifier *events.Notifier
	logger   arbor.ILogger

	jobID    string
	jobType  string
	interval time.Duration

	step      int
	total     int
	lastWrite time.Time
}

// NewTracker creates a tracker for one job execution
func NewTracker(store *Store, notifier *events.Notifier, logger arbor.ILogger, jobID, jobType string, interval time.Duration) *Tracker {
	return &Tracker{
		store:    store,
		notifier: notifier,
		logger:   logger,
		jobID:    jobID,
		jobType:  jobType,
		interval: interval,
		step:     1,
		total:    1,
	}
}

// BeginStep scopes subsequent updates to step k of n, both 1-based
func (t *Tracker) BeginStep(step, total int) {
	if step < 1 {
		step = 1
	}
	if total < step {
		total = step
	}
	t.step = step
	t.total = total
}

// Update reports progress within the current step. Writes are dropped when
// the throttle interval has not elapsed; the first write always goes
// through. Cancellation is consulted before every write: a cancelled job
// suppresses the write and returns ErrJobCancelled so the executor aborts.
func (t *Tracker) Update(innerPct int, message string) error {
	if t.store.IsCancelled(t.jobID) {
		return interfaces.ErrJobCancelled
	}

	if !t.lastWrite.IsZero() && time.Since(t.lastWrite) < t.interval {
		return nil
	}

	if innerPct < 0 {
		innerPct = 0
	}
	if innerPct > 100 {
		innerPct = 100
	}

	startPct := float64(t.step-1) / float64(t.total) * 100
	endPct := float64(t.step) / float64(t.total) * 100
	overall := int(startPct + float64(innerPct)*(endPct-startPct)/100)

	if err := t.store.SetProgress(t.jobID, overall); err != nil {
		if errors.Is(err, interfaces.ErrJobCancelled) {
			return interfaces.ErrJobCancelled
		}
		// A terminal or missing job means the write no longer matters.
		t.logger.Debug().
			Err(err).
			Str("job_id", t.jobID).
			Msg("Progress write dropped")
		return nil
	}
	t.lastWrite = time.Now()

	t.notifier.JobProgress(context.Background(), t.jobID, t.jobType, overall, message)
	return nil
}

// Cancelled reports whether the owning job was cancelled
func (t *Tracker) Cancelled() bool {
	return t.store.IsCancelled(t.jobID)
}
