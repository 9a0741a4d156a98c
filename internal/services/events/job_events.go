package events

import (
	"context"
	"time"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// JobEventPayload is the wire shape carried by every job lifecycle event
type JobEventPayload struct {
	JobID     string    `json:"job_id"`
	JobType   string    `json:"job_type"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier publishes job lifecycle events on the event bus. All publishes
// are asynchronous; a slow subscriber never holds up a worker.
type Notifier struct {
	events interfaces.EventService
}

// NewNotifier creates a notifier over the given event service
func NewNotifier(events interfaces.EventService) *Notifier {
	return &Notifier{events: events}
}

func (n *Notifier) publish(ctx context.Context, eventType interfaces.EventType, payload JobEventPayload) {
	if n == nil || n.events == nil {
		return
	}
	payload.Timestamp = time.Now()
	// Publish never returns an error for missing subscribers; anything else
	// is already logged inside the event service.
	_ = n.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload})
}

// JobSubmitted announces a newly queued job
func (n *Notifier) JobSubmitted(ctx context.Context, job *models.Job) {
	n.publish(ctx, interfaces.EventJobSubmitted, JobEventPayload{
		JobID:   job.ID,
		JobType: job.JobType,
		Status:  string(job.Status),
	})
}

// JobStarted announces the pending to processing transition
func (n *Notifier) JobStarted(ctx context.Context, job *models.Job) {
	n.publish(ctx, interfaces.EventJobStarted, JobEventPayload{
		JobID:   job.ID,
		JobType: job.JobType,
		Status:  string(models.JobStatusProcessing),
	})
}

// JobProgress announces a progress write
func (n *Notifier) JobProgress(ctx context.Context, jobID, jobType string, progress int, message string) {
	n.publish(ctx, interfaces.EventJobProgress, JobEventPayload{
		JobID:    jobID,
		JobType:  jobType,
		Status:   string(models.JobStatusProcessing),
		Progress: progress,
		Message:  message,
	})
}

// JobRetrying announces a failed attempt that will be retried
func (n *Notifier) JobRetrying(ctx context.Context, job *models.Job, attempt int, errMsg string) {
	n.publish(ctx, interfaces.EventJobRetrying, JobEventPayload{
		JobID:   job.ID,
		JobType: job.JobType,
		Status:  string(models.JobStatusProcessing),
		Attempt: attempt,
		Error:   errMsg,
	})
}

// JobCompleted announces a successful terminal transition
func (n *Notifier) JobCompleted(ctx context.Context, job *models.Job) {
	n.publish(ctx, interfaces.EventJobCompleted, JobEventPayload{
		JobID:    job.ID,
		JobType:  job.JobType,
		Status:   string(models.JobStatusCompleted),
		Progress: 100,
	})
}

// JobFailed announces a failed terminal transition
func (n *Notifier) JobFailed(ctx context.Context, job *models.Job, errMsg string) {
	n.publish(ctx, interfaces.EventJobFailed, JobEventPayload{
		JobID:   job.ID,
		JobType: job.JobType,
		Status:  string(models.JobStatusFailed),
		Error:   errMsg,
	})
}

// JobCancelled announces a cancelled terminal transition
func (n *Notifier) JobCancelled(ctx context.Context, job *models.Job) {
	n.publish(ctx, interfaces.EventJobCancelled, JobEventPayload{
		JobID:    job.ID,
		JobType:  job.JobType,
		Status:   string(models.JobStatusCancelled),
		Progress: job.Progress,
	})
}
