package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/assero/internal/models"
)

// Sentinel errors for job operations
var (
	// ErrJobNotFound is returned when a job ID does not resolve
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueFull is returned synchronously when the submission queue is at
	// capacity; no job record survives the rejection
	ErrQueueFull = errors.New("job queue is full")

	// ErrJobNotCompleted is returned when a result is requested for a job
	// that has not completed
	ErrJobNotCompleted = errors.New("job is not completed")

	// ErrJobCancelled signals the executor that the owning job was cancelled
	// and execution must stop without recording further results
	ErrJobCancelled = errors.New("job cancelled")
)

// JobService is the submission and polling surface the HTTP layer depends
// on. Submit validates synchronously and enqueues; everything else reads or
// flips job state.
type JobService interface {
	// Submit validates the request, creates a pending job and enqueues it.
	// Returns the job ID, or a validation error / ErrQueueFull with no job
	// created.
	Submit(ctx context.Context, req *models.SubmitRequest) (string, error)

	// Status returns an immutable snapshot of the job
	Status(jobID string) (*models.JobView, error)

	// Result returns the assembled result, only for completed jobs
	Result(jobID string) (*models.JobResult, error)

	// Cancel flips a non-terminal job to cancelled and interrupts its
	// running work. Returns false if the job was already terminal.
	Cancel(jobID string) (bool, error)

	// Stats summarizes the job store
	Stats() *models.JobStats

	// List returns recent jobs, newest first. A zero limit means all;
	// an empty status means any.
	List(limit int, status models.JobStatus) []models.JobView

	// Start launches the worker pool
	Start(ctx context.Context) error

	// Stop drains the workers and stops accepting submissions
	Stop() error
}

// JobMaintainer exposes the store maintenance hooks the scheduler drives.
// Pending and processing jobs are never touched by either operation.
type JobMaintainer interface {
	// EvictExpired applies TTL and capacity rules to terminal jobs,
	// returning the number evicted
	EvictExpired() int

	// FailStale fails processing jobs whose execution deadline passed more
	// than grace ago, returning the affected job IDs. These jobs lost their
	// worker (crash or deadlock) and would otherwise sit processing forever.
	FailStale(grace time.Duration) []string
}
