package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
	"github.com/ternarybob/assero/internal/services/events"
)

// defaultEstimateSeconds applies when the job type has no entry in the
// estimate table, including the empty type left for the classifier.
const defaultEstimateSeconds = 120

// Service is the job orchestration facade: synchronous validation and
// enqueue on submit, snapshot reads for polling, cooperative cancel, and
// the maintenance hooks the scheduler drives.
type Service struct {
	config   common.JobsConfig
	store    *Store
	queue    *Queue
	pool     *Pool
	sessions interfaces.SessionService
	notifier *events.Notifier
	logger   arbor.ILogger
}

// NewService wires the store, queue and worker pool. The sessions service
// may be nil when session persistence is disabled.
func NewService(config common.JobsConfig, engine interfaces.WorkflowEngine, sessions interfaces.SessionService, notifier *events.Notifier, logger arbor.ILogger) *Service {
	store := NewStore(config, logger)
	queue := NewQueue(config.QueueSize)
	pool := NewPool(store, queue, engine, sessions, notifier, config, logger)

	return &Service{
		config:   config,
		store:    store,
		queue:    queue,
		pool:     pool,
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
	}
}

// Store exposes the underlying store for handlers that read snapshots
// directly. Mutations stay behind the service surface.
func (s *Service) Store() *Store {
	return s.store
}

// Submit validates the request, creates a pending job and enqueues its ID.
// Malformed submissions and a full queue reject synchronously with no job
// record left behind.
func (s *Service) Submit(ctx context.Context, req *models.SubmitRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("invalid submission: empty request")
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	// A session submission without explicit history is hydrated from the
	// stored conversation.
	if s.sessions != nil && req.SessionID != "" && len(req.ChatHistory) == 0 {
		history, err := s.sessions.History(ctx, req.SessionID)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("session_id", req.SessionID).
				Msg("Failed to load session history")
		} else {
			req.ChatHistory = history
		}
	}

	job := &models.Job{
		ID:                 common.NewJobID(),
		Status:             models.JobStatusPending,
		JobType:            req.JobType,
		CreatedAt:          time.Now(),
		EstimatedDurationS: s.estimateFor(req.JobType),
		SessionID:          req.SessionID,
		Request:            *req,
	}

	if err := s.store.Put(job); err != nil {
		return "", fmt.Errorf("failed to store job: %w", err)
	}

	if err := s.queue.Enqueue(job.ID); err != nil {
		// No job record survives a rejected submission.
		s.store.Remove(job.ID)
		if errors.Is(err, interfaces.ErrQueueFull) {
			s.logger.Warn().
				Str("job_id", job.ID).
				Int("queue_size", s.config.QueueSize).
				Msg("Submission rejected, queue full")
			return "", interfaces.ErrQueueFull
		}
		return "", err
	}

	s.notifier.JobSubmitted(ctx, job)
	s.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", job.JobType).
		Str("session_id", job.SessionID).
		Int("estimate_s", job.EstimatedDurationS).
		Msg("Job submitted")

	return job.ID, nil
}

func (s *Service) estimateFor(jobType string) int {
	if est, ok := s.config.Estimates[jobType]; ok && est > 0 {
		return est
	}
	return defaultEstimateSeconds
}

// Status returns an immutable snapshot of the job
func (s *Service) Status(jobID string) (*models.JobView, error) {
	return s.store.View(jobID)
}

// Result returns the assembled result for a completed job. Any other
// status, including failed and cancelled, answers ErrJobNotCompleted; the
// caller reads the error detail from the status snapshot.
func (s *Service) Result(jobID string) (*models.JobResult, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusCompleted || job.Result == nil {
		return nil, interfaces.ErrJobNotCompleted
	}
	return job.Result, nil
}

// Cancel flips a non-terminal job to cancelled and interrupts its running
// work. Idempotent: a terminal job returns false with no error.
func (s *Service) Cancel(jobID string) (bool, error) {
	flipped, err := s.store.Cancel(jobID)
	if err != nil {
		return false, err
	}
	if flipped {
		if job, err := s.store.Get(jobID); err == nil {
			s.notifier.JobCancelled(context.Background(), job)
		}
		s.logger.Info().
			Str("job_id", jobID).
			Msg("Job cancelled")
	}
	return flipped, nil
}

// Stats summarizes the job store
func (s *Service) Stats() *models.JobStats {
	return s.store.Stats()
}

// List returns recent jobs, newest first
func (s *Service) List(limit int, status models.JobStatus) []models.JobView {
	return s.store.List(limit, status)
}

// Start launches the worker pool
func (s *Service) Start(ctx context.Context) error {
	return s.pool.Start(ctx)
}

// Stop drains the workers
func (s *Service) Stop() error {
	return s.pool.Stop()
}

// EvictExpired applies the retention rules to terminal jobs
func (s *Service) EvictExpired() int {
	return s.store.EvictExpired()
}

// FailStale fails processing jobs whose deadline passed more than grace
// ago and announces each failure on the event bus.
func (s *Service) FailStale(grace time.Duration) []string {
	failed := s.store.FailStale(grace)
	for _, jobID := range failed {
		if job, err := s.store.Get(jobID); err == nil {
			s.notifier.JobFailed(context.Background(), job, job.Error)
		}
	}
	return failed
}
