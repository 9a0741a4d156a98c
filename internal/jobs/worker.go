package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
	"github.com/ternarybob/assero/internal/services/events"
)

// emptyResponseApology replaces trivially short workflow output. The job
// still completes; short content is a quality fault, not a lifecycle
// failure.
const emptyResponseApology = "I apologize, but I was unable to generate a response. Please try rephrasing your request."

// emptyResponseThreshold is the minimum trimmed response length treated as
// real content.
const emptyResponseThreshold = 5

// Pool runs submitted jobs through the workflow engine. Each worker
// dequeues job IDs, wraps the whole workflow in the per-job timeout and
// retries failed attempts with exponential backoff. Correctness does not
// depend on the worker count.
type Pool struct {
	store    *Store
	queue    *Queue
	engine   interfaces.WorkflowEngine
	sessions interfaces.SessionService
	notifier *events.Notifier
	config   common.JobsConfig
	logger   arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a worker pool. The sessions service may be nil when
// session persistence is disabled.
func NewPool(store *Store, queue *Queue, engine interfaces.WorkflowEngine, sessions interfaces.SessionService, notifier *events.Notifier, config common.JobsConfig, logger arbor.ILogger) *Pool {
	return &Pool{
		store:    store,
		queue:    queue,
		engine:   engine,
		sessions: sessions,
		notifier: notifier,
		config:   config,
		logger:   logger,
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) error {
	if p.ctx != nil {
		return fmt.Errorf("worker pool already started")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	count := p.config.WorkerCount
	if count < 1 {
		count = 1
	}

	p.logger.Info().
		Int("workers", count).
		Int("queue_size", p.config.QueueSize).
		Msg("Starting job workers")

	for i := 0; i < count; i++ {
		workerID := i
		p.wg.Add(1)
		common.SafeGo(p.logger, fmt.Sprintf("job-worker-%d", workerID), func() {
			defer p.wg.Done()
			p.run(workerID)
		})
	}
	return nil
}

// Stop cancels the workers and waits for them to exit. In-flight jobs are
// interrupted through their execution context.
func (p *Pool) Stop() error {
	if p.cancel == nil {
		return nil
	}
	p.logger.Info().Msg("Stopping job workers")
	p.cancel()
	p.wg.Wait()
	return nil
}

func (p *Pool) pollInterval() time.Duration {
	if d, err := time.ParseDuration(p.config.PollInterval); err == nil && d > 0 {
		return d
	}
	return time.Second
}

// run is the worker loop: dequeue with a short wait, process, repeat
func (p *Pool) run(workerID int) {
	poll := p.pollInterval()
	p.logger.Debug().
		Int("worker_id", workerID).
		Dur("poll_interval", poll).
		Msg("Worker started")

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return
		default:
		}

		jobID, ok := p.queue.Dequeue(p.ctx, poll)
		if !ok {
			continue
		}
		p.process(workerID, jobID)
	}
}

// process executes one job end to end
func (p *Pool) process(workerID int, jobID string) {
	job, err := p.store.Get(jobID)
	if err != nil {
		p.logger.Warn().
			Str("job_id", jobID).
			Int("worker_id", workerID).
			Msg("Dequeued job no longer in store")
		return
	}

	// Pre-exec cancel check: a job cancelled while queued never runs.
	if job.Status == models.JobStatusCancelled {
		p.logger.Debug().
			Str("job_id", jobID).
			Msg("Discarding cancelled job")
		return
	}
	if job.Status != models.JobStatusPending {
		p.logger.Warn().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Msg("Dequeued job is not pending")
		return
	}

	if err := p.store.MarkProcessing(jobID); err != nil {
		// Lost the race with a concurrent cancel.
		p.logger.Debug().
			Err(err).
			Str("job_id", jobID).
			Msg("Job not startable")
		return
	}
	p.notifier.JobStarted(p.ctx, job)

	timeout := time.Duration(job.EstimatedDurationS)*time.Second + p.config.TimeoutBuffer()
	runCtx, cancelRun := context.WithTimeout(p.ctx, timeout)
	defer cancelRun()
	p.store.RegisterCancel(jobID, cancelRun)
	defer p.store.ClearCancel(jobID)

	p.logger.Info().
		Str("job_id", jobID).
		Str("job_type", job.JobType).
		Int("worker_id", workerID).
		Dur("timeout", timeout).
		Msg("Processing job")

	maxAttempts := p.config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	startTime := time.Now()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if runCtx.Err() != nil {
			break
		}

		// Each attempt re-runs the workflow from scratch.
		state := models.NewWorkflowState(&job.Request, nil)
		tracker := NewTracker(p.store, p.notifier, p.logger, jobID, job.JobType, p.config.ProgressUpdateInterval())

		result, err := p.engine.Run(runCtx, state, tracker)
		if err == nil {
			p.complete(job, result, time.Since(startTime))
			return
		}
		lastErr = err

		if errors.Is(err, interfaces.ErrJobCancelled) || p.store.IsCancelled(jobID) {
			p.logger.Debug().
				Str("job_id", jobID).
				Int("attempt", attempt).
				Msg("Job cancelled during execution, result discarded")
			return
		}
		if errors.Is(err, context.DeadlineExceeded) || runCtx.Err() != nil {
			break
		}

		p.logger.Warn().
			Err(err).
			Str("job_id", jobID).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Msg("Workflow attempt failed")

		if attempt < maxAttempts {
			p.notifier.JobRetrying(p.ctx, job, attempt, err.Error())
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-runCtx.Done():
			}
		}
	}

	if p.store.IsCancelled(jobID) {
		return
	}
	if p.ctx.Err() != nil && runCtx.Err() != context.DeadlineExceeded {
		// Shutdown, not a job fault. Leave the job processing; the stale
		// sweep reclaims it if the process survives.
		p.logger.Debug().
			Str("job_id", jobID).
			Msg("Worker shutdown interrupted job")
		return
	}

	var errMsg string
	if runCtx.Err() == context.DeadlineExceeded || errors.Is(lastErr, context.DeadlineExceeded) {
		errMsg = fmt.Sprintf("Job timed out after %d seconds (max retries exceeded)", int(timeout.Seconds()))
	} else {
		errMsg = fmt.Sprintf("Job failed after %d retries: %s", maxAttempts, lastErr)
	}

	if err := p.store.Fail(jobID, errMsg); err != nil {
		p.logger.Debug().
			Err(err).
			Str("job_id", jobID).
			Msg("Failure not recorded")
		return
	}
	p.notifier.JobFailed(p.ctx, job, errMsg)
	p.logger.Error().
		Str("job_id", jobID).
		Str("job_type", job.JobType).
		Dur("duration", time.Since(startTime)).
		Msg(errMsg)
}

// complete finalizes a successful run: short responses are replaced with an
// apology, the result is written unless the job was cancelled meanwhile,
// and the exchange is appended to the session history.
func (p *Pool) complete(job *models.Job, result *models.JobResult, duration time.Duration) {
	if len(strings.TrimSpace(result.Response)) < emptyResponseThreshold {
		result.Response = emptyResponseApology
		result.Success = false
		if result.Metadata == nil {
			result.Metadata = make(map[string]interface{})
		}
		result.Metadata["empty_response"] = true
		p.logger.Warn().
			Str("job_id", job.ID).
			Msg("Workflow produced an empty response")
	}

	if err := p.store.Complete(job.ID, result); err != nil {
		p.logger.Debug().
			Err(err).
			Str("job_id", job.ID).
			Msg("Completion discarded")
		return
	}
	p.notifier.JobCompleted(p.ctx, job)

	p.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", job.JobType).
		Dur("duration", duration).
		Bool("success", result.Success).
		Msg("Job completed")

	if p.sessions != nil && job.SessionID != "" {
		turns := []models.ConversationTurn{
			{Role: "user", Content: job.Request.Message},
			{Role: "assistant", Content: result.Response},
		}
		if err := p.sessions.RecordExchange(p.ctx, job.SessionID, turns); err != nil {
			p.logger.Warn().
				Err(err).
				Str("job_id", job.ID).
				Str("session_id", job.SessionID).
				Msg("Failed to record session exchange")
		}
	}
}
