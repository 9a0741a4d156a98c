package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// Store is the single authority over job records. All mutations run under
// one lock and go through validated lifecycle transitions; readers receive
// deep copies, never aliases. The lock is never held across I/O.
type Store struct {
	mu          sync.RWMutex
	jobs        map[string]*models.Job
	cancels     map[string]func()
	config      common.JobsConfig
	logger      arbor.ILogger
	lastCleanup time.Time
}

// NewStore creates an empty job store
func NewStore(config common.JobsConfig, logger arbor.ILogger) *Store {
	return &Store{
		jobs:    make(map[string]*models.Job),
		cancels: make(map[string]func()),
		config:  config,
		logger:  logger,
	}
}

// Put inserts a new pending job. Insertion triggers an opportunistic
// eviction pass when the last one is older than the cleanup interval.
func (s *Store) Put(job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	if time.Since(s.lastCleanup) >= s.config.CleanupInterval() {
		s.evictLocked(time.Now())
	}

	s.jobs[job.ID] = job.Clone()
	return nil
}

// Remove deletes a job record outright. Used to undo a submission whose
// enqueue was rejected; maintenance eviction goes through EvictExpired.
func (s *Store) Remove(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	delete(s.cancels, jobID)
}

// Get returns a deep copy of the job
func (s *Store) Get(jobID string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, interfaces.ErrJobNotFound
	}
	return job.Clone(), nil
}

// View returns the polling snapshot of the job
func (s *Store) View(jobID string) (*models.JobView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, interfaces.ErrJobNotFound
	}
	view := job.View()
	return &view, nil
}

// MarkProcessing moves a pending job onto the processing edge and zeroes
// its progress. Fails when the job is gone or the edge is not legal, which
// happens when the job was cancelled while queued.
func (s *Store) MarkProcessing(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return interfaces.ErrJobNotFound
	}
	if !job.Status.CanTransitionTo(models.JobStatusProcessing) {
		return fmt.Errorf("job %s is %s, cannot start processing", jobID, job.Status)
	}
	job.MarkProcessing()
	job.Progress = 0
	return nil
}

// Complete finalizes a processing job with its result. A job cancelled
// mid-flight rejects the write; the worker discards the result.
func (s *Store) Complete(jobID string, result *models.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return interfaces.ErrJobNotFound
	}
	if job.Status == models.JobStatusCancelled {
		return interfaces.ErrJobCancelled
	}
	if !job.Status.CanTransitionTo(models.JobStatusCompleted) {
		return fmt.Errorf("job %s is %s, cannot complete", jobID, job.Status)
	}
	job.MarkCompleted(result)
	delete(s.cancels, jobID)
	return nil
}

// Fail finalizes a processing job with an error message
func (s *Store) Fail(jobID string, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return interfaces.ErrJobNotFound
	}
	if job.Status == models.JobStatusCancelled {
		return interfaces.ErrJobCancelled
	}
	if !job.Status.CanTransitionTo(models.JobStatusFailed) {
		return fmt.Errorf("job %s is %s, cannot fail", jobID, job.Status)
	}
	job.MarkFailed(errorMsg)
	delete(s.cancels, jobID)
	return nil
}

// Cancel flips a non-terminal job to cancelled and fires the registered
// cancellation hook so an in-flight execution is interrupted. Returns
// (true, nil) when the job was flipped, (false, nil) when it was already
// terminal, and ErrJobNotFound when the ID does not resolve. Idempotent.
func (s *Store) Cancel(jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, interfaces.ErrJobNotFound
	}
	if job.IsTerminal() {
		return false, nil
	}
	job.MarkCancelled()

	if cancel, ok := s.cancels[jobID]; ok {
		delete(s.cancels, jobID)
		// The hook is a context cancel func: O(1), safe under the lock.
		cancel()
	}
	return true, nil
}

// IsCancelled reports whether the job was cancelled. Missing jobs read as
// cancelled so a worker holding a stale ID stops work.
func (s *Store) IsCancelled(jobID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return true
	}
	return job.Status == models.JobStatusCancelled
}

// SetProgress writes throttled progress for a processing job. Values are
// clamped to [0,99]; 100 is owned by Complete. Writes regress nothing:
// a lower value than the current one is dropped. Cancelled jobs reject the
// write with ErrJobCancelled so the caller aborts.
func (s *Store) SetProgress(jobID string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return interfaces.ErrJobNotFound
	}
	if job.Status == models.JobStatusCancelled {
		return interfaces.ErrJobCancelled
	}
	if job.IsTerminal() {
		return fmt.Errorf("job %s is %s, progress is frozen", jobID, job.Status)
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 99 {
		progress = 99
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	return nil
}

// RegisterCancel installs the hook that interrupts the job's execution
// context. The worker installs it when execution starts and clears it when
// execution ends.
func (s *Store) RegisterCancel(jobID string, cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status == models.JobStatusCancelled {
		// Already cancelled: fire immediately so the caller's context dies
		// before any work happens.
		cancel()
		return
	}
	s.cancels[jobID] = cancel
}

// ClearCancel removes the cancellation hook after execution ends
func (s *Store) ClearCancel(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, jobID)
}

// Stats summarizes the store for the stats endpoint
func (s *Store) Stats() *models.JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return &models.JobStats{
		TotalJobs:     len(s.jobs),
		StatusCounts:  counts,
		MaxJobs:       s.config.MaxJobs,
		JobTTLSeconds: s.config.JobTTLSeconds,
		LastCleanup:   s.lastCleanup,
	}
}

// List returns job views newest first. A zero limit means all; an empty
// status matches any.
func (s *Store) List(limit int, status models.JobStatus) []models.JobView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]models.JobView, 0, len(s.jobs))
	for _, job := range s.jobs {
		if status != "" && job.Status != status {
			continue
		}
		views = append(views, job.View())
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	return views
}

// EvictExpired runs a full eviction pass and returns the number of jobs
// removed. Driven by the maintenance scheduler; Put also triggers it
// opportunistically.
func (s *Store) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictLocked(time.Now())
}

// evictLocked applies the retention rules. Only terminal jobs are ever
// removed: first by the terminal TTL, then by the overall job TTL, then
// oldest-first until the store fits under the capacity cap. A live job
// survives every rule regardless of age.
func (s *Store) evictLocked(now time.Time) int {
	evicted := 0

	for id, job := range s.jobs {
		if !job.IsTerminal() {
			continue
		}
		age := job.Age(now)
		terminalAge := age
		if job.CompletedAt != nil {
			terminalAge = now.Sub(*job.CompletedAt)
		}
		if terminalAge >= s.config.TerminalJobTTL() || age >= s.config.JobTTL() {
			delete(s.jobs, id)
			delete(s.cancels, id)
			evicted++
		}
	}

	if s.config.MaxJobs > 0 && len(s.jobs) > s.config.MaxJobs {
		terminal := make([]*models.Job, 0, len(s.jobs))
		for _, job := range s.jobs {
			if job.IsTerminal() {
				terminal = append(terminal, job)
			}
		}
		sort.Slice(terminal, func(i, j int) bool {
			return terminal[i].CreatedAt.Before(terminal[j].CreatedAt)
		})
		for _, job := range terminal {
			if len(s.jobs) <= s.config.MaxJobs {
				break
			}
			delete(s.jobs, job.ID)
			delete(s.cancels, job.ID)
			evicted++
		}
	}

	s.lastCleanup = now

	if evicted > 0 {
		s.logger.Debug().
			Int("evicted", evicted).
			Int("remaining", len(s.jobs)).
			Msg("Evicted expired jobs")
	}
	return evicted
}

// FailStale fails processing jobs whose execution deadline passed more than
// grace ago. These jobs lost their worker and would otherwise sit processing
// forever; pending and terminal jobs are never touched.
func (s *Store) FailStale(grace time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var failed []string
	for id, job := range s.jobs {
		if job.Status != models.JobStatusProcessing || job.StartedAt == nil {
			continue
		}
		deadline := job.StartedAt.Add(
			time.Duration(job.EstimatedDurationS)*time.Second +
				s.config.TimeoutBuffer() + grace)
		if now.After(deadline) {
			job.MarkFailed("Timeout: job abandoned after its deadline")
			delete(s.cancels, id)
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		s.logger.Warn().
			Int("count", len(failed)).
			Msg("Failed stale processing jobs")
	}
	return failed
}
