// Package scheduler runs background maintenance on a cron schedule. Each
// sweep evicts expired terminal jobs and fails processing jobs that lost
// their worker.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/interfaces"
)

const defaultSchedule = "*/5 * * * *"

// Service drives job store maintenance from a cron schedule
type Service struct {
	maintainer interfaces.JobMaintainer
	events     interfaces.EventService
	config     *common.SchedulerConfig
	cron       *cron.Cron
	logger     arbor.ILogger

	mu           sync.Mutex
	running      bool
	isProcessing bool
}

// NewService creates a new maintenance scheduler
func NewService(maintainer interfaces.JobMaintainer, events interfaces.EventService, config *common.SchedulerConfig, logger arbor.ILogger) *Service {
	return &Service{
		maintainer: maintainer,
		events:     events,
		config:     config,
		cron:       cron.New(),
		logger:     logger,
	}
}

// Start schedules the maintenance sweep. A disabled scheduler starts as a
// no-op so callers do not need to special-case configuration.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if !s.config.Enabled {
		s.logger.Info().Msg("Maintenance scheduler disabled")
		return nil
	}

	schedule := s.config.MaintenanceSchedule
	if schedule == "" {
		schedule = defaultSchedule
	}

	if _, err := s.cron.AddFunc(schedule, s.RunMaintenance); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", schedule).
		Int("stale_grace_seconds", s.config.StaleGraceSeconds).
		Msg("Maintenance scheduler started")

	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info().Msg("Maintenance scheduler stopped")
}

// RunMaintenance executes one maintenance sweep. Exported so a sweep can be
// triggered outside the schedule. Overlapping runs are skipped rather than
// queued.
func (s *Service) RunMaintenance() {
	s.mu.Lock()
	if s.isProcessing {
		s.mu.Unlock()
		s.logger.Warn().Msg("Skipping maintenance run, previous run still in progress")
		return
	}
	s.isProcessing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isProcessing = false
		s.mu.Unlock()
	}()

	started := time.Now()

	evicted := s.maintainer.EvictExpired()
	staleIDs := s.maintainer.FailStale(s.config.StaleGrace())

	if s.events != nil {
		_ = s.events.Publish(context.Background(), interfaces.Event{
			Type: interfaces.EventMaintenance,
			Payload: map[string]interface{}{
				"evicted":      evicted,
				"stale_failed": len(staleIDs),
				"duration_ms":  time.Since(started).Milliseconds(),
			},
		})
	}

	logEvent := s.logger.Debug()
	if evicted > 0 || len(staleIDs) > 0 {
		logEvent = s.logger.Info()
	}
	logEvent.
		Int("evicted", evicted).
		Int("stale_failed", len(staleIDs)).
		Strs("stale_job_ids", staleIDs).
		Dur("duration", time.Since(started)).
		Msg("Maintenance completed")
}
