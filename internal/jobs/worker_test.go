package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
	"github.com/ternarybob/assero/internal/services/events"
)

type fakeEngine struct {
	mu     sync.Mutex
	calls  int
	states []*models.WorkflowState
	run    func(ctx context.Context, state *models.WorkflowState, progress interfaces.ProgressReporter) (*models.JobResult, error)
}

func (f *fakeEngine) Run(ctx context.Context, state *models.WorkflowState, progress interfaces.ProgressReporter) (*models.JobResult, error) {
	f.mu.Lock()
	f.calls++
	f.states = append(f.states, state)
	f.mu.Unlock()
	return f.run(ctx, state, progress)
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeEngine) lastState() *models.WorkflowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return nil
	}
	return f.states[len(f.states)-1]
}

func staticEngine(response string) *fakeEngine {
	return &fakeEngine{
		run: func(ctx context.Context, state *models.WorkflowState, progress interfaces.ProgressReporter) (*models.JobResult, error) {
			return &models.JobResult{Response: response, Success: true}, nil
		},
	}
}

func newTestService(t *testing.T, config common.JobsConfig, engine interfaces.WorkflowEngine, sessions interfaces.SessionService) *Service {
	t.Helper()
	return NewService(config, engine, sessions, events.NewNotifier(nil), arbor.NewLogger())
}

func startService(t *testing.T, svc *Service) {
	t.Helper()
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop() })
}

func waitForStatus(t *testing.T, svc *Service, jobID string, status models.JobStatus) *models.JobView {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		view, err := svc.Status(jobID)
		require.NoError(t, err)
		if view.Status == status {
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, status)
	return nil
}

func TestWorkerCompletesJob(t *testing.T) {
	engine := staticEngine("Here are your search results.")
	svc := newTestService(t, testJobsConfig(), engine, nil)
	startService(t, svc)

	jobID, err := svc.Submit(context.Background(), &models.SubmitRequest{
		Message: "find prior art",
		JobType: models.JobTypeGeneralChat,
	})
	require.NoError(t, err)

	view := waitForStatus(t, svc, jobID, models.JobStatusCompleted)
	assert.Equal(t, 100, view.Progress)
	assert.NotNil(t, view.StartedAt)
	assert.NotNil(t, view.CompletedAt)

	result, err := svc.Result(jobID)
	require.NoError(t, err)
	assert.Equal(t, "Here are your search results.", result.Response)
	assert.True(t, result.Success)
	assert.Equal(t, 1, engine.callCount())
}

func TestWorkerReplacesEmptyResponse(t *testing.T) {
	engine := staticEngine("  hi ")
	svc := newTestService(t, testJobsConfig(), engine, nil)
	startService(t, svc)

	jobID, err := svc.Submit(context.Background(), &models.SubmitRequest{Message: "say something"})
	require.NoError(t, err)

	waitForStatus(t, svc, jobID, models.JobStatusCompleted)

	result, err := svc.Result(jobID)
	require.NoError(t, err)
	assert.Equal(t, emptyResponseApology, result.Response)
	assert.False(t, result.Success)
	assert.Equal(t, true, result.Metadata["empty_response"])
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	var calls int
	var mu sync.Mutex
	engine := &fakeEngine{
		run: func(ctx context.Context, state *models.WorkflowState, progress interfaces.ProgressReporter) (*models.JobResult, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				return nil, errors.New("transient upstream failure")
			}
			return &models.JobResult{Response: "recovered on the second attempt", Success: true}, nil
		},
	}
	svc := newTestService(t, testJobsConfig(), engine, nil)
	startService(t, svc)

	jobID, err := svc.Submit(context.Background(), &models.SubmitRequest{Message: "flaky"})
	require.NoError(t, err)

	waitForStatus(t, svc, jobID, models.JobStatusCompleted)
	assert.Equal(t, 2, engine.callCount())
}

func TestWorkerFailsAfterMaxAttempts(t *testing.T) {
	engine := &fakeEngine{
		run: func(ctx context.Context, state *models.WorkflowState, progress interfaces.ProgressReporter) (*models.JobResult, error) {
			return nil, errors.New("boom")
		},
	}
	svc := newTestService(t, testJobsConfig(), engine, nil)
	startService(t, svc)

	jobID, err := svc.Submit(context.Background(), &models.SubmitRequest{Message: "doomed"})
	require.NoError(t, err)

	view := waitForStatus(t, svc, jobID, models.JobStatusFailed)
	assert.Equal(t, "Job failed after 3 retries: boom", view.Error)
	assert.Equal(t, 3, engine.callCount())

	_, err = svc.Result(jobID)
	assert.ErrorIs(t, err, interfaces.ErrJobNotCompleted)
}

func TestWorkerTimesOut(t *testing.T) {
	config := testJobsConfig()
	config.TimeoutBufferSeconds = 0
	config.Estimates = map[string]int{models.JobTypeGeneralChat: 1}

	engine := &fakeEngine{
		run: func(ctx context.Context, state *models.WorkflowState, progress interfaces.ProgressReporter) (*models.JobResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc := newTestService(t, config, engine, nil)
	startService(t, svc)

	jobID, err := svc.Submit(context.Background(), &models.SubmitRequest{
		Message: "slow",
		JobType: models.JobTypeGeneralChat,
	})
	require.NoError(t, err)

	view := waitForStatus(t, svc, jobID, models.JobStatusFailed)
	assert.Equal(t, "Job timed out after 1 seconds (max retries exceeded)", view.Error)
}

func TestWorkerSkipsJobCancelledWhileQueued(t *testing.T) {
	engine := staticEngine("should never run")
	svc := newTestService(t, testJobsConfig(), engine, nil)

	// Submit before the workers start so the cancel lands first.
	jobID, err := svc.Submit(context.Background(), &models.SubmitRequest{Message: "cancel me"})
	require.NoError(t, err)

	flipped, err := svc.Cancel(jobID)
	require.NoError(t, err)
	require.True(t, flipped)

	startService(t, svc)
	time.Sleep(100 * time.Millisecond)

	view, err := svc.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, view.Status)
	assert.Nil(t, view.StartedAt)
	assert.Equal(t, 0, engine.callCount())
}

func TestWorkerDiscardsResultOfCancelledJob(t *testing.T) {
	started := make(chan struct{})
	engine := &fakeEngine{
		run: func(ctx context.Context, state *models.WorkflowState, progress interfaces.ProgressReporter) (*models.JobResult, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc := newTestService(t, testJobsConfig(), engine, nil)
	startService(t, svc)

	jobID, err := svc.Submit(context.Background(), &models.SubmitRequest{Message: "long running"})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("engine never started")
	}

	flipped, err := svc.Cancel(jobID)
	require.NoError(t, err)
	require.True(t, flipped)

	view := waitForStatus(t, svc, jobID, models.JobStatusCancelled)
	assert.Empty(t, view.Error)

	_, err = svc.Result(jobID)
	assert.ErrorIs(t, err, interfaces.ErrJobNotCompleted)
}
