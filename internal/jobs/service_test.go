package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

type fakeSessions struct {
	mu       sync.Mutex
	history  map[string][]models.ConversationTurn
	recorded map[string][]models.ConversationTurn
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		history:  make(map[string][]models.ConversationTurn),
		recorded: make(map[string][]models.ConversationTurn),
	}
}

func (f *fakeSessions) History(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[sessionID], nil
}

func (f *fakeSessions) RecordExchange(ctx context.Context, sessionID string, turns []models.ConversationTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded[sessionID] = append(f.recorded[sessionID], turns...)
	return nil
}

func (f *fakeSessions) Delete(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.history, sessionID)
	return nil
}

func (f *fakeSessions) recordedTurns(sessionID string) []models.ConversationTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recorded[sessionID]
}

func TestSubmitRejectsMissingMessage(t *testing.T) {
	svc := newTestService(t, testJobsConfig(), staticEngine("ok"), nil)

	_, err := svc.Submit(context.Background(), &models.SubmitRequest{})
	assert.Error(t, err)
	assert.Equal(t, 0, svc.Stats().TotalJobs)
}

func TestSubmitRejectsUnknownJobType(t *testing.T) {
	svc := newTestService(t, testJobsConfig(), staticEngine("ok"), nil)

	_, err := svc.Submit(context.Background(), &models.SubmitRequest{
		Message: "do something",
		JobType: "espresso_machine",
	})
	assert.Error(t, err)
	assert.Equal(t, 0, svc.Stats().TotalJobs)
}

func TestSubmitAssignsEstimate(t *testing.T) {
	svc := newTestService(t, testJobsConfig(), staticEngine("ok"), nil)

	jobID, err := svc.Submit(context.Background(), &models.SubmitRequest{
		Message: "search for prior art",
		JobType: models.JobTypePriorArt,
	})
	require.NoError(t, err)

	view, err := svc.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, 240, view.EstimatedDurationS)
	assert.Equal(t, models.JobStatusPending, view.Status)

	// A typeless submission falls back to the default estimate.
	jobID, err = svc.Submit(context.Background(), &models.SubmitRequest{Message: "just chat"})
	require.NoError(t, err)
	view, err = svc.Status(jobID)
	require.NoError(t, err)
	assert.Equal(t, defaultEstimateSeconds, view.EstimatedDurationS)
}

func TestSubmitQueueFullLeavesNoRecord(t *testing.T) {
	config := testJobsConfig()
	config.QueueSize = 1
	svc := newTestService(t, config, staticEngine("ok"), nil)

	_, err := svc.Submit(context.Background(), &models.SubmitRequest{Message: "first"})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), &models.SubmitRequest{Message: "second"})
	assert.ErrorIs(t, err, interfaces.ErrQueueFull)
	assert.Equal(t, 1, svc.Stats().TotalJobs)
}

func TestResultGating(t *testing.T) {
	svc := newTestService(t, testJobsConfig(), staticEngine("ok"), nil)

	_, err := svc.Result("job_missing")
	assert.ErrorIs(t, err, interfaces.ErrJobNotFound)

	jobID, err := svc.Submit(context.Background(), &models.SubmitRequest{Message: "pending"})
	require.NoError(t, err)

	_, err = svc.Result(jobID)
	assert.ErrorIs(t, err, interfaces.ErrJobNotCompleted)

	require.NoError(t, svc.Store().MarkProcessing(jobID))
	require.NoError(t, svc.Store().Fail(jobID, "Workflow: boom"))

	_, err = svc.Result(jobID)
	assert.ErrorIs(t, err, interfaces.ErrJobNotCompleted)
}

func TestCancelUnknownJob(t *testing.T) {
	svc := newTestService(t, testJobsConfig(), staticEngine("ok"), nil)
	_, err := svc.Cancel("job_missing")
	assert.ErrorIs(t, err, interfaces.ErrJobNotFound)
}

func TestSubmitHydratesSessionHistory(t *testing.T) {
	sessions := newFakeSessions()
	sessions.history["sess_1"] = []models.ConversationTurn{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}

	engine := staticEngine("a full answer with enough length")
	svc := newTestService(t, testJobsConfig(), engine, sessions)
	startService(t, svc)

	jobID, err := svc.Submit(context.Background(), &models.SubmitRequest{
		Message:   "follow up",
		SessionID: "sess_1",
	})
	require.NoError(t, err)

	waitForStatus(t, svc, jobID, models.JobStatusCompleted)

	state := engine.lastState()
	require.NotNil(t, state)
	require.Len(t, state.ConversationHistory, 2)
	assert.Equal(t, "earlier question", state.ConversationHistory[0].Content)

	// The completed exchange lands back in the session.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sessions.recordedTurns("sess_1")) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	recorded := sessions.recordedTurns("sess_1")
	require.Len(t, recorded, 2)
	assert.Equal(t, "user", recorded[0].Role)
	assert.Equal(t, "follow up", recorded[0].Content)
	assert.Equal(t, "assistant", recorded[1].Role)
	assert.Equal(t, "a full answer with enough length", recorded[1].Content)
}

func TestSubmitKeepsExplicitHistory(t *testing.T) {
	sessions := newFakeSessions()
	sessions.history["sess_1"] = []models.ConversationTurn{
		{Role: "user", Content: "stored turn"},
	}

	engine := staticEngine("a full answer with enough length")
	svc := newTestService(t, testJobsConfig(), engine, sessions)
	startService(t, svc)

	jobID, err := svc.Submit(context.Background(), &models.SubmitRequest{
		Message:   "follow up",
		SessionID: "sess_1",
		ChatHistory: []models.ConversationTurn{
			{Role: "user", Content: "explicit turn"},
		},
	})
	require.NoError(t, err)

	waitForStatus(t, svc, jobID, models.JobStatusCompleted)

	state := engine.lastState()
	require.NotNil(t, state)
	require.Len(t, state.ConversationHistory, 1)
	assert.Equal(t, "explicit turn", state.ConversationHistory[0].Content)
}
