package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// JobStatus represents the lifecycle state of an orchestrator job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the status is a final state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Valid reports whether the status is one of the defined lifecycle states
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle graph allows moving from s to next.
// Allowed edges: pending→processing, pending→cancelled, processing→completed,
// processing→failed, processing→cancelled. Terminal states have no outgoing edges.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusCancelled
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCancelled
	}
	return false
}

// Job type tags. The tag selects the workflow path and the duration estimate
// used to derive the per-job timeout.
const (
	JobTypePriorArt      = "prior_art"
	JobTypeClaimDrafting = "claim_drafting"
	JobTypeClaimAnalysis = "claim_analysis"
	JobTypeWebSearch     = "web_search"
	JobTypeGeneralChat   = "general_chat"
)

// KnownJobTypes lists the job type tags accepted at submission
var KnownJobTypes = []string{
	JobTypePriorArt,
	JobTypeClaimDrafting,
	JobTypeClaimAnalysis,
	JobTypeWebSearch,
	JobTypeGeneralChat,
}

// SubmitRequest is the submission payload from the editor client
type SubmitRequest struct {
	Message         string             `json:"message" validate:"required,min=1"`
	DocumentContent string             `json:"document_content,omitempty"`
	ChatHistory     []ConversationTurn `json:"chat_history,omitempty"`
	JobType         string             `json:"job_type,omitempty" validate:"omitempty,oneof=prior_art claim_drafting claim_analysis web_search general_chat"`
	SessionID       string             `json:"session_id,omitempty"`
}

// Validate checks the submission against its constraints. Malformed
// submissions are rejected synchronously and never create a job.
func (r *SubmitRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid submission: %w", err)
	}
	return nil
}

// ConversationTurn is a single entry of conversation history
type ConversationTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// JobResult is the assembled outcome of a completed job
type JobResult struct {
	// Response is the final markdown returned to the client
	Response string `json:"response"`
	// Success is false when the workflow produced trivially short content
	// and the response was replaced with an apology. The job still
	// completes: empty content is a quality fault, not a lifecycle failure.
	Success  bool                   `json:"success"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Job is the central record owned by the job store. References handed to
// clients are immutable snapshots (JobView); the store is the only writer.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	JobType   string    `json:"job_type"`
	Progress  int       `json:"progress"` // 0..100
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is set exactly once, on the pending→processing edge.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is the single completion timestamp for every terminal
	// status (completed, failed, cancelled).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// EstimatedDurationS is looked up from the job type estimate table at
	// submission; the worker derives the overall timeout from it.
	EstimatedDurationS int           `json:"estimated_duration_s"`
	SessionID          string        `json:"session_id,omitempty"`
	Request            SubmitRequest `json:"request"`
	Result             *JobResult    `json:"result,omitempty"`
	// Error contains a concise description of why the job failed.
	// Format: "Category: Brief description". Only populated on failed jobs.
	Error string `json:"error,omitempty"`
}

// IsTerminal reports whether the job reached a final state
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Age returns how long ago the job was submitted
func (j *Job) Age(now time.Time) time.Duration {
	return now.Sub(j.CreatedAt)
}

// MarkProcessing transitions the job onto the pending→processing edge.
// StartedAt is written only on the first transition.
func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	if j.StartedAt == nil {
		now := time.Now()
		j.StartedAt = &now
	}
}

// MarkCompleted finalizes the job with its assembled result
func (j *Job) MarkCompleted(result *JobResult) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.Progress = 100
	j.Result = result
	j.Error = ""
}

// MarkFailed finalizes the job with an error message
func (j *Job) MarkFailed(errorMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = errorMsg
	j.Result = nil
}

// MarkCancelled finalizes the job, leaving progress at its last value
func (j *Job) MarkCancelled() {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
}

// Clone returns a deep copy of the job. Snapshots handed out by the store
// must not alias the store's own record.
func (j *Job) Clone() *Job {
	clone := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		clone.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		clone.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		if j.Result.Metadata != nil {
			r.Metadata = make(map[string]interface{}, len(j.Result.Metadata))
			for k, v := range j.Result.Metadata {
				r.Metadata[k] = v
			}
		}
		clone.Result = &r
	}
	if j.Request.ChatHistory != nil {
		clone.Request.ChatHistory = make([]ConversationTurn, len(j.Request.ChatHistory))
		copy(clone.Request.ChatHistory, j.Request.ChatHistory)
	}
	return &clone
}

// View builds the immutable polling snapshot for clients
func (j *Job) View() JobView {
	view := JobView{
		JobID:              j.ID,
		Status:             j.Status,
		JobType:            j.JobType,
		Progress:           j.Progress,
		CreatedAt:          j.CreatedAt,
		EstimatedDurationS: j.EstimatedDurationS,
		SessionID:          j.SessionID,
		Error:              j.Error,
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		view.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		view.CompletedAt = &t
	}
	return view
}

// JobView is the immutable subset of job fields exposed to polling clients
type JobView struct {
	JobID              string     `json:"job_id"`
	Status             JobStatus  `json:"status"`
	JobType            string     `json:"job_type"`
	Progress           int        `json:"progress"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	EstimatedDurationS int        `json:"estimated_duration_s"`
	SessionID          string     `json:"session_id,omitempty"`
	Error              string     `json:"error,omitempty"`
}

// JobStats summarizes the job store for the stats endpoint
type JobStats struct {
	TotalJobs     int               `json:"total_jobs"`
	StatusCounts  map[JobStatus]int `json:"status_counts"`
	MaxJobs       int               `json:"max_jobs"`
	JobTTLSeconds int               `json:"job_ttl_seconds"`
	LastCleanup   time.Time         `json:"last_cleanup"`
}
