package jobs

import (
	"context"
	"time"

	"github.com/ternarybob/assero/internal/interfaces"
)

// Queue is the bounded FIFO of submitted job IDs between the submission
// path and the worker pool. Enqueue never blocks: a full queue rejects the
// submission synchronously.
type Queue struct {
	ch chan string
}

// NewQueue creates a queue with the given capacity
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan string, size)}
}

// Enqueue appends a job ID, returning ErrQueueFull when at capacity
func (q *Queue) Enqueue(jobID string) error {
	select {
	case q.ch <- jobID:
		return nil
	default:
		return interfaces.ErrQueueFull
	}
}

// Dequeue waits up to wait for the next job ID. Returns ok=false on an
// idle timeout or when the context is done.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (string, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case jobID := <-q.ch:
		return jobID, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

// Len returns the number of queued job IDs
func (q *Queue) Len() int {
	return len(q.ch)
}
