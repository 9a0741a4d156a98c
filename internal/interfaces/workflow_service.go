package interfaces

import (
	"context"

	"github.com/ternarybob/assero/internal/models"
)

// ProgressReporter receives step-scoped progress from the workflow executor
// and owns throttling, window mapping and cancellation consultation. Writes
// never block the executor.
type ProgressReporter interface {
	// BeginStep scopes subsequent updates to step k of n (both 1-based).
	// Progress for the step maps into [100*(k-1)/n, 100*k/n).
	BeginStep(step, total int)

	// Update reports progress within the current step (0..100). Returns
	// ErrJobCancelled when the owning job was cancelled, signalling the
	// executor to abort; the write is suppressed in that case.
	Update(innerPct int, message string) error

	// Cancelled reports whether the owning job was cancelled
	Cancelled() bool
}

// WorkflowEngine runs the classify, plan, execute, assemble pipeline for
// one job. Classification and planning never fail (they fall back to
// deterministic paths) and tool errors are absorbed into the assembled
// response, so a returned error means an unhandled fault and the attempt
// is retried by the worker.
type WorkflowEngine interface {
	Run(ctx context.Context, state *models.WorkflowState, progress ProgressReporter) (*models.JobResult, error)
}
