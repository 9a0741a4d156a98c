package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// Executor runs a plan strictly in order. Parameter values of the exact
// shape "{key}" are substituted from earlier step outputs or the well-known
// state fields before each call; a failed step stops the plan; cancellation
// is honored before the first step, between steps and before progress
// writes.
type Executor struct {
	registry interfaces.ToolRegistry
	logger   arbor.ILogger
}

// NewExecutor creates an executor over the given tool registry
func NewExecutor(registry interfaces.ToolRegistry, logger arbor.ILogger) *Executor {
	return &Executor{registry: registry, logger: logger}
}

// Execute runs every step of the state's plan. Tool-level failures are
// recorded in step_results and end the plan without error; a returned error
// means cancellation or a context fault and the attempt aborts.
func (e *Executor) Execute(ctx context.Context, state *models.WorkflowState, progress interfaces.ProgressReporter) error {
	total := len(state.Plan)
	if total == 0 {
		return nil
	}

	for i := range state.Plan {
		step := &state.Plan[i]

		if progress.Cancelled() {
			e.skipFrom(state, i)
			return interfaces.ErrJobCancelled
		}

		progress.BeginStep(i+1, total)
		if err := progress.Update(0, fmt.Sprintf("Running %s (step %d of %d)", step.Tool, i+1, total)); err != nil {
			e.skipFrom(state, i)
			return err
		}

		params := substituteParameters(step.Parameters, state)

		e.logger.Debug().
			Str("tool", step.Tool).
			Int("step", step.Step).
			Int("total", total).
			Msg("Executing step")

		started := time.Now()
		result, err := e.registry.Execute(ctx, step.Tool, params)
		duration := time.Since(started)

		// A result that lands after cancellation is discarded, never
		// recorded.
		if progress.Cancelled() {
			e.skipFrom(state, i)
			return interfaces.ErrJobCancelled
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			state.StepResults[step.Step] = &models.StepResult{
				Step:       step.Step,
				Tool:       step.Tool,
				OutputKey:  step.OutputKey,
				Status:     models.StepStatusFailed,
				Error:      err.Error(),
				DurationMs: duration.Milliseconds(),
			}
			state.CurrentStep = step.Step

			e.logger.Warn().
				Err(err).
				Str("tool", step.Tool).
				Int("step", step.Step).
				Dur("duration", duration).
				Msg("Step failed, stopping plan")
			return nil
		}

		state.StepResults[step.Step] = &models.StepResult{
			Step:       step.Step,
			Tool:       step.Tool,
			OutputKey:  step.OutputKey,
			Status:     models.StepStatusDone,
			Content:    result.Content,
			Metadata:   result.Metadata,
			DurationMs: duration.Milliseconds(),
		}
		state.CurrentStep = step.Step

		e.logger.Debug().
			Str("tool", step.Tool).
			Int("step", step.Step).
			Dur("duration", duration).
			Msg("Step completed")

		if err := progress.Update(100, fmt.Sprintf("Finished %s (step %d of %d)", step.Tool, i+1, total)); err != nil {
			e.skipFrom(state, i+1)
			return err
		}
	}

	return nil
}

// skipFrom marks every step from index onward that has no result yet as
// skipped by cancellation.
func (e *Executor) skipFrom(state *models.WorkflowState, index int) {
	for i := index; i < len(state.Plan); i++ {
		step := &state.Plan[i]
		if _, ok := state.StepResults[step.Step]; ok {
			continue
		}
		state.StepResults[step.Step] = &models.StepResult{
			Step:      step.Step,
			Tool:      step.Tool,
			OutputKey: step.OutputKey,
			Status:    models.StepStatusSkipped,
		}
	}
}

// substituteParameters resolves context references in the step parameters.
// Only string values of the exact shape "{key}" are candidates; everything
// else passes through verbatim.
func substituteParameters(params map[string]interface{}, state *models.WorkflowState) map[string]interface{} {
	resolved := make(map[string]interface{}, len(params))
	for name, value := range params {
		if s, ok := value.(string); ok {
			resolved[name] = resolveValue(s, state)
			continue
		}
		resolved[name] = value
	}
	return resolved
}

// resolveValue substitutes a whole-string "{key}" reference: an earlier
// step's output key yields that step's content (or stringified error), the
// well-known keys yield the matching state field, and anything else leaves
// the literal untouched. Substitution is single-level; results are never
// re-scanned.
func resolveValue(value string, state *models.WorkflowState) string {
	if len(value) <= 2 || !strings.HasPrefix(value, "{") || !strings.HasSuffix(value, "}") {
		return value
	}
	key := value[1 : len(value)-1]

	if result, ok := state.ResultByOutputKey(key); ok {
		return result.Output()
	}

	switch key {
	case "document_content":
		return state.DocumentContent
	case "conversation_history":
		return state.HistoryText()
	}

	return value
}
