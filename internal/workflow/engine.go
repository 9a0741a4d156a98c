package workflow

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// Engine is the classify, plan, execute, assemble pipeline for one job.
// Classification and planning always succeed through their fallbacks and
// tool failures are absorbed into the assembled response, so a returned
// error means cancellation or a context fault and the worker retries or
// discards the attempt.
type Engine struct {
	classifier *Classifier
	planner    *Planner
	executor   *Executor
	assembler  *Assembler
	registry   interfaces.ToolRegistry
	logger     arbor.ILogger
}

// NewEngine wires the pipeline. A nil LLM service degrades classification
// and planning to their deterministic fallbacks.
func NewEngine(llm interfaces.LLMService, registry interfaces.ToolRegistry, logger arbor.ILogger) *Engine {
	return &Engine{
		classifier: NewClassifier(llm, logger),
		planner:    NewPlanner(llm, logger),
		executor:   NewExecutor(registry, logger),
		assembler:  NewAssembler(),
		registry:   registry,
		logger:     logger,
	}
}

// Run executes the pipeline against the state and returns the assembled
// result
func (e *Engine) Run(ctx context.Context, state *models.WorkflowState, progress interfaces.ProgressReporter) (*models.JobResult, error) {
	if progress.Cancelled() {
		return nil, interfaces.ErrJobCancelled
	}
	if state.AvailableTools == nil {
		state.AvailableTools = e.registry.Descriptors()
	}
	if state.StepResults == nil {
		state.StepResults = make(map[int]*models.StepResult)
	}

	classification := e.classifier.Classify(ctx, state)
	state.IntentType = classification.WorkflowType

	plan := e.planner.Plan(ctx, state, classification)
	state.Plan = plan.Steps

	e.logger.Info().
		Str("intent", string(state.IntentType)).
		Str("classified_by", string(classification.Source)).
		Str("planned_by", string(plan.Source)).
		Int("steps", len(state.Plan)).
		Msg("Workflow planned")

	if err := e.executor.Execute(ctx, state, progress); err != nil {
		return nil, err
	}

	state.FinalResponse = e.assembler.Assemble(state)

	metadata := map[string]interface{}{
		"workflow_type": string(state.IntentType),
		"classified_by": string(classification.Source),
		"planned_by":    string(plan.Source),
		"steps_total":   len(state.Plan),
		"steps_done":    e.countStatus(state, models.StepStatusDone),
	}
	if failed, ok := state.FailedStep(); ok {
		metadata["failed_step"] = failed.Step
		metadata["failed_tool"] = failed.Tool
	}

	return &models.JobResult{
		Response: state.FinalResponse,
		Success:  true,
		Metadata: metadata,
	}, nil
}

func (e *Engine) countStatus(state *models.WorkflowState, status models.StepStatus) int {
	count := 0
	for _, result := range state.StepResults {
		if result.Status == status {
			count++
		}
	}
	return count
}
