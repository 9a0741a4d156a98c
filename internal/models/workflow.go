package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// IntentType routes a user request to one of the workflow shapes
type IntentType string

// IntentType constants
const (
	IntentConversation IntentType = "conversation" // Plain chat, no tool calls
	IntentSingleTool   IntentType = "single_tool"  // One tool invocation
	IntentMultiStep    IntentType = "multi_step"   // Ordered multi-tool plan
)

// IsValid checks if the IntentType is a known, valid type
func (i IntentType) IsValid() bool {
	switch i {
	case IntentConversation, IntentSingleTool, IntentMultiStep:
		return true
	}
	return false
}

// String returns the string representation of the IntentType
func (i IntentType) String() string {
	return string(i)
}

// ClassificationSource records which path produced a classification
type ClassificationSource string

const (
	ClassificationSourceLLM     ClassificationSource = "llm"
	ClassificationSourceKeyword ClassificationSource = "keyword"
)

// Classification is the intent classifier's output: the workflow tag plus,
// for non-conversation intents, a tentative tool and parameter guess.
type Classification struct {
	WorkflowType IntentType             `json:"workflow_type"`
	Intent       string                 `json:"intent"`
	Tools        []string               `json:"tools,omitempty"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	Source       ClassificationSource   `json:"source"`
}

// PlanSource records which path produced a workflow plan
type PlanSource string

const (
	PlanSourceLLM       PlanSource = "llm"
	PlanSourceHeuristic PlanSource = "heuristic"
)

// Step is a single planned tool invocation. Parameter values may be literal
// or a whole-string reference of the exact shape "{key}" resolved against
// earlier output keys and the well-known state keys at execution time.
type Step struct {
	Step       int                    `json:"step" yaml:"step" validate:"required,min=1"`
	Tool       string                 `json:"tool" yaml:"tool" validate:"required"`
	Parameters map[string]interface{} `json:"parameters" yaml:"parameters"`
	DependsOn  []int                  `json:"depends_on,omitempty" yaml:"depends_on,omitempty"` // Informational; execution is strictly sequential
	OutputKey  string                 `json:"output_key" yaml:"output_key" validate:"required"`
}

// Validate checks the step carries every required field
func (s *Step) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid step: %w", err)
	}
	return nil
}

// Plan is an ordered sequence of steps. Empty for conversation intents.
type Plan struct {
	Steps  []Step     `json:"steps"`
	Source PlanSource `json:"source"`
}

// Validate checks every step and that tools resolve against the catalog.
// A single bad step rejects the whole plan.
func (p *Plan) Validate(available []ToolDescriptor) error {
	known := make(map[string]bool, len(available))
	for _, d := range available {
		known[d.Name] = true
	}
	for i := range p.Steps {
		step := &p.Steps[i]
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if !known[step.Tool] {
			return fmt.Errorf("step %d references unknown tool %q", i+1, step.Tool)
		}
	}
	return nil
}

// StepStatus tracks a single step through execution
type StepStatus string

const (
	StepStatusReady   StepStatus = "ready"
	StepStatusRunning StepStatus = "running"
	StepStatusDone    StepStatus = "done"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped" // Job cancelled before the step ran
)

// StepResult records the outcome of one executed step
type StepResult struct {
	Step       int                    `json:"step"`
	Tool       string                 `json:"tool"`
	OutputKey  string                 `json:"output_key"`
	Status     StepStatus             `json:"status"`
	Content    string                 `json:"content,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Error      string                 `json:"error,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

// Output returns the text substituted for this step's output key: the tool
// content on success, the stringified error otherwise.
func (r *StepResult) Output() string {
	if r.Status == StepStatusDone {
		return r.Content
	}
	if r.Error != "" {
		return fmt.Sprintf("Error: %s", r.Error)
	}
	return ""
}

// WorkflowState carries everything a single job's workflow accumulates.
// It is owned by the executor of the running job and is not shared.
type WorkflowState struct {
	UserInput           string              `json:"user_input"`
	DocumentContent     string              `json:"document_content,omitempty"`
	ConversationHistory []ConversationTurn  `json:"conversation_history,omitempty"`
	AvailableTools      []ToolDescriptor    `json:"available_tools,omitempty"`
	IntentType          IntentType          `json:"intent_type"`
	Plan                []Step              `json:"workflow_plan,omitempty"`
	CurrentStep         int                 `json:"current_step"`
	StepResults         map[int]*StepResult `json:"step_results,omitempty"`
	FinalResponse       string              `json:"final_response,omitempty"`
}

// NewWorkflowState seeds a state from the job submission
func NewWorkflowState(req *SubmitRequest, tools []ToolDescriptor) *WorkflowState {
	return &WorkflowState{
		UserInput:           req.Message,
		DocumentContent:     req.DocumentContent,
		ConversationHistory: req.ChatHistory,
		AvailableTools:      tools,
		StepResults:         make(map[int]*StepResult),
	}
}

// HistoryText flattens the conversation history into "role: content" lines
// for prompt inclusion and parameter substitution.
func (s *WorkflowState) HistoryText() string {
	if len(s.ConversationHistory) == 0 {
		return ""
	}
	lines := make([]string, 0, len(s.ConversationHistory))
	for _, turn := range s.ConversationHistory {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}
	return strings.Join(lines, "\n")
}

// ResultByOutputKey finds the recorded result for an earlier step's output
// key. Only steps that already ran are visible.
func (s *WorkflowState) ResultByOutputKey(key string) (*StepResult, bool) {
	for _, step := range s.Plan {
		if step.OutputKey != key {
			continue
		}
		if result, ok := s.StepResults[step.Step]; ok {
			return result, true
		}
	}
	return nil, false
}

// FailedStep returns the first failed step result, if any
func (s *WorkflowState) FailedStep() (*StepResult, bool) {
	for _, step := range s.Plan {
		if result, ok := s.StepResults[step.Step]; ok && result.Status == StepStatusFailed {
			return result, true
		}
	}
	return nil, false
}
