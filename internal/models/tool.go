package models

// ToolDescriptor describes a callable tool to the classifier and planner.
// InputSchema is opaque to the orchestrator core; it is rendered into LLM
// prompts only.
type ToolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// ToolResult is the successful outcome of a tool invocation. Content is
// markdown ready for response assembly.
type ToolResult struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToolError is a failed tool invocation. Retriable marks transient faults
// (network, upstream rate limits) that a caller may reasonably try again;
// non-retriable faults are bad input or permanent upstream rejection.
type ToolError struct {
	Message   string `json:"message"`
	Retriable bool   `json:"retriable"`
}

// Error implements the error interface
func (e *ToolError) Error() string {
	return e.Message
}

// NewToolError builds a tool-level failure
func NewToolError(message string, retriable bool) *ToolError {
	return &ToolError{Message: message, Retriable: retriable}
}

// Canonical tool names exposed by the registry
const (
	ToolPriorArtSearch = "prior_art_search_tool"
	ToolClaimDrafting  = "claim_drafting_tool"
	ToolClaimAnalysis  = "claim_analysis_tool"
	ToolWebSearch      = "web_search_tool"
)
