package interfaces

import (
	"context"

	"github.com/ternarybob/assero/internal/models"
)

// Tool is a single callable capability. Tools may perform I/O and may fail,
// but never mutate orchestrator state. Execute returns either a ToolResult
// or an error; tool-level failures are *models.ToolError so callers can
// inspect retriability, any other error is an adapter defect.
type Tool interface {
	// Name returns the canonical tool name used in plans
	Name() string

	// Descriptor returns the name, description and input schema shown to
	// the classifier and planner prompts
	Descriptor() models.ToolDescriptor

	// Execute runs the tool with the given parameters
	Execute(ctx context.Context, params map[string]interface{}) (*models.ToolResult, error)
}

// ToolRegistry is the only component that knows tool addresses. The
// orchestrator receives handles through it, never endpoints. Safe for
// concurrent use.
type ToolRegistry interface {
	// Register adds a tool; duplicate names are rejected
	Register(tool Tool) error

	// Get returns the named tool
	Get(name string) (Tool, bool)

	// Execute dispatches to the named tool
	Execute(ctx context.Context, name string, params map[string]interface{}) (*models.ToolResult, error)

	// Descriptors lists every registered tool for prompt construction
	Descriptors() []models.ToolDescriptor

	// Names lists registered tool names in registration order
	Names() []string
}
