package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// Registry dispatches tool calls by name. It is the only component that
// knows how a tool is reached; everything above it holds handles, never
// endpoints. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]interfaces.Tool
	order  []string
	logger arbor.ILogger
}

// NewRegistry creates an empty tool registry
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		tools:  make(map[string]interfaces.Tool),
		logger: logger,
	}
}

// Register adds a tool under its canonical name. Duplicate names are
// rejected so a misconfigured wiring fails at startup, not at dispatch.
func (r *Registry) Register(tool interfaces.Tool) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("cannot register tool with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)

	r.logger.Debug().
		Str("tool", name).
		Msg("Tool registered")
	return nil
}

// Get returns the named tool
func (r *Registry) Get(name string) (interfaces.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Execute dispatches to the named tool and logs the call duration. An
// unknown name is a non-retriable tool error: the plan referenced a tool
// that does not exist, and trying again will not create it.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) (*models.ToolResult, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, models.NewToolError(fmt.Sprintf("unknown tool: %s", name), false)
	}

	startTime := time.Now()
	r.logger.Info().
		Str("tool", name).
		Msg("Executing tool")

	result, err := tool.Execute(ctx, params)
	duration := time.Since(startTime)

	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("tool", name).
			Dur("duration", duration).
			Msg("Tool execution failed")
		return nil, err
	}

	r.logger.Info().
		Str("tool", name).
		Int("content_length", len(result.Content)).
		Dur("duration", duration).
		Msg("Tool execution complete")
	return result, nil
}

// Descriptors lists every registered tool in registration order, for
// inclusion in classifier and planner prompts.
func (r *Registry) Descriptors() []models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]models.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		descriptors = append(descriptors, r.tools[name].Descriptor())
	}
	return descriptors
}

// Names lists registered tool names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
