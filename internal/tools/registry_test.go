package tools

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/models"
)

type staticTool struct {
	name   string
	result *models.ToolResult
	err    error
	mu     sync.Mutex
	calls  int
}

func (s *staticTool) Name() string { return s.name }

func (s *staticTool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{Name: s.name, Description: "static test tool"}
}

func (s *staticTool) Execute(ctx context.Context, params map[string]interface{}) (*models.ToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *staticTool) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRegistryRegisterAndDispatch(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())
	tool := &staticTool{name: "echo_tool", result: &models.ToolResult{Content: "hello"}}
	require.NoError(t, registry.Register(tool))

	result, err := registry.Execute(context.Background(), "echo_tool", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content)
	assert.Equal(t, 1, tool.callCount())
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())
	require.NoError(t, registry.Register(&staticTool{name: "echo_tool"}))

	err := registry.Register(&staticTool{name: "echo_tool"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRejectsNilAndUnnamedTools(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())
	assert.Error(t, registry.Register(nil))
	assert.Error(t, registry.Register(&staticTool{name: ""}))
}

func TestRegistryUnknownToolIsNotRetriable(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())

	_, err := registry.Execute(context.Background(), "missing_tool", nil)
	require.Error(t, err)

	var toolErr *models.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.False(t, toolErr.Retriable)
	assert.Contains(t, toolErr.Message, "missing_tool")
}

func TestRegistryExecutePropagatesToolError(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())
	failure := models.NewToolError("upstream rejected", true)
	require.NoError(t, registry.Register(&staticTool{name: "flaky_tool", err: failure}))

	_, err := registry.Execute(context.Background(), "flaky_tool", nil)
	var toolErr *models.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.True(t, toolErr.Retriable)
}

func TestRegistryDescriptorsPreserveRegistrationOrder(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())
	require.NoError(t, registry.Register(&staticTool{name: "b_tool"}))
	require.NoError(t, registry.Register(&staticTool{name: "a_tool"}))
	require.NoError(t, registry.Register(&staticTool{name: "c_tool"}))

	assert.Equal(t, []string{"b_tool", "a_tool", "c_tool"}, registry.Names())

	descriptors := registry.Descriptors()
	require.Len(t, descriptors, 3)
	assert.Equal(t, "b_tool", descriptors[0].Name)
	assert.Equal(t, "a_tool", descriptors[1].Name)
	assert.Equal(t, "c_tool", descriptors[2].Name)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())
	require.NoError(t, registry.Register(&staticTool{name: "echo_tool", result: &models.ToolResult{Content: "ok"}}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := registry.Execute(context.Background(), "echo_tool", nil)
			assert.NoError(t, err)
			_ = registry.Descriptors()
			_ = registry.Names()
		}()
	}
	wg.Wait()
}
