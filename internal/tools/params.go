package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/assero/internal/services/llm"
)

// stringParam extracts a trimmed string parameter, accepting the first of
// the given keys that holds a non-empty string. Plans produced by an LLM
// sometimes pick a synonym for the documented parameter name; the fallback
// keys absorb the common ones.
func stringParam(params map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if raw, ok := params[key]; ok {
			if value, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return ""
}

// intParam extracts an integer parameter. JSON decoding yields float64 for
// numbers; plans built in-process may carry native ints.
func intParam(params map[string]interface{}, key string, fallback int) int {
	raw, ok := params[key]
	if !ok {
		return fallback
	}
	switch value := raw.(type) {
	case int:
		return value
	case float64:
		return int(value)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

// retriable probes an upstream error for transport-level transience. The
// patent and web fetch clients both expose Retriable() on their error
// types; anything else is treated as permanent.
func retriable(err error) bool {
	var r interface{ Retriable() bool }
	if errors.As(err, &r) {
		return r.Retriable()
	}
	return false
}

// isTransientLLMError reports whether a provider error is worth retrying:
// rate limits, timeouts and upstream overload.
func isTransientLLMError(err error) bool {
	return llm.IsTransientError(err)
}

// clampResults bounds a requested result count to [1, limit]
func clampResults(requested, limit int) int {
	if requested < 1 {
		return limit
	}
	if requested > limit {
		return limit
	}
	return requested
}
