package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/assero/internal/models"
)

// formatToolResult renders a tool result as markdown: the content body
// followed by a metadata footer when present.
func formatToolResult(result *models.ToolResult) string {
	if result == nil {
		return "No result."
	}

	var sb strings.Builder
	sb.WriteString(result.Content)

	if len(result.Metadata) > 0 {
		sb.WriteString("\n\n---\n")
		keys := make([]string, 0, len(result.Metadata))
		for key := range result.Metadata {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			sb.WriteString(fmt.Sprintf("- %s: %v\n", key, result.Metadata[key]))
		}
	}

	return sb.String()
}
