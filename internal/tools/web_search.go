package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/models"
	"github.com/ternarybob/assero/internal/services/webfetch"
)

// pageContentLimit caps fetched page markdown included in tool output
const pageContentLimit = 4000

// WebSearcher is the slice of the web fetch service the search tool
// consumes.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]webfetch.Result, error)
	FetchMarkdown(ctx context.Context, pageURL string) (string, error)
	PageContentEnabled() bool
}

// WebSearchTool queries the configured HTML search endpoint and returns
// result links as markdown, optionally with the top result's page content.
type WebSearchTool struct {
	fetcher    WebSearcher
	maxResults int
	logger     arbor.ILogger
}

// NewWebSearchTool creates the web search tool
func NewWebSearchTool(fetcher WebSearcher, maxResults int, logger arbor.ILogger) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = defaultSearchResults
	}
	return &WebSearchTool{
		fetcher:    fetcher,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Name returns the canonical tool name
func (t *WebSearchTool) Name() string {
	return models.ToolWebSearch
}

// Descriptor describes the tool for classifier and planner prompts
func (t *WebSearchTool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        models.ToolWebSearch,
		Description: "Searches the web and returns result titles, links and snippets as markdown.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": fmt.Sprintf("Maximum results to return (default: %d)", t.maxResults),
				},
			},
			"required": []string{"query"},
		},
	}
}

// Execute runs the web search
func (t *WebSearchTool) Execute(ctx context.Context, params map[string]interface{}) (*models.ToolResult, error) {
	if t.fetcher == nil {
		return nil, models.NewToolError("web search is not available", false)
	}

	query := stringParam(params, "query", "search_query", "q")
	if query == "" {
		return nil, models.NewToolError("web_search_tool requires a query parameter", false)
	}
	maxResults := clampResults(intParam(params, "max_results", t.maxResults), t.maxResults)

	results, err := t.fetcher.Search(ctx, query, maxResults)
	if err != nil {
		t.logger.Warn().
			Err(err).
			Str("query", query).
			Msg("Web search failed")
		return nil, models.NewToolError(fmt.Sprintf("web search failed: %v", err), retriable(err))
	}

	content := formatWebResults(query, results)
	if len(results) > 0 && t.fetcher.PageContentEnabled() {
		if page := t.fetchTopResult(ctx, results[0].URL); page != "" {
			content += "\n\n### Top result content\n\n" + page
		}
	}

	return &models.ToolResult{
		Content: content,
		Metadata: map[string]interface{}{
			"source":       "web_search",
			"query":        query,
			"result_count": len(results),
		},
	}, nil
}

// fetchTopResult pulls the first hit's page as markdown. Fetch failures are
// logged and swallowed: the link list alone is still a useful result.
func (t *WebSearchTool) fetchTopResult(ctx context.Context, pageURL string) string {
	markdown, err := t.fetcher.FetchMarkdown(ctx, pageURL)
	if err != nil {
		t.logger.Debug().
			Err(err).
			Str("url", pageURL).
			Msg("Top result fetch failed")
		return ""
	}
	return truncateText(markdown, pageContentLimit)
}

// formatWebResults renders search hits as a markdown list
func formatWebResults(query string, results []webfetch.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No web results found for \"%s\".", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d web result(s) for \"%s\":\n\n", len(results), query))
	for i, result := range results {
		title := result.Title
		if title == "" {
			title = result.URL
		}
		sb.WriteString(fmt.Sprintf("%d. [%s](%s)\n", i+1, title, result.URL))
		if result.Snippet != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", result.Snippet))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
