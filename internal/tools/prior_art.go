package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
	"github.com/ternarybob/assero/internal/services/patents"
)

// defaultSearchResults bounds search-style tool output when neither the
// caller nor the config asks for a specific count.
const defaultSearchResults = 5

// abstractLimit caps how much of a patent abstract is quoted per result
const abstractLimit = 500

// PatentSearcher is the slice of the patent API client the prior-art tool
// consumes.
type PatentSearcher interface {
	SearchWithBiblio(ctx context.Context, query string, maxResults int) ([]patents.PatentDocument, error)
}

// priorArtKnowledgePrompt frames the degraded mode used when no patent API
// credentials are configured: the LLM recalls prior art from training data
// instead of querying the registry.
const priorArtKnowledgePrompt = `You are a patent prior-art researcher. From your knowledge of published patents and technical literature, list publications relevant to the given topic. For each, give the publication number or citation if known, a title, and one sentence on its relevance. Be explicit when you are uncertain about a number or date. Reply in markdown.`

// PriorArtTool searches published patent literature. With a configured
// patent API client it queries the registry; without one it degrades to
// recalling prior art from LLM knowledge, flagged as such in the output.
type PriorArtTool struct {
	searcher   PatentSearcher
	llm        interfaces.LLMService
	maxResults int
	logger     arbor.ILogger
}

// NewPriorArtTool creates the prior-art search tool. searcher may be nil
// when the patent API is unconfigured; llm may be nil when no provider is
// available. With both nil every call fails.
func NewPriorArtTool(searcher PatentSearcher, llm interfaces.LLMService, maxResults int, logger arbor.ILogger) *PriorArtTool {
	if maxResults <= 0 {
		maxResults = defaultSearchResults
	}
	return &PriorArtTool{
		searcher:   searcher,
		llm:        llm,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Name returns the canonical tool name
func (t *PriorArtTool) Name() string {
	return models.ToolPriorArtSearch
}

// Descriptor describes the tool for classifier and planner prompts
func (t *PriorArtTool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        models.ToolPriorArtSearch,
		Description: "Searches published patent literature for prior art matching a query. Returns publication numbers, titles, dates and abstracts as markdown.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Technology or invention to search prior art for",
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

// Execute runs the prior-art search
func (t *PriorArtTool) Execute(ctx context.Context, params map[string]interface{}) (*models.ToolResult, error) {
	query := stringParam(params, "query", "search_query", "topic")
	if query == "" {
		return nil, models.NewToolError("prior_art_search_tool requires a query parameter", false)
	}
	maxResults := clampResults(intParam(params, "max_results", t.maxResults), t.maxResults)

	if t.searcher == nil {
		return t.searchFromKnowledge(ctx, query, maxResults)
	}

	docs, err := t.searcher.SearchWithBiblio(ctx, query, maxResults)
	if err != nil {
		t.logger.Warn().
			Err(err).
			Str("query", query).
			Msg("Patent search failed")
		return nil, models.NewToolError(fmt.Sprintf("patent search failed: %v", err), retriable(err))
	}

	return &models.ToolResult{
		Content: formatPatentResults(query, docs),
		Metadata: map[string]interface{}{
			"source":       "patent_api",
			"query":        query,
			"result_count": len(docs),
		},
	}, nil
}

// searchFromKnowledge is the degraded path without patent API credentials
func (t *PriorArtTool) searchFromKnowledge(ctx context.Context, query string, maxResults int) (*models.ToolResult, error) {
	if t.llm == nil {
		return nil, models.NewToolError("prior art search is not configured: no patent API credentials and no LLM provider", false)
	}

	prompt := fmt.Sprintf("List up to %d prior-art references relevant to:\n%s", maxResults, query)
	reply, err := t.llm.Complete(ctx, priorArtKnowledgePrompt, prompt, 1024, 0.2)
	if err != nil {
		return nil, models.NewToolError(fmt.Sprintf("prior art lookup failed: %v", err), isTransientLLMError(err))
	}

	content := "_Patent database not configured; references below are recalled from model knowledge and should be verified._\n\n" + strings.TrimSpace(reply)
	return &models.ToolResult{
		Content: content,
		Metadata: map[string]interface{}{
			"source": "llm_knowledge",
			"query":  query,
		},
	}, nil
}

// formatPatentResults renders patent documents as a markdown list
func formatPatentResults(query string, docs []patents.PatentDocument) string {
	if len(docs) == 0 {
		return fmt.Sprintf("No published patents matched \"%s\".", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d published patent(s) for \"%s\":\n\n", len(docs), query))
	for i, doc := range docs {
		title := doc.Title
		if title == "" {
			title = "(untitled)"
		}
		sb.WriteString(fmt.Sprintf("%d. **%s** — %s", i+1, doc.PublicationNumber, title))
		if doc.PublicationDate != "" {
			sb.WriteString(fmt.Sprintf(" (published %s)", doc.PublicationDate))
		}
		sb.WriteString("\n")
		if doc.Abstract != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", truncateText(doc.Abstract, abstractLimit)))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// truncateText shortens long passages at a rune boundary with an ellipsis
func truncateText(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return string(runes)
	}
	return strings.TrimRight(string(runes[:limit]), " ") + "..."
}
