package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// defaultClaimCount is drafted when the request does not name a count
const defaultClaimCount = 3

// maxClaimCount bounds a single drafting call
const maxClaimCount = 20

// draftingSystemPrompt frames the claim drafting call
const draftingSystemPrompt = `You are a patent claim drafter. Draft clear, well-structured patent claims for the described invention: one independent claim first, then dependent claims that each narrow a single feature. Use standard claim language ("comprising", "wherein"), number claims sequentially, and keep each claim a single sentence. Reply in markdown with each claim as a numbered item. Do not add commentary before or after the claims.`

// DraftingTool drafts patent claims from an invention description via the
// configured LLM provider.
type DraftingTool struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewDraftingTool creates the claim drafting tool
func NewDraftingTool(llm interfaces.LLMService, logger arbor.ILogger) *DraftingTool {
	return &DraftingTool{llm: llm, logger: logger}
}

// Name returns the canonical tool name
func (t *DraftingTool) Name() string {
	return models.ToolClaimDrafting
}

// Descriptor describes the tool for classifier and planner prompts
func (t *DraftingTool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        models.ToolClaimDrafting,
		Description: "Drafts patent claims (one independent claim plus dependent claims) from an invention description, optionally informed by search results or document context.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"invention_description": map[string]interface{}{
					"type":        "string",
					"description": "What the invention is and does",
				},
				"context": map[string]interface{}{
					"type":        "string",
					"description": "Prior art, search results or document text to draft against",
				},
				"num_claims": map[string]interface{}{
					"type":        "number",
					"description": fmt.Sprintf("How many claims to draft (default: %d)", defaultClaimCount),
				},
			},
			"required": []string{"invention_description"},
		},
	}
}

// Execute drafts claims for the described invention
func (t *DraftingTool) Execute(ctx context.Context, params map[string]interface{}) (*models.ToolResult, error) {
	if t.llm == nil {
		return nil, models.NewToolError("claim drafting is not available: no LLM provider configured", false)
	}

	description := stringParam(params, "invention_description", "description", "query", "message")
	if description == "" {
		return nil, models.NewToolError("claim_drafting_tool requires an invention_description parameter", false)
	}

	numClaims := intParam(params, "num_claims", defaultClaimCount)
	if numClaims < 1 {
		numClaims = defaultClaimCount
	}
	if numClaims > maxClaimCount {
		numClaims = maxClaimCount
	}
	contextText := stringParam(params, "context")

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Draft %d patent claims for the following invention.\n\n", numClaims))
	sb.WriteString("Invention description:\n")
	sb.WriteString(description)
	if contextText != "" {
		sb.WriteString("\n\nRelevant context (prior art, search results or document text):\n")
		sb.WriteString(contextText)
	}

	reply, err := t.llm.Complete(ctx, draftingSystemPrompt, sb.String(), 2048, 0.3)
	if err != nil {
		t.logger.Warn().
			Err(err).
			Msg("Claim drafting LLM call failed")
		return nil, models.NewToolError(fmt.Sprintf("claim drafting failed: %v", err), isTransientLLMError(err))
	}

	content := strings.TrimSpace(reply)
	if content == "" {
		return nil, models.NewToolError("claim drafting returned an empty reply", true)
	}

	return &models.ToolResult{
		Content: content,
		Metadata: map[string]interface{}{
			"num_claims_requested": numClaims,
			"has_context":          contextText != "",
		},
	}, nil
}
