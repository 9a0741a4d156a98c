package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// analysisSystemPrompt frames the claim analysis call
const analysisSystemPrompt = `You are a patent claim analyst. Review the given claims and report, per claim: scope (broad or narrow and why), ambiguous or unsupported terms, antecedent basis problems, and dependency issues. Close with an overall assessment and concrete redraft suggestions. Reply in markdown with a section per claim.`

// AnalysisTool reviews patent claims for scope, clarity and structural
// defects via the configured LLM provider.
type AnalysisTool struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewAnalysisTool creates the claim analysis tool
func NewAnalysisTool(llm interfaces.LLMService, logger arbor.ILogger) *AnalysisTool {
	return &AnalysisTool{llm: llm, logger: logger}
}

// Name returns the canonical tool name
func (t *AnalysisTool) Name() string {
	return models.ToolClaimAnalysis
}

// Descriptor describes the tool for classifier and planner prompts
func (t *AnalysisTool) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        models.ToolClaimAnalysis,
		Description: "Analyzes patent claims for scope, ambiguity, antecedent basis and dependency problems, optionally against prior art context.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"claims": map[string]interface{}{
					"type":        "string",
					"description": "Claim text to analyze",
				},
				"context": map[string]interface{}{
					"type":        "string",
					"description": "Prior art or search results to analyze against",
				},
			},
			"required": []string{"claims"},
		},
	}
}

// Execute analyzes the given claims
func (t *AnalysisTool) Execute(ctx context.Context, params map[string]interface{}) (*models.ToolResult, error) {
	if t.llm == nil {
		return nil, models.NewToolError("claim analysis is not available: no LLM provider configured", false)
	}

	claims := stringParam(params, "claims", "claim", "text", "document_content")
	if claims == "" {
		return nil, models.NewToolError("claim_analysis_tool requires a claims parameter", false)
	}
	contextText := stringParam(params, "context")

	var sb strings.Builder
	sb.WriteString("Analyze the following patent claims.\n\n")
	sb.WriteString("Claims:\n")
	sb.WriteString(claims)
	if contextText != "" {
		sb.WriteString("\n\nPrior art context:\n")
		sb.WriteString(contextText)
	}

	reply, err := t.llm.Complete(ctx, analysisSystemPrompt, sb.String(), 2048, 0.0)
	if err != nil {
		t.logger.Warn().
			Err(err).
			Msg("Claim analysis LLM call failed")
		return nil, models.NewToolError(fmt.Sprintf("claim analysis failed: %v", err), isTransientLLMError(err))
	}

	content := strings.TrimSpace(reply)
	if content == "" {
		return nil, models.NewToolError("claim analysis returned an empty reply", true)
	}

	return &models.ToolResult{
		Content: content,
		Metadata: map[string]interface{}{
			"has_context": contextText != "",
		},
	}, nil
}
