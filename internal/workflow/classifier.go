package workflow

import (
	"context"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// classifierMaxTokens bounds the classification reply; four short lines
// never need more.
const classifierMaxTokens = 512

// actionVerbPatterns match the verbs whose co-occurrence signals a
// multi-step request.
var actionVerbPatterns = map[string]*regexp.Regexp{
	"find":    regexp.MustCompile(`(?i)\bfind\b`),
	"search":  regexp.MustCompile(`(?i)\bsearch\b`),
	"draft":   regexp.MustCompile(`(?i)\bdraft\b`),
	"analyze": regexp.MustCompile(`(?i)\banaly[sz]e\b`),
	"create":  regexp.MustCompile(`(?i)\bcreate\b`),
	"then":    regexp.MustCompile(`(?i)\bthen\b`),
}

// singleToolPattern matches requests that want one capability
var singleToolPattern = regexp.MustCompile(`(?i)search|prior art|draft|claim|analy[sz]e`)

// Classifier maps a user request onto one of the workflow shapes. The LLM
// path produces the richer classification; the keyword path is the
// correctness floor, so classification never fails.
type Classifier struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewClassifier creates a classifier. A nil LLM service forces the keyword
// path.
func NewClassifier(llm interfaces.LLMService, logger arbor.ILogger) *Classifier {
	return &Classifier{llm: llm, logger: logger}
}

// Classify determines the workflow shape for the request. Never fails: an
// LLM outage or unparsable reply falls back to keyword classification.
func (c *Classifier) Classify(ctx context.Context, state *models.WorkflowState) *models.Classification {
	if c.llm != nil {
		if classification := c.llmClassify(ctx, state); classification != nil {
			return classification
		}
	}

	classification := classifyByKeywords(state.UserInput)
	c.logger.Debug().
		Str("workflow_type", string(classification.WorkflowType)).
		Msg("Classified by keywords")
	return classification
}

// llmClassify runs the LLM classification path, returning nil on any
// failure so the keyword fallback takes over.
func (c *Classifier) llmClassify(ctx context.Context, state *models.WorkflowState) *models.Classification {
	prompt := buildClassifierPrompt(state.UserInput, state.AvailableTools)
	reply, err := c.llm.Complete(ctx, classifierSystemPrompt, prompt, classifierMaxTokens, 0.0)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Msg("Classification LLM call failed, using keyword fallback")
		return nil
	}

	classification, err := parseClassifierReply(reply)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Msg("Unparsable classification reply, using keyword fallback")
		return nil
	}

	c.logger.Debug().
		Str("workflow_type", string(classification.WorkflowType)).
		Str("intent", classification.Intent).
		Msg("Classified by LLM")
	return classification
}

// classifyByKeywords is the deterministic fallback. Two or more distinct
// action verbs, or the connector "and then", read as a multi-step request;
// a single capability keyword reads as single-tool; anything else is
// conversation.
func classifyByKeywords(userInput string) *models.Classification {
	lower := strings.ToLower(userInput)

	verbs := 0
	for _, pattern := range actionVerbPatterns {
		if pattern.MatchString(userInput) {
			verbs++
		}
	}

	if verbs >= 2 || strings.Contains(lower, "and then") {
		return &models.Classification{
			WorkflowType: models.IntentMultiStep,
			Intent:       "chained tool request",
			Source:       models.ClassificationSourceKeyword,
		}
	}

	if singleToolPattern.MatchString(userInput) {
		return &models.Classification{
			WorkflowType: models.IntentSingleTool,
			Intent:       "single tool request",
			Tools:        []string{keywordTool(lower)},
			Source:       models.ClassificationSourceKeyword,
		}
	}

	return &models.Classification{
		WorkflowType: models.IntentConversation,
		Intent:       "conversation",
		Source:       models.ClassificationSourceKeyword,
	}
}

// keywordTool picks the tool a single-capability request most plausibly
// wants. Specific phrases bind before generic ones.
func keywordTool(lower string) string {
	switch {
	case strings.Contains(lower, "prior art"):
		return models.ToolPriorArtSearch
	case strings.Contains(lower, "draft"):
		return models.ToolClaimDrafting
	case strings.Contains(lower, "analyze") || strings.Contains(lower, "analyse") || strings.Contains(lower, "analysis"):
		return models.ToolClaimAnalysis
	case strings.Contains(lower, "search"):
		return models.ToolWebSearch
	default:
		return models.ToolClaimDrafting
	}
}
