package workflow

import (
	"context"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// plannerMaxTokens bounds the plan reply
const plannerMaxTokens = 1024

// searchResultsKey is the output key the heuristic wires between a search
// step and its consumer.
const searchResultsKey = "search_results"

var (
	searchVerbPattern  = regexp.MustCompile(`(?i)\b(find|search)\b`)
	draftVerbPattern   = regexp.MustCompile(`(?i)\b(draft|create)\b`)
	analyzeVerbPattern = regexp.MustCompile(`(?i)\banaly[sz]e\b`)
)

// singleToolPreference is the definitive tie-break order when no keyword
// binds a specific tool.
var singleToolPreference = []string{
	models.ToolWebSearch,
	models.ToolPriorArtSearch,
	models.ToolClaimDrafting,
	models.ToolClaimAnalysis,
}

// Planner turns a classified request into an ordered tool plan. Like the
// classifier it never fails: a rejected or unparsable LLM plan falls back
// to the deterministic heuristic.
type Planner struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

// NewPlanner creates a planner. A nil LLM service forces the heuristic
// path.
func NewPlanner(llm interfaces.LLMService, logger arbor.ILogger) *Planner {
	return &Planner{llm: llm, logger: logger}
}

// Plan produces the step sequence for the request. Conversation intents
// yield an empty plan. A plan referencing an unknown tool is rejected as a
// whole and the heuristic applies.
func (p *Planner) Plan(ctx context.Context, state *models.WorkflowState, classification *models.Classification) *models.Plan {
	if classification.WorkflowType == models.IntentConversation {
		return &models.Plan{Source: models.PlanSourceHeuristic}
	}

	if p.llm != nil {
		if plan := p.llmPlan(ctx, state, classification); plan != nil {
			return plan
		}
	}

	plan := heuristicPlan(state)
	p.logger.Debug().
		Int("steps", len(plan.Steps)).
		Msg("Plan produced by heuristic")
	return plan
}

// llmPlan runs the LLM planning path, returning nil on any failure so the
// heuristic takes over.
func (p *Planner) llmPlan(ctx context.Context, state *models.WorkflowState, classification *models.Classification) *models.Plan {
	prompt := buildPlannerPrompt(state, classification)
	reply, err := p.llm.Complete(ctx, plannerSystemPrompt, prompt, plannerMaxTokens, 0.0)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Msg("Planner LLM call failed, using heuristic fallback")
		return nil
	}

	steps, err := parsePlanReply(reply)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Msg("Unparsable plan reply, using heuristic fallback")
		return nil
	}

	plan := &models.Plan{Steps: steps, Source: models.PlanSourceLLM}
	if err := plan.Validate(state.AvailableTools); err != nil {
		p.logger.Warn().
			Err(err).
			Msg("LLM plan rejected, using heuristic fallback")
		return nil
	}

	p.logger.Debug().
		Int("steps", len(plan.Steps)).
		Msg("Plan produced by LLM")
	return plan
}

// heuristicPlan derives a plan from the user input alone. A request mixing
// a search verb with a draft or analyze verb becomes a two-step plan wiring
// the search output into the second step's context; anything else becomes a
// single step on the most plausible available tool.
func heuristicPlan(state *models.WorkflowState) *models.Plan {
	available := make(map[string]bool, len(state.AvailableTools))
	for _, descriptor := range state.AvailableTools {
		available[descriptor.Name] = true
	}
	if len(available) == 0 {
		return &models.Plan{Source: models.PlanSourceHeuristic}
	}

	input := state.UserInput
	wantsSearch := searchVerbPattern.MatchString(input)
	wantsDraft := draftVerbPattern.MatchString(input)
	wantsAnalysis := analyzeVerbPattern.MatchString(input)

	if wantsSearch && (wantsDraft || wantsAnalysis) {
		if plan := twoStepPlan(state, available, wantsDraft); plan != nil {
			return plan
		}
	}

	return singleStepPlan(state, available)
}

// twoStepPlan builds search → draft/analyze. Returns nil when either half
// has no available tool, letting the single-step path take over.
func twoStepPlan(state *models.WorkflowState, available map[string]bool, wantsDraft bool) *models.Plan {
	searchTool := searchToolFor(state.UserInput, available)
	if searchTool == "" {
		return nil
	}

	var secondTool string
	var secondParams map[string]interface{}
	if wantsDraft && available[models.ToolClaimDrafting] {
		secondTool = models.ToolClaimDrafting
		secondParams = map[string]interface{}{
			"invention_description": state.UserInput,
			"context":               "{" + searchResultsKey + "}",
		}
	} else if available[models.ToolClaimAnalysis] {
		secondTool = models.ToolClaimAnalysis
		secondParams = map[string]interface{}{
			"claims":  claimsSource(state),
			"context": "{" + searchResultsKey + "}",
		}
	}
	if secondTool == "" {
		return nil
	}

	return &models.Plan{
		Source: models.PlanSourceHeuristic,
		Steps: []models.Step{
			{
				Step:       1,
				Tool:       searchTool,
				Parameters: map[string]interface{}{"query": state.UserInput},
				OutputKey:  searchResultsKey,
			},
			{
				Step:       2,
				Tool:       secondTool,
				Parameters: secondParams,
				DependsOn:  []int{1},
				OutputKey:  outputKeyFor(secondTool),
			},
		},
	}
}

// singleStepPlan picks one tool: a keyword-bound match first, then the
// fixed preference order, then whatever the catalog offers.
func singleStepPlan(state *models.WorkflowState, available map[string]bool) *models.Plan {
	tool := keywordTool(strings.ToLower(state.UserInput))
	if !available[tool] {
		tool = ""
		for _, candidate := range singleToolPreference {
			if available[candidate] {
				tool = candidate
				break
			}
		}
	}
	if tool == "" {
		for _, descriptor := range state.AvailableTools {
			tool = descriptor.Name
			break
		}
	}
	if tool == "" {
		return &models.Plan{Source: models.PlanSourceHeuristic}
	}

	return &models.Plan{
		Source: models.PlanSourceHeuristic,
		Steps: []models.Step{
			{
				Step:       1,
				Tool:       tool,
				Parameters: singleStepParameters(tool, state),
				OutputKey:  outputKeyFor(tool),
			},
		},
	}
}

// searchToolFor prefers the patent index when the request names prior art
func searchToolFor(input string, available map[string]bool) string {
	if strings.Contains(strings.ToLower(input), "prior art") && available[models.ToolPriorArtSearch] {
		return models.ToolPriorArtSearch
	}
	if available[models.ToolWebSearch] {
		return models.ToolWebSearch
	}
	if available[models.ToolPriorArtSearch] {
		return models.ToolPriorArtSearch
	}
	return ""
}

// claimsSource analyzes the open document when there is one, otherwise the
// request text itself.
func claimsSource(state *models.WorkflowState) string {
	if state.DocumentContent != "" {
		return "{document_content}"
	}
	return state.UserInput
}

func singleStepParameters(tool string, state *models.WorkflowState) map[string]interface{} {
	switch tool {
	case models.ToolPriorArtSearch, models.ToolWebSearch:
		return map[string]interface{}{"query": state.UserInput}
	case models.ToolClaimDrafting:
		params := map[string]interface{}{"invention_description": state.UserInput}
		if state.DocumentContent != "" {
			params["context"] = "{document_content}"
		}
		return params
	case models.ToolClaimAnalysis:
		return map[string]interface{}{"claims": claimsSource(state)}
	default:
		return map[string]interface{}{"query": state.UserInput}
	}
}

func outputKeyFor(tool string) string {
	switch tool {
	case models.ToolPriorArtSearch, models.ToolWebSearch:
		return searchResultsKey
	case models.ToolClaimDrafting:
		return "drafted_claims"
	case models.ToolClaimAnalysis:
		return "claim_analysis"
	default:
		return "result"
	}
}
