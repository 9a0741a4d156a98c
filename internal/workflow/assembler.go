package workflow

import (
	"fmt"
	"strings"

	"github.com/ternarybob/assero/internal/models"
)

// Canned replies for the degenerate workflow shapes. The assembler never
// calls the LLM: given the same step outputs it produces the same response.
const (
	conversationReply = "I'm the Assero patent assistant. I can search prior art, draft patent claims, analyze existing claims and run web searches. Tell me what you would like to do."

	unableToProceedReply = "I was unable to work out how to handle that request with the tools available. Please try rephrasing it."
)

// headingForTool maps tool names to the section headings of the assembled
// response. Unknown tools fall back to the raw tool name.
var headingForTool = map[string]string{
	models.ToolPriorArtSearch: "Prior Art Search Results",
	models.ToolClaimDrafting:  "Drafted Claims",
	models.ToolClaimAnalysis:  "Claim Analysis",
	models.ToolWebSearch:      "Web Search Results",
}

// Assembler combines step outputs into the final markdown response. It is
// deliberately dumb: no reformatting, no reordering, no LLM.
type Assembler struct{}

// NewAssembler creates an assembler
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble builds the user-facing response from the executed state
func (a *Assembler) Assemble(state *models.WorkflowState) string {
	if state.IntentType == models.IntentConversation {
		return conversationReply
	}
	if len(state.Plan) == 0 {
		return unableToProceedReply
	}

	var sections []string
	for _, step := range state.Plan {
		result, ok := state.StepResults[step.Step]
		if !ok || result.Status != models.StepStatusDone {
			continue
		}
		content := strings.TrimSpace(result.Content)
		if content == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", headingFor(step.Tool), content))
	}

	if failed, ok := state.FailedStep(); ok {
		sections = append(sections, fmt.Sprintf(
			"**Step %d (%s) failed:** %s", failed.Step, failed.Tool, failed.Error))
	} else if len(sections) == 0 {
		// Planned steps exist but none produced output.
		return unableToProceedReply
	}

	return strings.Join(sections, "\n\n")
}

// headingFor returns the section heading for a tool
func headingFor(tool string) string {
	if heading, ok := headingForTool[tool]; ok {
		return heading
	}
	return tool
}
