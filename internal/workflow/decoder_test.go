package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/assero/internal/models"
)

func TestParseClassifierReply(t *testing.T) {
	reply := `WORKFLOW_TYPE: single_tool
INTENT: search the patent index for prior art
TOOLS: prior_art_search_tool
PARAMETERS: {"query": "AI patents"}`

	classification, err := parseClassifierReply(reply)
	require.NoError(t, err)
	assert.Equal(t, models.IntentSingleTool, classification.WorkflowType)
	assert.Equal(t, "search the patent index for prior art", classification.Intent)
	assert.Equal(t, []string{"prior_art_search_tool"}, classification.Tools)
	assert.Equal(t, "AI patents", classification.Parameters["query"])
	assert.Equal(t, models.ClassificationSourceLLM, classification.Source)
}

func TestParseClassifierReplyToleratesNoise(t *testing.T) {
	reply := `Here is my classification.

workflow_type: multi_step
INTENT: search then draft
TOOLS: web_search_tool, claim_drafting_tool
PARAMETERS: not json at all
Some trailing commentary.`

	classification, err := parseClassifierReply(reply)
	require.NoError(t, err)
	assert.Equal(t, models.IntentMultiStep, classification.WorkflowType)
	assert.Equal(t, []string{"web_search_tool", "claim_drafting_tool"}, classification.Tools)
	// The malformed parameter guess is dropped, not fatal.
	assert.Empty(t, classification.Parameters)
}

func TestParseClassifierReplyToolsNone(t *testing.T) {
	reply := `WORKFLOW_TYPE: conversation
INTENT: greeting
TOOLS: none
PARAMETERS: {}`

	classification, err := parseClassifierReply(reply)
	require.NoError(t, err)
	assert.Equal(t, models.IntentConversation, classification.WorkflowType)
	assert.Empty(t, classification.Tools)
}

func TestParseClassifierReplyRejectsMissingType(t *testing.T) {
	_, err := parseClassifierReply("INTENT: something\nTOOLS: none")
	assert.Error(t, err)
}

func TestParseClassifierReplyRejectsUnknownType(t *testing.T) {
	_, err := parseClassifierReply("WORKFLOW_TYPE: interpretive_dance")
	assert.Error(t, err)
}

func TestParsePlanReplyStrictJSON(t *testing.T) {
	reply := `{"steps": [{"step": 1, "tool": "web_search_tool", "parameters": {"query": "gear pumps"}, "output_key": "r1"}]}`

	steps, err := parsePlanReply(reply)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, 1, steps[0].Step)
	assert.Equal(t, "web_search_tool", steps[0].Tool)
	assert.Equal(t, "gear pumps", steps[0].Parameters["query"])
	assert.Equal(t, "r1", steps[0].OutputKey)
}

func TestParsePlanReplyFencedJSON(t *testing.T) {
	reply := "Here is the plan:\n```json\n" +
		`{"steps": [{"step": 1, "tool": "prior_art_search_tool", "parameters": {"query": "hinges"}, "output_key": "search_results"},` +
		`{"step": 2, "tool": "claim_drafting_tool", "parameters": {"context": "{search_results}"}, "depends_on": [1], "output_key": "draft"}]}` +
		"\n```\nLet me know if you need changes."

	steps, err := parsePlanReply(reply)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "{search_results}", steps[1].Parameters["context"])
	assert.Equal(t, []int{1}, steps[1].DependsOn)
}

func TestParsePlanReplyBareArray(t *testing.T) {
	reply := `[{"step": 1, "tool": "web_search_tool", "parameters": {}, "output_key": "r1"}]`

	steps, err := parsePlanReply(reply)
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}

func TestParsePlanReplyYAMLFallback(t *testing.T) {
	reply := "```yaml\n" +
		"steps:\n" +
		"  - step: 1\n" +
		"    tool: web_search_tool\n" +
		"    parameters:\n" +
		"      query: gear pumps\n" +
		"    output_key: r1\n" +
		"```"

	steps, err := parsePlanReply(reply)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "web_search_tool", steps[0].Tool)
	assert.Equal(t, "gear pumps", steps[0].Parameters["query"])
}

func TestParsePlanReplyGarbage(t *testing.T) {
	_, err := parsePlanReply("I am unable to produce a plan for this request.")
	assert.Error(t, err)

	_, err = parsePlanReply("")
	assert.Error(t, err)
}

func TestExtractFencedBlock(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractFencedBlock("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, "steps: []", extractFencedBlock("```yaml\nsteps: []\n```"))
	assert.Equal(t, "plain", extractFencedBlock("```\nplain\n```"))
	assert.Equal(t, "no fences here", extractFencedBlock("no fences here"))
}
