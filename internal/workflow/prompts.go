package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/assero/internal/models"
)

// classifierSystemPrompt frames the intent classification call
const classifierSystemPrompt = `You are the intent classifier of a patent drafting assistant. You decide how a user request should be handled: as plain conversation, as a single tool call, or as a multi-step workflow. Reply only in the requested line format.`

// plannerSystemPrompt frames the plan generation call
const plannerSystemPrompt = `You are the workflow planner of a patent drafting assistant. You turn a user request into an ordered plan of tool calls. Reply only with the requested JSON.`

// formatToolCatalog renders the tool descriptors for prompt inclusion
func formatToolCatalog(tools []models.ToolDescriptor) string {
	var sb strings.Builder
	sb.WriteString("# Available Tools\n\n")

	for _, tool := range tools {
		sb.WriteString(fmt.Sprintf("## %s\n\n", tool.Name))
		sb.WriteString(fmt.Sprintf("%s\n\n", tool.Description))

		if len(tool.InputSchema) > 0 {
			schemaJSON, err := json.MarshalIndent(tool.InputSchema, "", "  ")
			if err != nil {
				continue
			}
			sb.WriteString("**Input Schema:**\n")
			sb.WriteString("```json\n")
			sb.WriteString(string(schemaJSON))
			sb.WriteString("\n```\n\n")
		}
	}
	return sb.String()
}

// buildClassifierPrompt constructs the line-oriented classification prompt
func buildClassifierPrompt(userInput string, tools []models.ToolDescriptor) string {
	var sb strings.Builder

	sb.WriteString(formatToolCatalog(tools))
	sb.WriteString("# Task\n\n")
	sb.WriteString("Classify the user request below. Reply with exactly these four lines:\n\n")
	sb.WriteString("WORKFLOW_TYPE: conversation | single_tool | multi_step\n")
	sb.WriteString("INTENT: one short sentence describing what the user wants\n")
	sb.WriteString("TOOLS: comma-separated tool names from the catalog, or none\n")
	sb.WriteString("PARAMETERS: a JSON object with parameter guesses, or {}\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- conversation: greetings, questions about the assistant, anything needing no tool.\n")
	sb.WriteString("- single_tool: one tool satisfies the request.\n")
	sb.WriteString("- multi_step: the request chains tools, e.g. search first and draft from the results.\n\n")
	sb.WriteString("User request:\n")
	sb.WriteString(userInput)

	return sb.String()
}

// buildPlannerPrompt constructs the JSON plan generation prompt
func buildPlannerPrompt(state *models.WorkflowState, classification *models.Classification) string {
	var sb strings.Builder

	sb.WriteString(formatToolCatalog(state.AvailableTools))
	sb.WriteString("# Task\n\n")
	sb.WriteString("Produce an ordered tool plan for the user request. Reply with a JSON object of this shape:\n\n")
	sb.WriteString("```json\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"steps\": [\n")
	sb.WriteString("    {\n")
	sb.WriteString("      \"step\": 1,\n")
	sb.WriteString("      \"tool\": \"tool_name\",\n")
	sb.WriteString("      \"parameters\": {\"param\": \"value\"},\n")
	sb.WriteString("      \"output_key\": \"symbolic_name\"\n")
	sb.WriteString("    }\n")
	sb.WriteString("  ]\n")
	sb.WriteString("}\n")
	sb.WriteString("```\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- One tool per step; steps run strictly in order.\n")
	sb.WriteString("- A parameter value may reference an earlier step's output_key wrapped in braces, e.g. \"{search_results}\".\n")
	sb.WriteString("- The references {document_content} and {conversation_history} are always available.\n")
	sb.WriteString("- Use only tools from the catalog.\n\n")

	if classification != nil && classification.Intent != "" {
		sb.WriteString(fmt.Sprintf("Classified intent: %s\n\n", classification.Intent))
	}
	if state.DocumentContent != "" {
		sb.WriteString("The user has an open document; {document_content} is populated.\n\n")
	}

	sb.WriteString("User request:\n")
	sb.WriteString(state.UserInput)

	return sb.String()
}
