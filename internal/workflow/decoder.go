package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/assero/internal/models"
)

// extractFencedBlock strips a markdown code fence from an LLM reply. Replies
// may wrap their payload in ```json, ```yaml or bare ``` fences; without a
// fence the reply is returned as-is.
func extractFencedBlock(response string) string {
	for _, marker := range []string{"```json", "```yaml", "```"} {
		if !strings.Contains(response, marker) {
			continue
		}
		start := strings.Index(response, marker) + len(marker)
		end := strings.LastIndex(response, "```")
		if end > start {
			return strings.TrimSpace(response[start:end])
		}
	}
	return strings.TrimSpace(response)
}

// parseClassifierReply decodes the line-oriented classification reply.
// Expected lines: WORKFLOW_TYPE, INTENT, TOOLS (comma list), PARAMETERS
// (JSON object). Unknown lines are ignored; a missing or invalid
// WORKFLOW_TYPE rejects the reply.
func parseClassifierReply(reply string) (*models.Classification, error) {
	classification := &models.Classification{
		Parameters: make(map[string]interface{}),
		Source:     models.ClassificationSourceLLM,
	}

	found := false
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "WORKFLOW_TYPE":
			intentType := models.IntentType(strings.ToLower(value))
			if !intentType.IsValid() {
				return nil, fmt.Errorf("unknown workflow type %q", value)
			}
			classification.WorkflowType = intentType
			found = true
		case "INTENT":
			classification.Intent = value
		case "TOOLS":
			for _, name := range strings.Split(value, ",") {
				name = strings.TrimSpace(name)
				if name == "" || strings.EqualFold(name, "none") {
					continue
				}
				classification.Tools = append(classification.Tools, name)
			}
		case "PARAMETERS":
			if value == "" {
				continue
			}
			params, err := decodeLooseObject(value)
			if err != nil {
				// A malformed parameter guess is tolerable; the planner
				// re-derives parameters anyway.
				continue
			}
			classification.Parameters = params
		}
	}

	if !found {
		return nil, fmt.Errorf("reply carries no WORKFLOW_TYPE line")
	}
	return classification, nil
}

// planEnvelope is the JSON shape requested from the planner LLM
type planEnvelope struct {
	Steps []models.Step `json:"steps" yaml:"steps"`
}

// parsePlanReply decodes a plan from an LLM reply. Strict JSON is tried
// first, then YAML, which tolerates the minor format drift models produce;
// JSON is a YAML subset so nothing valid is lost. Both the enveloped
// {"steps": [...]} shape and a bare step array are accepted.
func parsePlanReply(reply string) ([]models.Step, error) {
	payload := extractFencedBlock(reply)
	if payload == "" {
		return nil, fmt.Errorf("empty plan reply")
	}

	var envelope planEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err == nil && len(envelope.Steps) > 0 {
		return envelope.Steps, nil
	}

	var bare []models.Step
	if err := json.Unmarshal([]byte(payload), &bare); err == nil && len(bare) > 0 {
		return bare, nil
	}

	if err := yaml.Unmarshal([]byte(payload), &envelope); err == nil && len(envelope.Steps) > 0 {
		return normalizeYAMLSteps(envelope.Steps), nil
	}
	if err := yaml.Unmarshal([]byte(payload), &bare); err == nil && len(bare) > 0 {
		return normalizeYAMLSteps(bare), nil
	}

	return nil, fmt.Errorf("plan reply is neither valid JSON nor YAML")
}

// normalizeYAMLSteps rewrites yaml.v3's map[string]interface{} parameter
// values so downstream code sees the same shapes the JSON path produces.
func normalizeYAMLSteps(steps []models.Step) []models.Step {
	for i := range steps {
		if steps[i].Parameters == nil {
			steps[i].Parameters = make(map[string]interface{})
		}
	}
	return steps
}

// decodeLooseObject parses a JSON object, falling back to YAML
func decodeLooseObject(payload string) (map[string]interface{}, error) {
	obj := make(map[string]interface{})
	if err := json.Unmarshal([]byte(payload), &obj); err == nil {
		return obj, nil
	}
	if err := yaml.Unmarshal([]byte(payload), &obj); err == nil {
		return obj, nil
	}
	return nil, fmt.Errorf("not a JSON or YAML object")
}
