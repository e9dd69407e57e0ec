package schema

// Definition is a named JSON schema describing a structured model output.
type Definition struct {
	Name string
	Body map[string]any
}

// SummaryDefinition describes SummaryOutput, advertising maxChars as the
// content length bound.
func SummaryDefinition(maxChars int) Definition {
	return Definition{
		Name: "SummaryOutput",
		Body: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "The summary text",
					"maxLength":   maxChars,
				},
				"strategy": map[string]any{
					"type": "string",
					"enum": []string{string(StrategyFast), string(StrategyAdvanced)},
				},
				"char_count": map[string]any{"type": "integer"},
				"latency_ms": map[string]any{"type": "number"},
				"language": map[string]any{
					"type":        "string",
					"description": "ISO 639-1 code of the source language",
				},
			},
			"required": []string{"content", "strategy"},
		},
	}
}

// JudgeDefinition describes JudgeFeedback.
func JudgeDefinition() Definition {
	return Definition{
		Name: "JudgeFeedback",
		Body: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status": map[string]any{
					"type": "string",
					"enum": []string{string(VerdictPass), string(VerdictFail)},
				},
				"score_accuracy": map[string]any{
					"type":    "number",
					"minimum": 0,
					"maximum": 1,
				},
				"critique": map[string]any{
					"type":        "string",
					"description": "Required when status is FAIL; guides the rewrite",
				},
			},
			"required": []string{"status", "score_accuracy"},
		},
	}
}
