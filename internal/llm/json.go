package llm

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ParseJSONResponse parses a JSON response from an LLM, handling markdown code blocks.
func ParseJSONResponse(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	var result map[string]any
	err := json.Unmarshal([]byte(text), &result)
	if err != nil {
		// Models sometimes wrap the object in prose.
		start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
		if start >= 0 && end > start {
			err = json.Unmarshal([]byte(text[start:end+1]), &result)
		}
	}
	if err != nil {
		slog.Debug("LLM response is not JSON", "error", err)
		return nil
	}

	return result
}
