package llmgateway

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ExtractJSON parses an LLM response as JSON, generalizing
// internal/llm/json.go's ParseJSONResponse: it strips markdown code
// fences first, and on a raw parse failure falls back to extracting
// the largest brace-delimited substring, per §4.9 step 3. Returns nil
// if no valid object can be recovered.
func ExtractJSON(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	stripped := stripCodeFences(text)
	if m := tryParseObject(stripped); m != nil {
		return m
	}

	if candidate := largestBraceSubstring(stripped); candidate != "" {
		if m := tryParseObject(candidate); m != nil {
			return m
		}
	}

	return nil
}

// ExtractJSONInto is like ExtractJSON but decodes into a caller-typed
// destination, used by callers with a schema-shaped struct (verify,
// plan) rather than a loose map.
func ExtractJSONInto(text string, dst any) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	stripped := stripCodeFences(text)
	if jsoniter.UnmarshalFromString(stripped, dst) == nil {
		return true
	}

	candidate := largestBraceSubstring(stripped)
	if candidate == "" {
		return false
	}
	return jsoniter.UnmarshalFromString(candidate, dst) == nil
}

func tryParseObject(s string) map[string]any {
	var m map[string]any
	if err := jsoniter.UnmarshalFromString(s, &m); err != nil {
		return nil
	}
	return m
}

func stripCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.Join(lines[1:endIdx], "\n")
}

// largestBraceSubstring returns the substring spanning the first '{'
// and the last '}' in s, or "" if either is missing or out of order.
func largestBraceSubstring(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}
