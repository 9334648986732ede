// Package extract pulls token usage and text content out of LLM provider
// responses without binding to any provider SDK. Responses are normalized
// through JSON, so both raw maps and SDK response structs work.
package extract

import (
	"encoding/json"
	"fmt"
)

// Tokens extracts (input, output) token counts from an LLM response.
//
// Recognized shapes, in priority order:
//   - OpenAI: usage.prompt_tokens / usage.completion_tokens
//   - Anthropic: usage.input_tokens / usage.output_tokens
//
// Unrecognized responses yield (0, 0).
func Tokens(response any) (int, int) {
	m, ok := asMap(response)
	if !ok {
		return 0, 0
	}

	usage, ok := m["usage"].(map[string]any)
	if !ok {
		return 0, 0
	}

	if v, ok := usage["prompt_tokens"]; ok {
		return asInt(v), asInt(usage["completion_tokens"])
	}
	if v, ok := usage["input_tokens"]; ok {
		return asInt(v), asInt(usage["output_tokens"])
	}
	return 0, 0
}

// Content extracts the text content from an LLM response. Strings pass
// through unchanged; OpenAI chat and legacy completion shapes and Anthropic
// content-block lists are unwrapped. Anything else is stringified.
func Content(response any) string {
	if s, ok := response.(string); ok {
		return s
	}

	m, ok := asMap(response)
	if !ok {
		return fmt.Sprintf("%v", response)
	}

	if choices, ok := m["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if text, ok := msg["content"].(string); ok {
					return text
				}
			}
			if text, ok := choice["text"].(string); ok {
				return text
			}
		}
	}

	if blocks, ok := m["content"].([]any); ok {
		var out string
		for _, b := range blocks {
			if block, ok := b.(map[string]any); ok {
				if text, ok := block["text"].(string); ok {
					out += text
				}
			}
		}
		return out
	}

	return fmt.Sprintf("%v", response)
}

// asMap normalizes a response to map[string]any, round-tripping structs
// through JSON.
func asMap(response any) (map[string]any, bool) {
	if m, ok := response.(map[string]any); ok {
		return m, true
	}

	data, err := json.Marshal(response)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

// asInt converts JSON number representations to int.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}
