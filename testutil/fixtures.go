package testutil

import "github.com/BaSui01/traceflow/span"

// OpenAIResponse builds a chat completion response map with the given
// content and usage counts.
func OpenAIResponse(content string, promptTokens, completionTokens int) map[string]any {
	return map[string]any{
		"id":    "chatcmpl-test-001",
		"model": "gpt-4o",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	}
}

// AnthropicResponse builds a messages API response map with the given
// content and usage counts.
func AnthropicResponse(content string, inputTokens, outputTokens int) map[string]any {
	return map[string]any{
		"id":    "msg-test-001",
		"model": "claude-sonnet-4",
		"content": []any{
			map[string]any{"type": "text", "text": content},
		},
		"usage": map[string]any{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
		},
	}
}

// LLMRecord builds a finished LLM span record with the fields exporter
// tests typically inspect.
func LLMRecord(name string) span.Record {
	return span.Record{
		"trace_id":       "0123456789abcdef0123456789abcdef",
		"span_id":        "0123456789abcdef",
		"name":           name,
		"span_type":      "LLM",
		"workflow_name":  "test-workflow",
		"timestamp":      "2026-08-30T10:00:00Z",
		"duration_ms":    150.5,
		"status":         "OK",
		"is_error":       0,
		"model_name":     "gpt-4o",
		"model_provider": "openai",
		"input_tokens":   100,
		"output_tokens":  50,
	}
}

// ErrorRecord builds a failed tool span record.
func ErrorRecord(name string) span.Record {
	return span.Record{
		"trace_id":      "fedcba9876543210fedcba9876543210",
		"span_id":       "fedcba9876543210",
		"name":          name,
		"span_type":     "TOOL",
		"workflow_name": "test-workflow",
		"timestamp":     "2026-08-30T10:00:01Z",
		"duration_ms":   12.0,
		"status":        "ERROR",
		"is_error":      1,
		"error_message": "connection refused",
		"error_type":    "*net.OpError",
	}
}
