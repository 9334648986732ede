package span

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSpan(typ Type, opts ...Option) *Span {
	return New("trace-1", "span-1", "op", typ, "wf", opts...)
}

func TestNew_Defaults(t *testing.T) {
	s := newTestSpan(TypeChain)

	assert.Equal(t, "trace-1", s.TraceID)
	assert.Equal(t, "span-1", s.SpanID)
	assert.Equal(t, StatusOK, s.Status)
	assert.Zero(t, s.IsError)
	assert.False(t, s.StartTime.IsZero())
	assert.Equal(t, time.UTC, s.StartTime.Location())
}

func TestRecord_AlwaysPresentKeys(t *testing.T) {
	s := newTestSpan(TypeTool)
	s.Finish(nil)
	rec := s.Record()

	for _, key := range []string{
		"trace_id", "span_id", "name", "span_type",
		"timestamp", "duration_ms", "status", "is_error",
	} {
		assert.Contains(t, rec, key, "key %s must always be present", key)
	}
	assert.Equal(t, "TOOL", rec["span_type"])
	assert.Equal(t, "OK", rec["status"])
	assert.Equal(t, 0, rec["is_error"])
}

func TestRecord_OmitsUnsetFields(t *testing.T) {
	s := newTestSpan(TypeChain)
	s.Finish(nil)
	rec := s.Record()

	assert.NotContains(t, rec, "parent_span_id")
	assert.NotContains(t, rec, "error_message")
	assert.NotContains(t, rec, "model_name")
	assert.NotContains(t, rec, "input_tokens")
	assert.NotContains(t, rec, "temperature")
	assert.NotContains(t, rec, "tool_name")
}

func TestRecord_LLMAlwaysCarriesTokens(t *testing.T) {
	s := newTestSpan(TypeLLM, WithModel("gpt-4o", "openai"))
	s.Finish(nil)
	rec := s.Record()

	// Zero token counts are still reported for LLM spans.
	assert.Equal(t, 0, rec["input_tokens"])
	assert.Equal(t, 0, rec["output_tokens"])
	assert.Equal(t, "gpt-4o", rec["model_name"])
	assert.Equal(t, "openai", rec["model_provider"])
}

func TestRecord_LLMWithUsage(t *testing.T) {
	s := newTestSpan(TypeLLM,
		WithModel("claude-sonnet-4", "anthropic"),
		WithTokens(120, 45),
		WithTemperature(0.7),
		WithMaxTokens(1024),
	)
	s.Finish(nil)
	rec := s.Record()

	assert.Equal(t, 120, rec["input_tokens"])
	assert.Equal(t, 45, rec["output_tokens"])
	assert.Equal(t, 0.7, rec["temperature"])
	assert.Equal(t, 1024, rec["max_tokens"])
}

func TestRecord_EmbeddingAndRetrievalFields(t *testing.T) {
	s := newTestSpan(TypeRetriever,
		WithRetrieval("qdrant", 8),
		WithRelevanceScore(0.92),
	)
	s.Finish(nil)
	rec := s.Record()

	assert.Equal(t, "qdrant", rec["vector_store"])
	assert.Equal(t, 8, rec["documents_retrieved"])
	assert.Equal(t, 0.92, rec["relevance_score"])

	e := newTestSpan(TypeEmbedding, WithEmbedding("text-embedding-3-small", 1536))
	e.Finish(nil)
	erec := e.Record()

	assert.Equal(t, "text-embedding-3-small", erec["embedding_model"])
	assert.Equal(t, 1536, erec["embedding_dimensions"])
}

func TestFinish_WithError(t *testing.T) {
	s := newTestSpan(TypeTool, WithTool("search"))
	s.Finish(errors.New("boom"))
	rec := s.Record()

	assert.Equal(t, StatusError, rec["status"])
	assert.Equal(t, 1, rec["is_error"])
	assert.Equal(t, "boom", rec["error_message"])
	assert.Equal(t, "*errors.errorString", rec["error_type"])
	assert.Equal(t, "search", rec["tool_name"])
}

func TestFinish_DurationRounding(t *testing.T) {
	s := newTestSpan(TypeChain)
	time.Sleep(5 * time.Millisecond)
	s.Finish(nil)

	require.Greater(t, s.DurationMS, 0.0)
	// Two decimal places at most.
	scaled := s.DurationMS * 100
	assert.InDelta(t, scaled, float64(int64(scaled+0.5)), 1e-6)
}

func TestRecord_AttributesMergeLast(t *testing.T) {
	s := newTestSpan(TypeLLM,
		WithModel("gpt-4o", "openai"),
		WithAttribute("request_id", "req-42"),
	)
	s.SetAttribute("status", "CUSTOM")
	s.Finish(nil)
	rec := s.Record()

	assert.Equal(t, "req-42", rec["request_id"])
	// Attributes win over built-in fields.
	assert.Equal(t, "CUSTOM", rec["status"])
}

func TestRecord_ParentAndWorkflow(t *testing.T) {
	s := New("t", "child", "op", TypeAgent, "pipeline",
		WithParent("parent-1"),
		WithAgent("planner", "react"),
	)
	s.Finish(nil)
	rec := s.Record()

	assert.Equal(t, "parent-1", rec["parent_span_id"])
	assert.Equal(t, "pipeline", rec["workflow_name"])
	assert.Equal(t, "planner", rec["agent_name"])
	assert.Equal(t, "react", rec["agent_type"])
}

func TestRecord_TimestampIsRFC3339(t *testing.T) {
	s := newTestSpan(TypeChain)
	s.Finish(nil)
	rec := s.Record()

	ts, ok := rec["timestamp"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)
}
