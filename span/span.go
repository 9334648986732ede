// Package span defines the span value object and its sparse record encoding.
//
// A Span is created when a traced operation begins, mutated exactly once at
// completion via [Span.Finish], and then converted to an immutable [Record]
// for export. Adapters own the record after export; the span itself is never
// mutated again.
package span

import (
	"fmt"
	"math"
	"time"
)

// Type classifies the traced operation.
type Type string

const (
	TypeLLM       Type = "LLM"
	TypeEmbedding Type = "EMBEDDING"
	TypeRetriever Type = "RETRIEVER"
	TypeTool      Type = "TOOL"
	TypeChain     Type = "CHAIN"
	TypeAgent     Type = "AGENT"
)

// Span status values.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Record is the serialized form of a span handed to exporters. Optional
// fields are omitted when empty or zero; custom attributes merge last and
// may override any key.
type Record map[string]any

// Span represents a single timed unit of work within a trace.
type Span struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Name         string
	Type         Type
	WorkflowName string

	StartTime  time.Time
	EndTime    time.Time
	DurationMS float64

	Status       string
	IsError      int
	ErrorMessage string
	ErrorType    string

	// LLM fields
	ModelName     string
	ModelProvider string
	InputTokens   int
	OutputTokens  int
	Temperature   float64
	MaxTokens     int

	// Embedding fields
	EmbeddingModel      string
	EmbeddingDimensions int

	// Retrieval fields
	VectorStore        string
	DocumentsRetrieved int
	RelevanceScore     float64

	// Tool / agent fields
	ToolName  string
	AgentName string
	AgentType string

	attributes map[string]any
}

// Option configures optional span fields at creation time.
type Option func(*Span)

// WithParent links the span to its enclosing span.
func WithParent(parentSpanID string) Option {
	return func(s *Span) { s.ParentSpanID = parentSpanID }
}

// WithModel sets the model identity for LLM spans.
func WithModel(name, provider string) Option {
	return func(s *Span) { s.ModelName = name; s.ModelProvider = provider }
}

// WithTokens sets input/output token counts.
func WithTokens(input, output int) Option {
	return func(s *Span) { s.InputTokens = input; s.OutputTokens = output }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(s *Span) { s.Temperature = t }
}

// WithMaxTokens sets the request token cap.
func WithMaxTokens(n int) Option {
	return func(s *Span) { s.MaxTokens = n }
}

// WithEmbedding sets embedding model identity and dimensionality.
func WithEmbedding(model string, dimensions int) Option {
	return func(s *Span) { s.EmbeddingModel = model; s.EmbeddingDimensions = dimensions }
}

// WithRetrieval sets the vector store name and retrieved document count.
func WithRetrieval(store string, documents int) Option {
	return func(s *Span) { s.VectorStore = store; s.DocumentsRetrieved = documents }
}

// WithRelevanceScore sets the retrieval relevance score.
func WithRelevanceScore(score float64) Option {
	return func(s *Span) { s.RelevanceScore = score }
}

// WithTool sets the tool name for TOOL spans.
func WithTool(name string) Option {
	return func(s *Span) { s.ToolName = name }
}

// WithAgent sets agent identity for AGENT spans.
func WithAgent(name, agentType string) Option {
	return func(s *Span) { s.AgentName = name; s.AgentType = agentType }
}

// WithAttribute sets a free-form attribute merged into the exported record.
func WithAttribute(key string, value any) Option {
	return func(s *Span) { s.SetAttribute(key, value) }
}

// New creates an open span. The start time is captured immediately.
func New(traceID, spanID, name string, typ Type, workflowName string, opts ...Option) *Span {
	s := &Span{
		TraceID:      traceID,
		SpanID:       spanID,
		Name:         name,
		Type:         typ,
		WorkflowName: workflowName,
		StartTime:    time.Now().UTC(),
		Status:       StatusOK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAttribute sets a custom attribute on the span.
func (s *Span) SetAttribute(key string, value any) {
	if s.attributes == nil {
		s.attributes = make(map[string]any)
	}
	s.attributes[key] = value
}

// SetError marks the span as failed and records the error detail.
func (s *Span) SetError(err error) {
	s.Status = StatusError
	s.IsError = 1
	s.ErrorMessage = err.Error()
	s.ErrorType = fmt.Sprintf("%T", err)
}

// Finish completes the span, computing duration_ms (rounded to two decimal
// places) and recording err when non-nil. It must be called exactly once.
func (s *Span) Finish(err error) {
	s.EndTime = time.Now().UTC()
	ms := float64(s.EndTime.Sub(s.StartTime)) / float64(time.Millisecond)
	s.DurationMS = math.Round(ms*100) / 100
	if err != nil {
		s.SetError(err)
	}
}

// Record converts the span into its sparse exported form. The returned map
// always carries trace_id, span_id, name, span_type, timestamp, duration_ms,
// status and is_error; every other field is included only when set. LLM
// spans additionally always carry input_tokens and output_tokens, even when
// zero. Custom attributes merge last and may override any field.
func (s *Span) Record() Record {
	rec := Record{
		"trace_id":    s.TraceID,
		"span_id":     s.SpanID,
		"name":        s.Name,
		"span_type":   string(s.Type),
		"timestamp":   s.StartTime.Format(time.RFC3339Nano),
		"duration_ms": s.DurationMS,
		"status":      s.Status,
		"is_error":    s.IsError,
	}

	putString(rec, "workflow_name", s.WorkflowName)
	putString(rec, "parent_span_id", s.ParentSpanID)
	putString(rec, "error_message", s.ErrorMessage)
	putString(rec, "error_type", s.ErrorType)
	putString(rec, "model_name", s.ModelName)
	putString(rec, "model_provider", s.ModelProvider)
	putInt(rec, "input_tokens", s.InputTokens)
	putInt(rec, "output_tokens", s.OutputTokens)
	putFloat(rec, "temperature", s.Temperature)
	putInt(rec, "max_tokens", s.MaxTokens)
	putString(rec, "embedding_model", s.EmbeddingModel)
	putInt(rec, "embedding_dimensions", s.EmbeddingDimensions)
	putString(rec, "vector_store", s.VectorStore)
	putInt(rec, "documents_retrieved", s.DocumentsRetrieved)
	putFloat(rec, "relevance_score", s.RelevanceScore)
	putString(rec, "tool_name", s.ToolName)
	putString(rec, "agent_name", s.AgentName)
	putString(rec, "agent_type", s.AgentType)

	// Token counts are part of the contract for LLM spans even at zero.
	if s.Type == TypeLLM {
		rec["input_tokens"] = s.InputTokens
		rec["output_tokens"] = s.OutputTokens
	}

	for k, v := range s.attributes {
		rec[k] = v
	}
	return rec
}

func putString(rec Record, key, val string) {
	if val != "" {
		rec[key] = val
	}
}

func putInt(rec Record, key string, val int) {
	if val != 0 {
		rec[key] = val
	}
}

func putFloat(rec Record, key string, val float64) {
	if val != 0 {
		rec[key] = val
	}
}
