package telemetry

import (
	"context"
	"math"
	"time"

	"github.com/BaSui01/traceflow/extract"
	"github.com/BaSui01/traceflow/span"
)

// Typed tracing helpers, one per span type. Each measures the wrapped call,
// exports exactly one completed span, and returns the call's result and
// error unchanged.

// TraceLLM traces a model call. Token counts are extracted from the returned
// response when it carries a usage block, so fn should return the full
// client response rather than just the content.
func (t *Telemetry) TraceLLM(ctx context.Context, name, modelName, modelProvider string, fn func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()
	result, err := fn(ctx)
	duration := elapsedMS(start)

	if err != nil {
		t.SendError(ctx, span.TypeLLM, name, duration, err,
			span.WithModel(modelName, modelProvider))
		return result, err
	}

	in, out := extract.Tokens(result)
	t.SendSpan(ctx, span.TypeLLM, name, duration,
		span.WithModel(modelName, modelProvider),
		span.WithTokens(in, out))
	return result, nil
}

// TraceEmbedding traces an embedding call.
func (t *Telemetry) TraceEmbedding(ctx context.Context, name, model string, fn func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()
	result, err := fn(ctx)
	duration := elapsedMS(start)

	if err != nil {
		t.SendError(ctx, span.TypeEmbedding, name, duration, err,
			span.WithEmbedding(model, 0))
		return result, err
	}

	in, _ := extract.Tokens(result)
	t.SendSpan(ctx, span.TypeEmbedding, name, duration,
		span.WithEmbedding(model, 0),
		span.WithTokens(in, 0))
	return result, nil
}

// TraceRetrieval traces a vector-store lookup. fn reports how many
// documents it retrieved.
func (t *Telemetry) TraceRetrieval(ctx context.Context, name, vectorStore string, fn func(ctx context.Context) (int, error)) (int, error) {
	start := time.Now()
	docs, err := fn(ctx)
	duration := elapsedMS(start)

	if err != nil {
		t.SendError(ctx, span.TypeRetriever, name, duration, err,
			span.WithRetrieval(vectorStore, 0))
		return docs, err
	}

	t.SendSpan(ctx, span.TypeRetriever, name, duration,
		span.WithRetrieval(vectorStore, docs))
	return docs, nil
}

// TraceTool traces a tool invocation.
func (t *Telemetry) TraceTool(ctx context.Context, name, toolName string, fn func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()
	result, err := fn(ctx)
	duration := elapsedMS(start)

	if err != nil {
		t.SendError(ctx, span.TypeTool, name, duration, err, span.WithTool(toolName))
		return result, err
	}
	t.SendSpan(ctx, span.TypeTool, name, duration, span.WithTool(toolName))
	return result, nil
}

// TraceChain traces a chain/pipeline run. A chain starts a new trace, so
// everything inside it shares one trace id.
func (t *Telemetry) TraceChain(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx = t.NewTrace(ctx)
	start := time.Now()
	err := fn(ctx)
	duration := elapsedMS(start)

	if err != nil {
		t.SendError(ctx, span.TypeChain, name, duration, err)
		return err
	}
	t.SendSpan(ctx, span.TypeChain, name, duration)
	return nil
}

// TraceAgent traces an agent run, starting a new trace like TraceChain.
func (t *Telemetry) TraceAgent(ctx context.Context, name, agentName, agentType string, fn func(ctx context.Context) error) error {
	ctx = t.NewTrace(ctx)
	start := time.Now()
	err := fn(ctx)
	duration := elapsedMS(start)

	if err != nil {
		t.SendError(ctx, span.TypeAgent, name, duration, err,
			span.WithAgent(agentName, agentType))
		return err
	}
	t.SendSpan(ctx, span.TypeAgent, name, duration,
		span.WithAgent(agentName, agentType))
	return nil
}

// elapsedMS returns the time since start in milliseconds, rounded to two
// decimal places.
func elapsedMS(start time.Time) float64 {
	ms := float64(time.Since(start)) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
