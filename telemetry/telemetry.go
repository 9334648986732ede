// Package telemetry owns the active exporter and the trace bookkeeping that
// links spans into traces: trace-id generation and parent/child linkage.
//
// Parent linkage rides on context.Context rather than thread identity:
// StartSpan returns a derived context carrying the new span, and any span
// started from that context becomes its child. This follows request flow
// across goroutines, which per-OS-thread stacks cannot do in Go.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/export"
	"github.com/BaSui01/traceflow/internal/metrics"
	"github.com/BaSui01/traceflow/span"
)

type traceIDKey struct{}
type currentSpanKey struct{}

// Telemetry is the façade handed to instrumentation call sites. It owns
// exactly one active exporter, possibly a fan-out over several backends.
type Telemetry struct {
	workflowName string
	serviceName  string
	exporter     export.Exporter
	logger       *zap.Logger
	metrics      *metrics.Collector
}

// HandleOption configures a Telemetry handle.
type HandleOption func(*Telemetry)

// WithServiceName overrides the service name (defaults to the workflow name).
func WithServiceName(name string) HandleOption {
	return func(t *Telemetry) { t.serviceName = name }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) HandleOption {
	return func(t *Telemetry) { t.logger = logger }
}

// New creates a telemetry handle over the given exporter. The exporter must
// already be started by the caller (Configure does this).
func New(workflowName string, exporter export.Exporter, opts ...HandleOption) *Telemetry {
	t := &Telemetry{
		workflowName: workflowName,
		serviceName:  workflowName,
		exporter:     exporter,
		logger:       zap.NewNop(),
		metrics:      metrics.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(zap.String("component", "telemetry"))
	return t
}

// WorkflowName returns the workflow this handle records spans for.
func (t *Telemetry) WorkflowName() string { return t.workflowName }

// ServiceName returns the service name reported to backends.
func (t *Telemetry) ServiceName() string { return t.serviceName }

// Exporter returns the active exporter.
func (t *Telemetry) Exporter() export.Exporter { return t.exporter }

// Shutdown stops the exporter, flushing anything buffered.
func (t *Telemetry) Shutdown() {
	t.exporter.Stop()
}

// NewTrace returns a context carrying a fresh trace id. Spans started from
// the returned context are grouped into the new trace.
func (t *Telemetry) NewTrace(ctx context.Context) context.Context {
	return context.WithValue(ctx, traceIDKey{}, newTraceID())
}

// TraceID returns the trace id carried by ctx, or "" when none was started.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// CurrentSpan returns the in-flight span carried by ctx, or nil.
func CurrentSpan(ctx context.Context) *span.Span {
	s, _ := ctx.Value(currentSpanKey{}).(*span.Span)
	return s
}

// StartSpan opens a span. The trace id is taken from ctx, lazily generated
// when absent; the parent span id is the span currently carried by ctx.
// The returned context carries both the (possibly new) trace id and the new
// span, and must be passed to Finish.
func (t *Telemetry) StartSpan(ctx context.Context, name string, typ span.Type, opts ...span.Option) (context.Context, *span.Span) {
	traceID := TraceID(ctx)
	if traceID == "" {
		traceID = newTraceID()
		ctx = context.WithValue(ctx, traceIDKey{}, traceID)
	}

	if parent := CurrentSpan(ctx); parent != nil {
		opts = append([]span.Option{span.WithParent(parent.SpanID)}, opts...)
	}

	s := span.New(traceID, newSpanID(), name, typ, t.workflowName, opts...)
	ctx = context.WithValue(ctx, currentSpanKey{}, s)
	t.metrics.SpanStarted(string(typ))
	return ctx, s
}

// Finish completes the span and exports its record. The span must not be
// used afterwards.
func (t *Telemetry) Finish(ctx context.Context, s *span.Span, err error) bool {
	s.Finish(err)
	t.metrics.SpanFinished(string(s.Type), s.Status)
	ok := t.exporter.Export(ctx, s.Record())
	if !ok {
		t.metrics.ExportFailed()
		t.logger.Debug("span export failed",
			zap.String("span_id", s.SpanID), zap.String("name", s.Name))
	}
	return ok
}

// WithSpan runs fn inside a new span, guaranteeing the span is finished and
// exported exactly once on every exit path. An error returned by fn is
// recorded on the span and returned unchanged; a panic is recorded and then
// re-raised. Telemetry failures never mask the application error.
func (t *Telemetry) WithSpan(ctx context.Context, name string, typ span.Type, fn func(ctx context.Context, s *span.Span) error, opts ...span.Option) error {
	ctx, s := t.StartSpan(ctx, name, typ, opts...)

	done := false
	defer func() {
		if done {
			return
		}
		// fn panicked: record it, export, and let the panic continue.
		if r := recover(); r != nil {
			t.Finish(ctx, s, fmt.Errorf("panic: %v", r))
			panic(r)
		}
		t.Finish(ctx, s, nil)
	}()

	err := fn(ctx, s)
	done = true
	t.Finish(ctx, s, err)
	return err
}

// SendSpan exports an already-completed span directly: duration and outcome
// are known, so no open span is created. It links to the current span in
// ctx as parent and reports whether the export succeeded.
func (t *Telemetry) SendSpan(ctx context.Context, typ span.Type, name string, durationMS float64, opts ...span.Option) bool {
	traceID := TraceID(ctx)
	if traceID == "" {
		traceID = newTraceID()
	}
	if parent := CurrentSpan(ctx); parent != nil {
		opts = append([]span.Option{span.WithParent(parent.SpanID)}, opts...)
	}

	s := span.New(traceID, newSpanID(), name, typ, t.workflowName, opts...)
	s.DurationMS = durationMS
	return t.export(ctx, s)
}

// SendError exports a completed error span.
func (t *Telemetry) SendError(ctx context.Context, typ span.Type, name string, durationMS float64, err error, opts ...span.Option) bool {
	traceID := TraceID(ctx)
	if traceID == "" {
		traceID = newTraceID()
	}
	if parent := CurrentSpan(ctx); parent != nil {
		opts = append([]span.Option{span.WithParent(parent.SpanID)}, opts...)
	}

	s := span.New(traceID, newSpanID(), name, typ, t.workflowName, opts...)
	s.DurationMS = durationMS
	s.SetError(err)
	return t.export(ctx, s)
}

// export sends a completed span's record and counts the outcome.
func (t *Telemetry) export(ctx context.Context, s *span.Span) bool {
	ok := t.exporter.Export(ctx, s.Record())
	if !ok {
		t.metrics.ExportFailed()
	}
	return ok
}

// HealthCheck probes the active exporter.
func (t *Telemetry) HealthCheck(ctx context.Context) bool {
	return t.exporter.HealthCheck(ctx)
}

// newTraceID returns a 32-hex-character trace id.
func newTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// newSpanID returns a 16-hex-character span id.
func newSpanID() string {
	return newTraceID()[:16]
}
