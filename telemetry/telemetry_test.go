package telemetry

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/traceflow/span"
	"github.com/BaSui01/traceflow/testutil"
)

var (
	hexTraceID = regexp.MustCompile(`^[0-9a-f]{32}$`)
	hexSpanID  = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

func newTestTelemetry(t *testing.T) (*Telemetry, *testutil.CaptureExporter) {
	t.Helper()
	capture := testutil.NewCaptureExporter()
	tel := New("test-wf", capture, WithLogger(zaptest.NewLogger(t)))
	return tel, capture
}

func TestNew_Defaults(t *testing.T) {
	tel, _ := newTestTelemetry(t)
	assert.Equal(t, "test-wf", tel.WorkflowName())
	assert.Equal(t, "test-wf", tel.ServiceName(), "service name defaults to workflow name")

	svc := New("wf", testutil.NewCaptureExporter(), WithServiceName("svc"))
	assert.Equal(t, "svc", svc.ServiceName())
}

func TestStartSpan_GeneratesIDs(t *testing.T) {
	tel, _ := newTestTelemetry(t)

	ctx, s := tel.StartSpan(context.Background(), "op", span.TypeChain)

	assert.Regexp(t, hexTraceID, s.TraceID)
	assert.Regexp(t, hexSpanID, s.SpanID)
	assert.Empty(t, s.ParentSpanID, "root span has no parent")
	assert.Equal(t, s.TraceID, TraceID(ctx), "context carries the lazily created trace id")
	assert.Same(t, s, CurrentSpan(ctx))
}

func TestStartSpan_NestingLinksParent(t *testing.T) {
	tel, capture := newTestTelemetry(t)

	root := tel.NewTrace(context.Background())
	ctx, parent := tel.StartSpan(root, "parent", span.TypeChain)
	childCtx, child := tel.StartSpan(ctx, "child", span.TypeLLM)

	assert.Equal(t, parent.TraceID, child.TraceID, "children share the trace id")
	assert.Equal(t, parent.SpanID, child.ParentSpanID)

	tel.Finish(childCtx, child, nil)
	tel.Finish(ctx, parent, nil)

	recs := capture.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, parent.SpanID, recs[0]["parent_span_id"])
	assert.NotContains(t, recs[1], "parent_span_id")
}

func TestFinish_ExportsRecord(t *testing.T) {
	tel, capture := newTestTelemetry(t)

	ctx, s := tel.StartSpan(context.Background(), "op", span.TypeTool, span.WithTool("search"))
	ok := tel.Finish(ctx, s, nil)

	require.True(t, ok)
	rec := capture.Last()
	require.NotNil(t, rec)
	assert.Equal(t, "op", rec["name"])
	assert.Equal(t, "TOOL", rec["span_type"])
	assert.Equal(t, "test-wf", rec["workflow_name"])
	assert.Equal(t, "search", rec["tool_name"])
}

func TestWithSpan_Success(t *testing.T) {
	tel, capture := newTestTelemetry(t)

	var sawSpan *span.Span
	err := tel.WithSpan(context.Background(), "op", span.TypeChain,
		func(ctx context.Context, s *span.Span) error {
			sawSpan = s
			assert.Same(t, s, CurrentSpan(ctx))
			return nil
		})

	require.NoError(t, err)
	require.NotNil(t, sawSpan)
	require.Equal(t, 1, capture.Len(), "span exported exactly once")
	assert.Equal(t, "OK", capture.Last()["status"])
}

func TestWithSpan_ErrorRecordedAndReturned(t *testing.T) {
	tel, capture := newTestTelemetry(t)

	boom := errors.New("boom")
	err := tel.WithSpan(context.Background(), "op", span.TypeLLM,
		func(ctx context.Context, s *span.Span) error { return boom })

	assert.Same(t, boom, err, "error is returned unchanged")
	require.Equal(t, 1, capture.Len())
	rec := capture.Last()
	assert.Equal(t, "ERROR", rec["status"])
	assert.Equal(t, 1, rec["is_error"])
	assert.Equal(t, "boom", rec["error_message"])
}

func TestWithSpan_ExportFailureDoesNotMaskResult(t *testing.T) {
	tel, capture := newTestTelemetry(t)
	capture.FailAll()

	err := tel.WithSpan(context.Background(), "op", span.TypeChain,
		func(ctx context.Context, s *span.Span) error { return nil })

	assert.NoError(t, err, "telemetry failure is invisible to the caller")
	assert.Equal(t, 1, capture.Len())
}

func TestWithSpan_PanicExportedAndRethrown(t *testing.T) {
	tel, capture := newTestTelemetry(t)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = tel.WithSpan(context.Background(), "op", span.TypeTool,
			func(ctx context.Context, s *span.Span) error { panic("kaboom") })
	})

	require.Equal(t, 1, capture.Len(), "panicking spans are still exported once")
	rec := capture.Last()
	assert.Equal(t, "ERROR", rec["status"])
	assert.Contains(t, rec["error_message"], "panic: kaboom")
}

func TestSendSpan_CompletedSpan(t *testing.T) {
	tel, capture := newTestTelemetry(t)

	ok := tel.SendSpan(context.Background(), span.TypeLLM, "chat", 42.5,
		span.WithModel("gpt-4o", "openai"), span.WithTokens(10, 5))

	require.True(t, ok)
	rec := capture.Last()
	assert.Equal(t, 42.5, rec["duration_ms"])
	assert.Equal(t, "gpt-4o", rec["model_name"])
	assert.Equal(t, 10, rec["input_tokens"])
	assert.Regexp(t, hexTraceID, rec["trace_id"])
}

func TestSendSpan_InheritsTraceAndParent(t *testing.T) {
	tel, capture := newTestTelemetry(t)

	ctx, parent := tel.StartSpan(context.Background(), "parent", span.TypeChain)
	tel.SendSpan(ctx, span.TypeTool, "lookup", 1.0)

	rec := capture.Last()
	assert.Equal(t, parent.TraceID, rec["trace_id"])
	assert.Equal(t, parent.SpanID, rec["parent_span_id"])
}

func TestSendError_RecordsFailure(t *testing.T) {
	tel, capture := newTestTelemetry(t)

	ok := tel.SendError(context.Background(), span.TypeTool, "lookup", 3.0,
		errors.New("timeout"), span.WithTool("search"))

	require.True(t, ok)
	rec := capture.Last()
	assert.Equal(t, "ERROR", rec["status"])
	assert.Equal(t, "timeout", rec["error_message"])
	assert.Equal(t, 3.0, rec["duration_ms"])
}

func TestNewTrace_DistinctIDs(t *testing.T) {
	tel, _ := newTestTelemetry(t)

	a := TraceID(tel.NewTrace(context.Background()))
	b := TraceID(tel.NewTrace(context.Background()))
	assert.Regexp(t, hexTraceID, a)
	assert.NotEqual(t, a, b)
}

func TestShutdown_StopsExporter(t *testing.T) {
	tel, capture := newTestTelemetry(t)
	tel.Shutdown()
	assert.Equal(t, 1, capture.StopCalls)
}

func TestHealthCheck_Delegates(t *testing.T) {
	tel, _ := newTestTelemetry(t)
	assert.True(t, tel.HealthCheck(context.Background()))
}
