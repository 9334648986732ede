package export

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/span"
)

const otlpTracesPath = "/v1/traces"

// scopeName and ScopeVersion identify this library in the OTLP
// instrumentation scope.
const (
	scopeName = "traceflow"

	// ScopeVersion is the library release reported to backends.
	ScopeVersion = "0.3.1"
)

// otlpReserved lists record keys mapped to dedicated protocol fields rather
// than span attributes.
var otlpReserved = map[string]struct{}{
	"trace_id":       {},
	"span_id":        {},
	"parent_span_id": {},
	"timestamp":      {},
	"duration_ms":    {},
	"name":           {},
	"status":         {},
}

// OTLPConfig configures the OTLP/HTTP adapter.
type OTLPConfig struct {
	// Endpoint is the collector base URL, e.g. http://localhost:4318. The
	// traces path is appended automatically when missing.
	Endpoint string

	// Headers carries extra request headers, typically authentication.
	Headers map[string]string

	// ServiceName is reported as the resource service.name. The exporter
	// version is reported as scope metadata.
	ServiceName string
	Version     string

	InsecureSkipVerify bool
	BatchSize          int
	FlushInterval      time.Duration

	Logger *zap.Logger
}

// OTLPExporter sends span records to an OpenTelemetry collector over
// OTLP/HTTP JSON. Compatible with Jaeger, Tempo, Zipkin and vendor
// collectors that accept OTLP.
type OTLPExporter struct {
	*batcher

	endpoint    string
	headers     map[string]string
	serviceName string
	version     string
	client      *http.Client
	logger      *zap.Logger
}

// OTLP/HTTP JSON envelope: resourceSpans -> scopeSpans -> spans.

type otlpKeyValue struct {
	Key   string         `json:"key"`
	Value map[string]any `json:"value"`
}

type otlpStatus struct {
	Code int `json:"code"`
}

type otlpSpan struct {
	TraceID           string         `json:"traceId"`
	SpanID            string         `json:"spanId"`
	ParentSpanID      string         `json:"parentSpanId,omitempty"`
	Name              string         `json:"name"`
	Kind              int            `json:"kind"`
	StartTimeUnixNano string         `json:"startTimeUnixNano"`
	EndTimeUnixNano   string         `json:"endTimeUnixNano"`
	Attributes        []otlpKeyValue `json:"attributes"`
	Status            otlpStatus     `json:"status"`
}

type otlpScopeSpans struct {
	Scope struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"scope"`
	Spans []otlpSpan `json:"spans"`
}

type otlpResourceSpans struct {
	Resource struct {
		Attributes []otlpKeyValue `json:"attributes"`
	} `json:"resource"`
	ScopeSpans []otlpScopeSpans `json:"scopeSpans"`
}

type otlpPayload struct {
	ResourceSpans []otlpResourceSpans `json:"resourceSpans"`
}

// NewOTLPExporter builds the adapter. All parameters have defaults.
func NewOTLPExporter(cfg OTLPConfig) *OTLPExporter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4318"
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if !strings.HasSuffix(endpoint, otlpTracesPath) {
		endpoint += otlpTracesPath
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "genai-app"
	}
	if cfg.Version == "" {
		cfg.Version = ScopeVersion
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &OTLPExporter{
		endpoint:    endpoint,
		headers:     cfg.Headers,
		serviceName: cfg.ServiceName,
		version:     cfg.Version,
		client:      newHTTPClient(cfg.InsecureSkipVerify),
		logger:      cfg.Logger.With(zap.String("exporter", "otlp")),
	}
	e.batcher = newBatcher(cfg.BatchSize, cfg.FlushInterval, e.sendBatch)
	return e
}

// Export delivers or enqueues one record.
func (e *OTLPExporter) Export(ctx context.Context, rec span.Record) bool {
	return e.enqueue(ctx, rec)
}

// ExportBatch delivers multiple records sequentially.
func (e *OTLPExporter) ExportBatch(ctx context.Context, recs []span.Record) bool {
	return exportEach(ctx, e, recs)
}

// HealthCheck assumes the collector is healthy; OTLP/HTTP has no standard
// liveness endpoint.
func (e *OTLPExporter) HealthCheck(ctx context.Context) bool { return true }

// convert transforms internal records into the OTLP envelope.
func (e *OTLPExporter) convert(batch []span.Record) otlpPayload {
	spans := make([]otlpSpan, 0, len(batch))
	for _, rec := range batch {
		startNS := recordStartNanos(rec)
		durationMS, _ := rec["duration_ms"].(float64)
		endNS := startNS + int64(durationMS*1e6)

		attrs := make([]otlpKeyValue, 0, len(rec))
		for key, value := range rec {
			if _, reserved := otlpReserved[key]; reserved {
				continue
			}
			attrs = append(attrs, otlpKeyValue{Key: key, Value: otlpValue(value)})
		}

		s := otlpSpan{
			TraceID:           stringField(rec, "trace_id", uuid.NewString()),
			SpanID:            stringField(rec, "span_id", strings.ReplaceAll(uuid.NewString(), "-", "")[:16]),
			Name:              stringField(rec, "name", "unknown"),
			Kind:              1, // SPAN_KIND_INTERNAL
			StartTimeUnixNano: strconv.FormatInt(startNS, 10),
			EndTimeUnixNano:   strconv.FormatInt(endNS, 10),
			Attributes:        attrs,
			Status:            otlpStatus{Code: 1}, // STATUS_CODE_OK
		}
		if isError(rec) {
			s.Status.Code = 2 // STATUS_CODE_ERROR
		}
		if parent, ok := rec["parent_span_id"].(string); ok && parent != "" {
			s.ParentSpanID = parent
		}
		spans = append(spans, s)
	}

	var rs otlpResourceSpans
	rs.Resource.Attributes = []otlpKeyValue{
		{Key: "service.name", Value: map[string]any{"stringValue": e.serviceName}},
	}
	var ss otlpScopeSpans
	ss.Scope.Name = scopeName
	ss.Scope.Version = e.version
	ss.Spans = spans
	rs.ScopeSpans = []otlpScopeSpans{ss}
	return otlpPayload{ResourceSpans: []otlpResourceSpans{rs}}
}

func (e *OTLPExporter) sendBatch(ctx context.Context, batch []span.Record) bool {
	if len(batch) == 0 {
		return true
	}

	body, err := json.Marshal(e.convert(batch))
	if err != nil {
		e.logger.Error("encode OTLP payload", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		e.logger.Error("build OTLP request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("OTLP send failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.logger.Error("OTLP collector rejected batch",
			zap.Int("status", resp.StatusCode), zap.Int("spans", len(batch)))
		return false
	}
	return true
}

// otlpValue discriminates an attribute value by type into the OTLP AnyValue
// shape. Integers are string-encoded per the OTLP JSON mapping.
func otlpValue(v any) map[string]any {
	switch val := v.(type) {
	case bool:
		return map[string]any{"boolValue": val}
	case int:
		return map[string]any{"intValue": strconv.Itoa(val)}
	case int64:
		return map[string]any{"intValue": strconv.FormatInt(val, 10)}
	case float64:
		return map[string]any{"doubleValue": val}
	case string:
		return map[string]any{"stringValue": val}
	default:
		return map[string]any{"stringValue": toString(val)}
	}
}

// recordStartNanos derives the span start from the record timestamp,
// falling back to now when absent or unparseable.
func recordStartNanos(rec span.Record) int64 {
	if ts, ok := rec["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t.UnixNano()
		}
	}
	return time.Now().UnixNano()
}
