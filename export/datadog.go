package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/span"
)

// DatadogConfig configures the Datadog trace-intake adapter.
type DatadogConfig struct {
	// APIKey authenticates against the intake. Required.
	APIKey string

	// Site selects the Datadog region domain, e.g. datadoghq.com or
	// datadoghq.eu. The ingestion endpoint is derived from it.
	Site string

	ServiceName string
	Env         string // environment tag, defaults to "production"

	BatchSize     int
	FlushInterval time.Duration

	Logger *zap.Logger
}

// DatadogExporter sends span records to the Datadog trace intake
// (PUT api/v0.2/traces). Each record becomes its own single-span trace; no
// multi-span trace assembly is performed.
type DatadogExporter struct {
	*batcher

	endpoint    string
	apiKey      string
	serviceName string
	env         string
	client      *http.Client
	logger      *zap.Logger
}

// ddSpan is the vendor trace-span shape.
type ddSpan struct {
	TraceID  uint64             `json:"trace_id"`
	SpanID   uint64             `json:"span_id"`
	ParentID uint64             `json:"parent_id,omitempty"`
	Name     string             `json:"name"`
	Resource string             `json:"resource"`
	Service  string             `json:"service"`
	Type     string             `json:"type"`
	Start    int64              `json:"start"`
	Duration int64              `json:"duration"`
	Error    int                `json:"error,omitempty"`
	Meta     map[string]string  `json:"meta"`
	Metrics  map[string]float64 `json:"metrics"`
}

// NewDatadogExporter validates the API key and builds the adapter.
func NewDatadogExporter(cfg DatadogConfig) (*DatadogExporter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("datadog exporter requires an API key")
	}
	if cfg.Site == "" {
		cfg.Site = "datadoghq.com"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "genai-app"
	}
	if cfg.Env == "" {
		cfg.Env = "production"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &DatadogExporter{
		endpoint:    fmt.Sprintf("https://trace.agent.%s/api/v0.2/traces", cfg.Site),
		apiKey:      cfg.APIKey,
		serviceName: cfg.ServiceName,
		env:         cfg.Env,
		client:      newHTTPClient(false),
		logger:      cfg.Logger.With(zap.String("exporter", "datadog")),
	}
	e.batcher = newBatcher(cfg.BatchSize, cfg.FlushInterval, e.sendBatch)
	return e, nil
}

// Export delivers or enqueues one record.
func (e *DatadogExporter) Export(ctx context.Context, rec span.Record) bool {
	return e.enqueue(ctx, rec)
}

// ExportBatch delivers multiple records sequentially.
func (e *DatadogExporter) ExportBatch(ctx context.Context, recs []span.Record) bool {
	return exportEach(ctx, e, recs)
}

// HealthCheck assumes the intake is healthy; it exposes no liveness probe.
func (e *DatadogExporter) HealthCheck(ctx context.Context) bool { return true }

// convert maps records to the vendor payload: a JSON array of per-trace
// span lists.
func (e *DatadogExporter) convert(batch []span.Record) [][]ddSpan {
	traces := make([][]ddSpan, 0, len(batch))
	for _, rec := range batch {
		name := stringField(rec, "name", "unknown")
		s := ddSpan{
			TraceID:  ddID(stringField(rec, "trace_id", "")),
			SpanID:   ddID(stringField(rec, "span_id", "")),
			Name:     name,
			Resource: name,
			Service:  e.serviceName,
			Type:     "custom",
			Start:    recordStartNanos(rec),
			Duration: int64(floatField(rec, "duration_ms") * 1e6),
			Meta: map[string]string{
				"env":            e.env,
				"span_type":      stringField(rec, "span_type", "UNKNOWN"),
				"model_name":     stringField(rec, "model_name", ""),
				"model_provider": stringField(rec, "model_provider", ""),
				"workflow_name":  stringField(rec, "workflow_name", ""),
			},
			Metrics: map[string]float64{
				"input_tokens":  float64(intField(rec, "input_tokens")),
				"output_tokens": float64(intField(rec, "output_tokens")),
				"duration_ms":   floatField(rec, "duration_ms"),
			},
		}
		if isError(rec) {
			s.Error = 1
			s.Meta["error.message"] = stringField(rec, "error_message", "")
			s.Meta["error.type"] = stringField(rec, "error_type", "")
		}
		if parent := stringField(rec, "parent_span_id", ""); parent != "" {
			s.ParentID = ddID(parent)
		}
		traces = append(traces, []ddSpan{s})
	}
	return traces
}

func (e *DatadogExporter) sendBatch(ctx context.Context, batch []span.Record) bool {
	if len(batch) == 0 {
		return true
	}

	body, err := json.Marshal(e.convert(batch))
	if err != nil {
		e.logger.Error("encode datadog payload", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.endpoint, bytes.NewReader(body))
	if err != nil {
		e.logger.Error("build datadog request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("datadog send failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.logger.Error("datadog intake rejected batch",
			zap.Int("status", resp.StatusCode), zap.Int("spans", len(batch)))
		return false
	}
	return true
}

// ddID derives a numeric id from a hex id string by truncating to 16 hex
// characters. Unparseable ids map to zero.
func ddID(hexID string) uint64 {
	if len(hexID) > 16 {
		hexID = hexID[:16]
	}
	if hexID == "" {
		return 0
	}
	n, err := strconv.ParseUint(hexID, 16, 64)
	if err != nil {
		return 0
	}
	return n
}
