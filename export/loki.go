package export

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/span"
)

const lokiPushPath = "/loki/api/v1/push"

// LokiConfig configures the label-stream log adapter.
type LokiConfig struct {
	// URL is the Loki base URL. Defaults to http://localhost:3100.
	URL string

	// TenantID sets the X-Scope-OrgID header for multi-tenant setups.
	TenantID string

	// Optional basic auth.
	Username string
	Password string

	// Labels is the default label set applied to every stream. Defaults to
	// {job="traceflow"}.
	Labels map[string]string

	BatchSize     int
	FlushInterval time.Duration

	Logger *zap.Logger
}

// LokiExporter pushes span records to Grafana Loki as JSON log lines
// grouped into one stream per unique label combination.
type LokiExporter struct {
	*batcher

	url      string
	tenantID string
	username string
	password string
	labels   map[string]string
	client   *http.Client
	logger   *zap.Logger
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type lokiPayload struct {
	Streams []lokiStream `json:"streams"`
}

// NewLokiExporter builds the adapter. All parameters have defaults.
func NewLokiExporter(cfg LokiConfig) *LokiExporter {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:3100"
	}
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{"job": "traceflow"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &LokiExporter{
		url:      strings.TrimRight(cfg.URL, "/") + lokiPushPath,
		tenantID: cfg.TenantID,
		username: cfg.Username,
		password: cfg.Password,
		labels:   cfg.Labels,
		client:   newHTTPClient(false),
		logger:   cfg.Logger.With(zap.String("exporter", "loki")),
	}
	e.batcher = newBatcher(cfg.BatchSize, cfg.FlushInterval, e.sendBatch)
	return e
}

// Export delivers or enqueues one record as a log entry.
func (e *LokiExporter) Export(ctx context.Context, rec span.Record) bool {
	return e.enqueue(ctx, rec)
}

// ExportBatch delivers multiple records sequentially.
func (e *LokiExporter) ExportBatch(ctx context.Context, recs []span.Record) bool {
	return exportEach(ctx, e, recs)
}

// HealthCheck assumes Loki is healthy.
func (e *LokiExporter) HealthCheck(ctx context.Context) bool { return true }

// streamLabels derives the label set for one record: the default labels
// plus span_type, model_name and workflow_name.
func (e *LokiExporter) streamLabels(rec span.Record) map[string]string {
	labels := make(map[string]string, len(e.labels)+3)
	for k, v := range e.labels {
		labels[k] = v
	}
	labels["span_type"] = stringField(rec, "span_type", "UNKNOWN")
	labels["model_name"] = stringField(rec, "model_name", "unknown")
	labels["workflow_name"] = stringField(rec, "workflow_name", "unknown")
	return labels
}

// sendBatch groups the batch by label set into streams, one value pair per
// record in processing order, and pushes all streams in one payload.
func (e *LokiExporter) sendBatch(ctx context.Context, batch []span.Record) bool {
	if len(batch) == 0 {
		return true
	}

	streams := make(map[string]*lokiStream)
	var order []string
	for _, rec := range batch {
		labels := e.streamLabels(rec)
		key := labelKey(labels)
		st, ok := streams[key]
		if !ok {
			st = &lokiStream{Stream: labels}
			streams[key] = st
			order = append(order, key)
		}

		line, err := json.Marshal(rec)
		if err != nil {
			e.logger.Error("encode loki line", zap.Error(err))
			continue
		}
		ts := strconv.FormatInt(time.Now().UnixNano(), 10)
		st.Values = append(st.Values, [2]string{ts, string(line)})
	}

	payload := lokiPayload{Streams: make([]lokiStream, 0, len(order))}
	for _, key := range order {
		payload.Streams = append(payload.Streams, *streams[key])
	}

	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("encode loki payload", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		e.logger.Error("build loki request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if e.tenantID != "" {
		req.Header.Set("X-Scope-OrgID", e.tenantID)
	}
	if e.username != "" && e.password != "" {
		req.SetBasicAuth(e.username, e.password)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("loki push failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		e.logger.Error("loki rejected push",
			zap.Int("status", resp.StatusCode), zap.Int("entries", len(batch)))
		return false
	}
	return true
}

// labelKey builds a deterministic identity string for a label set.
func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}
