package export

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/internal/pool"
	"github.com/BaSui01/traceflow/span"
)

const hecPath = "/services/collector/event"

// SplunkConfig configures the Splunk HTTP Event Collector adapter.
type SplunkConfig struct {
	// URL is the collector base URL, e.g. http://splunk:8088. The HEC event
	// path is appended automatically when missing.
	URL   string
	Token string

	Index      string // defaults to "genai_traces"
	SourceType string // defaults to "genai:trace"

	InsecureSkipVerify bool
	BatchSize          int
	FlushInterval      time.Duration

	Logger *zap.Logger
}

// SplunkExporter sends span records to Splunk via the HTTP Event Collector.
type SplunkExporter struct {
	*batcher

	url        string
	token      string
	index      string
	sourceType string
	client     *http.Client
	logger     *zap.Logger
}

// hecEvent is the HEC envelope for one record.
type hecEvent struct {
	Index      string      `json:"index"`
	SourceType string      `json:"sourcetype"`
	Source     string      `json:"source"`
	Event      span.Record `json:"event"`
}

// NewSplunkExporter validates the connection parameters and builds the
// adapter. A missing URL or token is a configuration error.
func NewSplunkExporter(cfg SplunkConfig) (*SplunkExporter, error) {
	if cfg.URL == "" || cfg.Token == "" {
		return nil, errors.New("splunk exporter requires a URL and a token")
	}
	url := strings.TrimRight(cfg.URL, "/")
	if !strings.HasSuffix(url, hecPath) {
		url += hecPath
	}
	if cfg.Index == "" {
		cfg.Index = "genai_traces"
	}
	if cfg.SourceType == "" {
		cfg.SourceType = "genai:trace"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &SplunkExporter{
		url:        url,
		token:      cfg.Token,
		index:      cfg.Index,
		sourceType: cfg.SourceType,
		client:     newHTTPClient(cfg.InsecureSkipVerify),
		logger:     cfg.Logger.With(zap.String("exporter", "splunk")),
	}
	e.batcher = newBatcher(cfg.BatchSize, cfg.FlushInterval, e.sendBatch)
	return e, nil
}

// Export delivers or enqueues one record.
func (e *SplunkExporter) Export(ctx context.Context, rec span.Record) bool {
	return e.enqueue(ctx, rec)
}

// ExportBatch delivers multiple records sequentially.
func (e *SplunkExporter) ExportBatch(ctx context.Context, recs []span.Record) bool {
	return exportEach(ctx, e, recs)
}

// HealthCheck sends a synthetic event and reports whether the send succeeded.
func (e *SplunkExporter) HealthCheck(ctx context.Context) bool {
	return e.sendBatch(ctx, []span.Record{{"event": "health_check", "sourcetype": "genai:health"}})
}

// sendBatch wraps each record in a HEC event envelope, newline-delimits the
// envelopes, and POSTs them as one request.
func (e *SplunkExporter) sendBatch(ctx context.Context, batch []span.Record) bool {
	if len(batch) == 0 {
		return true
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	enc := json.NewEncoder(buf)
	for _, rec := range batch {
		if err := enc.Encode(hecEvent{
			Index:      e.index,
			SourceType: e.sourceType,
			Source:     "traceflow",
			Event:      rec,
		}); err != nil {
			e.logger.Error("encode HEC event", zap.Error(err))
			return false
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, buf)
	if err != nil {
		e.logger.Error("build HEC request", zap.Error(err))
		return false
	}
	req.Header.Set("Authorization", "Splunk "+e.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("splunk HEC send failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.logger.Error("splunk HEC rejected batch",
			zap.Int("status", resp.StatusCode), zap.Int("events", len(batch)))
		return false
	}
	return true
}
