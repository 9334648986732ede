package export

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/span"
)

// PrometheusConfig configures the push-gateway metrics adapter.
type PrometheusConfig struct {
	// GatewayURL is the push gateway base URL. Defaults to
	// http://localhost:9091.
	GatewayURL string

	// JobName groups the pushed metrics. Defaults to "genai_telemetry".
	JobName string

	// Optional basic auth.
	Username string
	Password string

	Logger *zap.Logger
}

// PrometheusExporter derives request/error/token counters and a duration
// gauge from span records and pushes the full cumulative snapshot to a
// Prometheus push gateway on every export. There is no queue: every call
// is an immediate synchronous push in text exposition format.
type PrometheusExporter struct {
	registry *prometheus.Registry
	pusher   *push.Pusher
	logger   *zap.Logger

	mu           sync.Mutex
	requests     *prometheus.CounterVec
	errors       *prometheus.CounterVec
	inputTokens  *prometheus.CounterVec
	outputTokens *prometheus.CounterVec
	duration     *prometheus.GaugeVec
}

// NewPrometheusExporter builds the adapter and its private metric registry.
func NewPrometheusExporter(cfg PrometheusConfig) *PrometheusExporter {
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = "http://localhost:9091"
	}
	if cfg.JobName == "" {
		cfg.JobName = "genai_telemetry"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	e := &PrometheusExporter{
		registry: registry,
		logger:   cfg.Logger.With(zap.String("exporter", "prometheus")),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of exported LLM spans",
		}, []string{"model", "provider", "workflow"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_errors_total",
			Help: "Total number of exported error spans",
		}, []string{"model", "provider", "workflow"}),
		inputTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_input_tokens_total",
			Help: "Cumulative input tokens",
		}, []string{"model", "provider"}),
		outputTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_output_tokens_total",
			Help: "Cumulative output tokens",
		}, []string{"model", "provider"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "llm_duration_seconds",
			Help: "Duration of the most recent span in seconds",
		}, []string{"model", "provider"}),
	}
	registry.MustRegister(e.requests, e.errors, e.inputTokens, e.outputTokens, e.duration)

	pusher := push.New(cfg.GatewayURL, cfg.JobName).
		Gatherer(registry).
		Format(expfmt.NewFormat(expfmt.TypeTextPlain)).
		Client(newHTTPClient(false))
	if cfg.Username != "" && cfg.Password != "" {
		pusher = pusher.BasicAuth(cfg.Username, cfg.Password)
	}
	e.pusher = pusher
	return e
}

// Export updates the counters from the record and pushes the current
// snapshot to the gateway's per-job endpoint.
func (e *PrometheusExporter) Export(ctx context.Context, rec span.Record) bool {
	model := stringField(rec, "model_name", "unknown")
	provider := stringField(rec, "model_provider", "unknown")
	workflow := stringField(rec, "workflow_name", "unknown")

	e.mu.Lock()
	e.requests.WithLabelValues(model, provider, workflow).Inc()
	if isError(rec) {
		e.errors.WithLabelValues(model, provider, workflow).Inc()
	}
	e.inputTokens.WithLabelValues(model, provider).Add(float64(intField(rec, "input_tokens")))
	e.outputTokens.WithLabelValues(model, provider).Add(float64(intField(rec, "output_tokens")))
	e.duration.WithLabelValues(model, provider).Set(floatField(rec, "duration_ms") / 1000)
	e.mu.Unlock()

	// Add POSTs the snapshot, merging with other instances under the job.
	if err := e.pusher.AddContext(ctx); err != nil {
		e.logger.Error("push gateway send failed", zap.Error(err))
		return false
	}
	return true
}

// ExportBatch pushes each record sequentially.
func (e *PrometheusExporter) ExportBatch(ctx context.Context, recs []span.Record) bool {
	return exportEach(ctx, e, recs)
}

// Start is a no-op; this adapter has no background state.
func (e *PrometheusExporter) Start() {}

// Stop is a no-op; there is nothing buffered to flush.
func (e *PrometheusExporter) Stop() {}

// Flush is a no-op; every export pushes immediately.
func (e *PrometheusExporter) Flush(ctx context.Context) {}

// HealthCheck assumes the gateway is healthy.
func (e *PrometheusExporter) HealthCheck(ctx context.Context) bool { return true }
