package export

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/span"
)

// MultiExporter composes several adapters behind the single Exporter
// contract, broadcasting every call. Delivery is deliberately lenient: one
// dead backend must not block the others, so Export succeeds when any
// member succeeds.
type MultiExporter struct {
	exporters []Exporter
	logger    *zap.Logger
}

// NewMultiExporter builds the fan-out over the given adapters, in order.
func NewMultiExporter(exporters []Exporter, logger *zap.Logger) *MultiExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiExporter{
		exporters: exporters,
		logger:    logger.With(zap.String("exporter", "multi")),
	}
}

// Exporters returns the composed adapters.
func (m *MultiExporter) Exporters() []Exporter { return m.exporters }

// Export broadcasts the record to every member and succeeds when at least
// one delivery succeeds.
func (m *MultiExporter) Export(ctx context.Context, rec span.Record) bool {
	ok := false
	for _, e := range m.exporters {
		if e.Export(ctx, rec) {
			ok = true
		} else {
			m.logger.Debug("member export failed", zap.String("type", exporterName(e)))
		}
	}
	return ok
}

// ExportBatch broadcasts each record; the batch succeeds only when every
// record was accepted by at least one member.
func (m *MultiExporter) ExportBatch(ctx context.Context, recs []span.Record) bool {
	return exportEach(ctx, m, recs)
}

// Start starts all members.
func (m *MultiExporter) Start() {
	for _, e := range m.exporters {
		e.Start()
	}
}

// Stop stops all members.
func (m *MultiExporter) Stop() {
	for _, e := range m.exporters {
		e.Stop()
	}
}

// Flush flushes all members.
func (m *MultiExporter) Flush(ctx context.Context) {
	for _, e := range m.exporters {
		e.Flush(ctx)
	}
}

// HealthCheck reports healthy when any member does.
func (m *MultiExporter) HealthCheck(ctx context.Context) bool {
	for _, e := range m.exporters {
		if e.HealthCheck(ctx) {
			return true
		}
	}
	return false
}

func exporterName(e Exporter) string {
	switch e.(type) {
	case *SplunkExporter:
		return "splunk"
	case *ElasticsearchExporter:
		return "elasticsearch"
	case *OTLPExporter:
		return "otlp"
	case *DatadogExporter:
		return "datadog"
	case *PrometheusExporter:
		return "prometheus"
	case *LokiExporter:
		return "loki"
	case *CloudWatchExporter:
		return "cloudwatch"
	case *ConsoleExporter:
		return "console"
	case *FileExporter:
		return "file"
	case *MultiExporter:
		return "multi"
	default:
		return "custom"
	}
}
