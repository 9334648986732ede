// Package metrics counts spans produced by this process and the outcome of
// exporting them. The counters land on whatever Prometheus registry the
// caller provides, so an application that already serves /metrics picks
// them up without extra wiring.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector tracks span production and export outcomes. A nil Collector is
// valid and records nothing.
type Collector struct {
	spansStarted   *prometheus.CounterVec
	spansFinished  *prometheus.CounterVec
	exportFailures prometheus.Counter
}

// NewCollector registers the collector's metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		spansStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traceflow",
			Name:      "spans_started_total",
			Help:      "Spans opened, by span type.",
		}, []string{"span_type"}),
		spansFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "traceflow",
			Name:      "spans_finished_total",
			Help:      "Spans finished, by span type and status.",
		}, []string{"span_type", "status"}),
		exportFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "traceflow",
			Name:      "export_failures_total",
			Help:      "Span records rejected by every configured backend.",
		}),
	}
}

var (
	defaultOnce      sync.Once
	defaultCollector *Collector
)

// Default returns the process-wide collector, registered on the default
// Prometheus registry on first use.
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = NewCollector(prometheus.DefaultRegisterer)
	})
	return defaultCollector
}

// SpanStarted records that a span of the given type was opened.
func (c *Collector) SpanStarted(spanType string) {
	if c == nil {
		return
	}
	c.spansStarted.WithLabelValues(spanType).Inc()
}

// SpanFinished records a finished span and its terminal status.
func (c *Collector) SpanFinished(spanType, status string) {
	if c == nil {
		return
	}
	c.spansFinished.WithLabelValues(spanType, status).Inc()
}

// ExportFailed records a span record that no backend accepted.
func (c *Collector) ExportFailed() {
	if c == nil {
		return
	}
	c.exportFailures.Inc()
}
