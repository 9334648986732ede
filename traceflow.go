// Package traceflow provides a top-level convenience entry point for
// instrumenting GenAI applications with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/traceflow"
//
//	tel, err := traceflow.Setup("my-app", traceflow.WithConsole())
//	tel, err := traceflow.Setup("my-app", traceflow.WithSplunk(url, token))
//
// This is a thin wrapper around [telemetry.Configure]; both produce identical
// results. Use this package when you prefer the shorter import path.
package traceflow

import (
	"github.com/BaSui01/traceflow/config"
	"github.com/BaSui01/traceflow/export"
	"github.com/BaSui01/traceflow/telemetry"
)

// Version is the library release, reported as scope metadata by the OTLP
// exporter.
const Version = export.ScopeVersion

// Option configures the telemetry handle created by [Setup].
type Option = config.Option

// Setup initializes process-wide telemetry for the named workflow and makes
// it the active handle. At minimum one backend must be selected via an
// Option; with none, spans print to the console.
func Setup(workflowName string, opts ...Option) (*telemetry.Telemetry, error) {
	return telemetry.Configure(config.New(workflowName, opts...), nil)
}

// Re-export backend shortcuts so callers never need to import config/.

// WithConsole prints spans to stdout.
var WithConsole = config.WithConsole

// WithFile appends spans as JSON lines to the given path.
var WithFile = config.WithFile

// WithSplunk sends spans to a Splunk HTTP Event Collector.
var WithSplunk = config.WithSplunk

// WithElasticsearch indexes spans into Elasticsearch.
var WithElasticsearch = config.WithElasticsearch

// WithOTLP sends spans to an OpenTelemetry collector over OTLP/HTTP.
var WithOTLP = config.WithOTLP

// WithDatadog sends spans to the Datadog trace intake.
var WithDatadog = config.WithDatadog

// WithPrometheus pushes request/token metrics to a Prometheus push gateway.
var WithPrometheus = config.WithPrometheus

// WithLoki pushes spans as log streams to Grafana Loki.
var WithLoki = config.WithLoki

// WithCloudWatch sends spans to AWS CloudWatch Logs.
var WithCloudWatch = config.WithCloudWatch

// WithServiceName overrides the service name reported to backends.
var WithServiceName = config.WithServiceName
