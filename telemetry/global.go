package telemetry

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/config"
)

// ErrNotConfigured is returned by Current before Configure has run.
var ErrNotConfigured = errors.New("telemetry not configured: call Configure first")

var (
	activeMu sync.Mutex
	active   *Telemetry
)

// Configure builds the exporter(s) described by cfg, starts them, and makes
// the resulting handle the process-wide active telemetry. Any previously
// active handle is stopped first so its flush goroutines do not leak.
//
// Configuration errors (unknown backend, missing credentials) are returned
// before any record is exported.
func Configure(cfg *config.Config, logger *zap.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	exporter, err := config.BuildExporter(cfg, logger)
	if err != nil {
		return nil, err
	}
	exporter.Start()

	t := New(cfg.WorkflowName, exporter,
		WithServiceName(cfg.Service()),
		WithLogger(logger))

	activeMu.Lock()
	prev := active
	active = t
	activeMu.Unlock()

	if prev != nil {
		prev.Shutdown()
	}
	return t, nil
}

// Activate makes a pre-built handle the active telemetry, stopping any
// previous one. Useful when the exporter was constructed directly rather
// than through config.
func Activate(t *Telemetry) {
	activeMu.Lock()
	prev := active
	active = t
	activeMu.Unlock()

	if prev != nil && prev != t {
		prev.Shutdown()
	}
}

// Current returns the active telemetry handle.
func Current() (*Telemetry, error) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active == nil {
		return nil, ErrNotConfigured
	}
	return active, nil
}

// Shutdown stops the active handle and clears it. Safe to call when nothing
// is configured.
func Shutdown() {
	activeMu.Lock()
	prev := active
	active = nil
	activeMu.Unlock()

	if prev != nil {
		prev.Shutdown()
	}
}
