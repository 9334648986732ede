package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/BaSui01/traceflow/span"
)

// ANSI color codes by span type.
var consoleColors = map[string]string{
	"LLM":       "\033[94m",
	"EMBEDDING": "\033[95m",
	"RETRIEVER": "\033[96m",
	"TOOL":      "\033[93m",
	"CHAIN":     "\033[92m",
	"AGENT":     "\033[91m",
}

const (
	colorReset = "\033[0m"
	colorRed   = "\033[91m"
	colorGreen = "\033[92m"
)

// ConsoleConfig configures the console printer.
type ConsoleConfig struct {
	// Colored enables ANSI colors keyed by span type.
	Colored bool

	// Verbose additionally pretty-prints the full record as JSON.
	Verbose bool

	// Out defaults to os.Stdout.
	Out io.Writer
}

// ConsoleExporter prints one line per span record. It always succeeds and
// has no network or batching behavior.
type ConsoleExporter struct {
	colored bool
	verbose bool
	out     io.Writer
}

// NewConsoleExporter builds the printer.
func NewConsoleExporter(cfg ConsoleConfig) *ConsoleExporter {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &ConsoleExporter{colored: cfg.Colored, verbose: cfg.Verbose, out: cfg.Out}
}

// Export prints the record summary line.
func (e *ConsoleExporter) Export(ctx context.Context, rec span.Record) bool {
	spanType := stringField(rec, "span_type", "UNKNOWN")
	name := stringField(rec, "name", "unknown")
	duration := floatField(rec, "duration_ms")
	status := stringField(rec, "status", span.StatusOK)
	model := stringField(rec, "model_name", "")
	in := intField(rec, "input_tokens")
	out := intField(rec, "output_tokens")

	if e.colored {
		color, ok := consoleColors[spanType]
		if !ok {
			color = colorReset
		}
		statusColor := colorGreen
		if status == span.StatusError {
			statusColor = colorRed
		}
		fmt.Fprintf(e.out, "%s[%-12s]%s %-30s | %8.1fms | %s%-5s%s | %s | in:%d out:%d total:%d\n",
			color, spanType, colorReset, name, duration, statusColor, status, colorReset,
			model, in, out, in+out)
	} else {
		fmt.Fprintf(e.out, "[%-12s] %-30s | %8.1fms | %-5s | %s | in:%d out:%d total:%d\n",
			spanType, name, duration, status, model, in, out, in+out)
	}

	if e.verbose {
		if pretty, err := json.MarshalIndent(rec, "    ", "  "); err == nil {
			fmt.Fprintf(e.out, "    %s\n", pretty)
		}
	}
	return true
}

// ExportBatch prints each record.
func (e *ConsoleExporter) ExportBatch(ctx context.Context, recs []span.Record) bool {
	return exportEach(ctx, e, recs)
}

// Start is a no-op.
func (e *ConsoleExporter) Start() {}

// Stop is a no-op.
func (e *ConsoleExporter) Stop() {}

// Flush is a no-op.
func (e *ConsoleExporter) Flush(ctx context.Context) {}

// HealthCheck always reports healthy.
func (e *ConsoleExporter) HealthCheck(ctx context.Context) bool { return true }
