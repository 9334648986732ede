// Package export implements the backend adapters that deliver span records
// to observability systems, the shared batching/flush scheduler, and the
// multi-destination fan-out.
//
// Every adapter satisfies [Exporter]. Delivery failures are never surfaced
// as errors: they are logged and reported as a false return so a backend
// outage degrades telemetry silently without affecting the application.
package export

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/traceflow/internal/tlsutil"
	"github.com/BaSui01/traceflow/span"
)

// defaultTimeout bounds every network send. Callers observe a failure, not
// a hang, beyond this.
const defaultTimeout = 10 * time.Second

// Exporter is the capability set every backend adapter implements.
type Exporter interface {
	// Export attempts to deliver one record, or enqueues it when batching
	// is configured. It reports whether delivery is believed successful.
	Export(ctx context.Context, rec span.Record) bool

	// ExportBatch delivers multiple records; a batch succeeds only when
	// every member succeeds.
	ExportBatch(ctx context.Context, recs []span.Record) bool

	// Start transitions the adapter into a running state, spawning the
	// background flush goroutine when batching is configured. Idempotent.
	Start()

	// Stop halts the background flush goroutine and performs one final
	// Flush so no buffered records are lost on orderly shutdown. Idempotent.
	Stop()

	// Flush drains the pending queue and attempts delivery of everything
	// buffered, regardless of the size threshold.
	Flush(ctx context.Context)

	// HealthCheck is a best-effort liveness probe against the backend.
	HealthCheck(ctx context.Context) bool
}

// newHTTPClient returns the shared-shape HTTP client used by all network
// adapters. With insecureSkipVerify, certificate verification is disabled
// for self-signed backend endpoints.
func newHTTPClient(insecureSkipVerify bool) *http.Client {
	return tlsutil.HTTPClient(defaultTimeout, insecureSkipVerify)
}

// exportEach is the default ExportBatch behavior: sequential Export of each
// record, succeeding only when all succeed.
func exportEach(ctx context.Context, e Exporter, recs []span.Record) bool {
	ok := true
	for _, rec := range recs {
		if !e.Export(ctx, rec) {
			ok = false
		}
	}
	return ok
}
