package testutil

import (
	"context"
	"sync"

	"github.com/BaSui01/traceflow/span"
)

// CaptureExporter is an export.Exporter that records everything sent to it.
// Exports succeed unless FailNext or FailAll is armed.
type CaptureExporter struct {
	mu       sync.Mutex
	records  []span.Record
	failNext bool
	failAll  bool

	StartCalls int
	StopCalls  int
	FlushCalls int
}

// NewCaptureExporter builds an empty recorder.
func NewCaptureExporter() *CaptureExporter {
	return &CaptureExporter{}
}

// Export records one span record.
func (c *CaptureExporter) Export(ctx context.Context, rec span.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	if c.failAll {
		return false
	}
	if c.failNext {
		c.failNext = false
		return false
	}
	return true
}

// ExportBatch records all span records; it fails if any single export fails.
func (c *CaptureExporter) ExportBatch(ctx context.Context, recs []span.Record) bool {
	ok := true
	for _, rec := range recs {
		if !c.Export(ctx, rec) {
			ok = false
		}
	}
	return ok
}

func (c *CaptureExporter) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StartCalls++
}

func (c *CaptureExporter) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StopCalls++
}

func (c *CaptureExporter) Flush(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FlushCalls++
}

func (c *CaptureExporter) HealthCheck(ctx context.Context) bool { return true }

// Records returns a copy of everything captured so far.
func (c *CaptureExporter) Records() []span.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]span.Record, len(c.records))
	copy(out, c.records)
	return out
}

// Last returns the most recent record, or nil when nothing was captured.
func (c *CaptureExporter) Last() span.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.records) == 0 {
		return nil
	}
	return c.records[len(c.records)-1]
}

// Len reports how many records were captured.
func (c *CaptureExporter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Reset discards captured records and failure injection state.
func (c *CaptureExporter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.failNext = false
	c.failAll = false
}

// FailNext makes the next Export return false.
func (c *CaptureExporter) FailNext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = true
}

// FailAll makes every Export return false until Reset.
func (c *CaptureExporter) FailAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAll = true
}
