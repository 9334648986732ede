package export

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/span"
)

// FileConfig configures the append-only JSONL writer.
type FileConfig struct {
	// Path is the output file. Required.
	Path string

	// RotateSizeMB rotates the file when it exceeds this size, renaming it
	// with a timestamp suffix. Defaults to 100.
	RotateSizeMB int64

	Logger *zap.Logger
}

// FileExporter appends one JSON line per record to a local file, rotating
// by size. Concurrent callers are serialized with a lock.
type FileExporter struct {
	path       string
	rotateSize int64
	logger     *zap.Logger

	mu sync.Mutex
}

// NewFileExporter builds the writer. The file is created on first write.
func NewFileExporter(cfg FileConfig) *FileExporter {
	if cfg.RotateSizeMB <= 0 {
		cfg.RotateSizeMB = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &FileExporter{
		path:       cfg.Path,
		rotateSize: cfg.RotateSizeMB * 1024 * 1024,
		logger:     cfg.Logger.With(zap.String("exporter", "file")),
	}
}

// Export writes the record as one JSON line, rotating first when the file
// exceeds the size threshold. I/O errors are logged and reported as false.
func (e *FileExporter) Export(ctx context.Context, rec span.Record) bool {
	line, err := json.Marshal(rec)
	if err != nil {
		e.logger.Error("encode record", zap.Error(err))
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if info, err := os.Stat(e.path); err == nil && info.Size() >= e.rotateSize {
		rotated := e.path + "." + time.Now().Format("20060102_150405")
		if err := os.Rename(e.path, rotated); err != nil {
			e.logger.Error("rotate file", zap.String("path", e.path), zap.Error(err))
			return false
		}
	}

	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		e.logger.Error("open file", zap.String("path", e.path), zap.Error(err))
		return false
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		e.logger.Error("write record", zap.String("path", e.path), zap.Error(err))
		return false
	}
	return true
}

// ExportBatch writes each record.
func (e *FileExporter) ExportBatch(ctx context.Context, recs []span.Record) bool {
	return exportEach(ctx, e, recs)
}

// Start is a no-op.
func (e *FileExporter) Start() {}

// Stop is a no-op; writes are synchronous.
func (e *FileExporter) Stop() {}

// Flush is a no-op.
func (e *FileExporter) Flush(ctx context.Context) {}

// HealthCheck always reports healthy.
func (e *FileExporter) HealthCheck(ctx context.Context) bool { return true }
