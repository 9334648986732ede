package export

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/traceflow/internal/pool"
	"github.com/BaSui01/traceflow/span"
)

// ElasticsearchConfig configures the bulk-indexing adapter.
type ElasticsearchConfig struct {
	// Hosts lists candidate nodes; sends round-robin across them.
	// Defaults to http://localhost:9200.
	Hosts []string

	// Index is the index name prefix; the current date is appended as
	// <prefix>-YYYY.MM.DD. Defaults to "genai-traces".
	Index string

	// Auth modes, mutually exclusive: APIKey wins over Username/Password;
	// with neither, requests are unauthenticated.
	APIKey   string
	Username string
	Password string

	InsecureSkipVerify bool
	BatchSize          int
	FlushInterval      time.Duration

	Logger *zap.Logger
}

// ElasticsearchExporter indexes span records via the bulk API.
type ElasticsearchExporter struct {
	*batcher

	hosts    []string
	index    string
	apiKey   string
	username string
	password string
	client   *http.Client
	logger   *zap.Logger

	hostCursor atomic.Uint64
}

// NewElasticsearchExporter builds the adapter. All parameters have defaults,
// so construction cannot fail on configuration.
func NewElasticsearchExporter(cfg ElasticsearchConfig) *ElasticsearchExporter {
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = []string{"http://localhost:9200"}
	}
	if cfg.Index == "" {
		cfg.Index = "genai-traces"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	hosts := make([]string, len(cfg.Hosts))
	for i, h := range cfg.Hosts {
		hosts[i] = strings.TrimRight(h, "/")
	}

	e := &ElasticsearchExporter{
		hosts:    hosts,
		index:    cfg.Index,
		apiKey:   cfg.APIKey,
		username: cfg.Username,
		password: cfg.Password,
		client:   newHTTPClient(cfg.InsecureSkipVerify),
		logger:   cfg.Logger.With(zap.String("exporter", "elasticsearch")),
	}
	e.batcher = newBatcher(cfg.BatchSize, cfg.FlushInterval, e.sendBatch)
	return e
}

// nextHost selects the next node round-robin, wrapping.
func (e *ElasticsearchExporter) nextHost() string {
	n := e.hostCursor.Add(1) - 1
	return e.hosts[int(n%uint64(len(e.hosts)))]
}

func (e *ElasticsearchExporter) headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	switch {
	case e.apiKey != "":
		h.Set("Authorization", "ApiKey "+e.apiKey)
	case e.username != "" && e.password != "":
		creds := base64.StdEncoding.EncodeToString([]byte(e.username + ":" + e.password))
		h.Set("Authorization", "Basic "+creds)
	}
	return h
}

// Export delivers or enqueues the record. @timestamp is injected at send
// time, on a copy: the caller's map may be shared with other backends and
// with in-flight sends, so it is never written to here.
func (e *ElasticsearchExporter) Export(ctx context.Context, rec span.Record) bool {
	return e.enqueue(ctx, rec)
}

// ExportBatch delivers multiple records sequentially.
func (e *ElasticsearchExporter) ExportBatch(ctx context.Context, recs []span.Record) bool {
	return exportEach(ctx, e, recs)
}

// HealthCheck probes the cluster health endpoint.
func (e *ElasticsearchExporter) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.nextHost()+"/_cluster/health", nil)
	if err != nil {
		return false
	}
	req.Header = e.headers()
	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug("cluster health probe failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// document copies rec and injects @timestamp when absent, mirroring the
// record's own timestamp. The copy keeps the shared record untouched.
func document(rec span.Record) span.Record {
	doc := make(span.Record, len(rec)+1)
	for k, v := range rec {
		doc[k] = v
	}
	if _, ok := doc["@timestamp"]; !ok {
		if ts, ok := doc["timestamp"]; ok {
			doc["@timestamp"] = ts
		} else {
			doc["@timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
		}
	}
	return doc
}

// sendBatch builds a bulk-protocol payload (alternating action/document
// lines, trailing newline) and POSTs it to /_bulk on the next host.
func (e *ElasticsearchExporter) sendBatch(ctx context.Context, batch []span.Record) bool {
	if len(batch) == 0 {
		return true
	}

	indexName := e.index + "-" + time.Now().Format("2006.01.02")
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	enc := json.NewEncoder(buf)
	for _, rec := range batch {
		action := map[string]any{"index": map[string]any{"_index": indexName}}
		if err := enc.Encode(action); err != nil {
			e.logger.Error("encode bulk action", zap.Error(err))
			return false
		}
		if err := enc.Encode(document(rec)); err != nil {
			e.logger.Error("encode bulk document", zap.Error(err))
			return false
		}
	}

	url := e.nextHost() + "/_bulk"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		e.logger.Error("build bulk request", zap.Error(err))
		return false
	}
	req.Header = e.headers()

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("elasticsearch bulk send failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		e.logger.Error("elasticsearch rejected bulk request",
			zap.Int("status", resp.StatusCode), zap.Int("documents", len(batch)))
		return false
	}
	return true
}
