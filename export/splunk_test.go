package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/traceflow/span"
	"github.com/BaSui01/traceflow/testutil"
)

// hecCapture records every HEC request the test server receives.
type hecCapture struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
	status   int
}

func newHECServer(t *testing.T) (*hecCapture, *httptest.Server) {
	t.Helper()
	c := &hecCapture{status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.requests = append(c.requests, r)
		c.bodies = append(c.bodies, body)
		status := c.status
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return c, srv
}

func (c *hecCapture) events(t *testing.T, i int) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Less(t, i, len(c.bodies))
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(c.bodies[i]))
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		out = append(out, ev)
	}
	return out
}

func newTestSplunk(t *testing.T, url string, mutate func(*SplunkConfig)) *SplunkExporter {
	t.Helper()
	cfg := SplunkConfig{URL: url, Token: "tok-123", Logger: zaptest.NewLogger(t)}
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewSplunkExporter(cfg)
	require.NoError(t, err)
	e.Start()
	t.Cleanup(e.Stop)
	return e
}

func TestNewSplunkExporter_RequiresURLAndToken(t *testing.T) {
	_, err := NewSplunkExporter(SplunkConfig{Token: "tok"})
	assert.Error(t, err)

	_, err = NewSplunkExporter(SplunkConfig{URL: "http://splunk:8088"})
	assert.Error(t, err)
}

func TestSplunkExporter_SingleRecord(t *testing.T) {
	c, srv := newHECServer(t)
	e := newTestSplunk(t, srv.URL, nil)

	ok := e.Export(testutil.TestContext(t), testutil.LLMRecord("chat"))
	require.True(t, ok)

	c.mu.Lock()
	require.Len(t, c.requests, 1)
	req := c.requests[0]
	c.mu.Unlock()

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/services/collector/event", req.URL.Path)
	assert.Equal(t, "Splunk tok-123", req.Header.Get("Authorization"))

	events := c.events(t, 0)
	require.Len(t, events, 1)
	assert.Equal(t, "genai_traces", events[0]["index"])
	assert.Equal(t, "genai:trace", events[0]["sourcetype"])
	assert.Equal(t, "traceflow", events[0]["source"])

	inner, ok := events[0]["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "chat", inner["name"])
	assert.Equal(t, "LLM", inner["span_type"])
}

func TestSplunkExporter_BatchNewlineDelimited(t *testing.T) {
	c, srv := newHECServer(t)
	e := newTestSplunk(t, srv.URL, func(cfg *SplunkConfig) { cfg.BatchSize = 2 })

	ctx := testutil.TestContext(t)
	e.Export(ctx, testutil.LLMRecord("first"))
	e.Export(ctx, testutil.LLMRecord("second"))

	events := c.events(t, 0)
	require.Len(t, events, 2, "both events in one request")
}

func TestSplunkExporter_CustomIndexAndSourceType(t *testing.T) {
	c, srv := newHECServer(t)
	e := newTestSplunk(t, srv.URL, func(cfg *SplunkConfig) {
		cfg.Index = "custom_idx"
		cfg.SourceType = "custom:type"
	})

	e.Export(testutil.TestContext(t), testutil.LLMRecord("chat"))

	events := c.events(t, 0)
	require.Len(t, events, 1)
	assert.Equal(t, "custom_idx", events[0]["index"])
	assert.Equal(t, "custom:type", events[0]["sourcetype"])
}

func TestSplunkExporter_ServerErrorReturnsFalse(t *testing.T) {
	c, srv := newHECServer(t)
	c.status = http.StatusServiceUnavailable
	e := newTestSplunk(t, srv.URL, nil)

	assert.False(t, e.Export(testutil.TestContext(t), testutil.LLMRecord("chat")))
}

func TestSplunkExporter_HealthCheck(t *testing.T) {
	c, srv := newHECServer(t)
	e := newTestSplunk(t, srv.URL, nil)

	assert.True(t, e.HealthCheck(testutil.TestContext(t)))

	events := c.events(t, 0)
	require.Len(t, events, 1)
	inner, ok := events[0]["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "health_check", inner["event"])

	c.status = http.StatusBadRequest
	assert.False(t, e.HealthCheck(testutil.TestContext(t)))
}

func TestSplunkExporter_ExportBatchFailsIfAnyFails(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		fail := calls == 2
		mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	e := newTestSplunk(t, srv.URL, nil)
	ok := e.ExportBatch(testutil.TestContext(t), []span.Record{
		testutil.LLMRecord("a"),
		testutil.LLMRecord("b"),
		testutil.LLMRecord("c"),
	})
	assert.False(t, ok)
	mu.Lock()
	assert.Equal(t, 3, calls, "remaining records still sent")
	mu.Unlock()
}
