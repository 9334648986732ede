package export

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/traceflow/span"
	"github.com/BaSui01/traceflow/testutil"
)

func newTestLoki(t *testing.T, url string, mutate func(*LokiConfig)) *LokiExporter {
	t.Helper()
	cfg := LokiConfig{URL: url, Logger: zaptest.NewLogger(t)}
	if mutate != nil {
		mutate(&cfg)
	}
	e := NewLokiExporter(cfg)
	e.Start()
	t.Cleanup(e.Stop)
	return e
}

func TestLokiExporter_PushShape(t *testing.T) {
	var payload lokiPayload
	var path string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		require.NoError(t, json.Unmarshal(body, &payload))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	e := newTestLoki(t, srv.URL, nil)
	require.True(t, e.Export(testutil.TestContext(t), testutil.LLMRecord("chat")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/loki/api/v1/push", path)
	require.Len(t, payload.Streams, 1)

	st := payload.Streams[0]
	assert.Equal(t, "traceflow", st.Stream["job"])
	assert.Equal(t, "LLM", st.Stream["span_type"])
	assert.Equal(t, "gpt-4o", st.Stream["model_name"])
	assert.Equal(t, "test-workflow", st.Stream["workflow_name"])

	require.Len(t, st.Values, 1)
	_, err := strconv.ParseInt(st.Values[0][0], 10, 64)
	assert.NoError(t, err, "first value element is a nanosecond timestamp")

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(st.Values[0][1]), &line))
	assert.Equal(t, "chat", line["name"])
}

func TestLokiExporter_GroupsByLabelSet(t *testing.T) {
	var payload lokiPayload
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		require.NoError(t, json.Unmarshal(body, &payload))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	e := newTestLoki(t, srv.URL, func(cfg *LokiConfig) { cfg.BatchSize = 3 })

	ctx := testutil.TestContext(t)
	e.Export(ctx, testutil.LLMRecord("a"))
	e.Export(ctx, testutil.LLMRecord("b"))
	e.Export(ctx, testutil.ErrorRecord("c"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payload.Streams, 2, "two distinct label sets")

	// First-seen order is preserved.
	assert.Equal(t, "LLM", payload.Streams[0].Stream["span_type"])
	assert.Len(t, payload.Streams[0].Values, 2)
	assert.Equal(t, "TOOL", payload.Streams[1].Stream["span_type"])
	assert.Len(t, payload.Streams[1].Values, 1)
}

func TestLokiExporter_TenantAndBasicAuth(t *testing.T) {
	var tenant, user, pass string
	var hasAuth bool
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tenant = r.Header.Get("X-Scope-OrgID")
		user, pass, hasAuth = r.BasicAuth()
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	e := newTestLoki(t, srv.URL, func(cfg *LokiConfig) {
		cfg.TenantID = "team-a"
		cfg.Username = "loki"
		cfg.Password = "pw"
	})
	require.True(t, e.Export(testutil.TestContext(t), testutil.LLMRecord("chat")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "team-a", tenant)
	require.True(t, hasAuth)
	assert.Equal(t, "loki", user)
	assert.Equal(t, "pw", pass)
}

func TestLokiExporter_CustomDefaultLabels(t *testing.T) {
	e := newTestLoki(t, "http://localhost:3100", func(cfg *LokiConfig) {
		cfg.Labels = map[string]string{"job": "custom", "region": "eu"}
	})

	labels := e.streamLabels(span.Record{"span_type": "CHAIN"})
	assert.Equal(t, "custom", labels["job"])
	assert.Equal(t, "eu", labels["region"])
	assert.Equal(t, "CHAIN", labels["span_type"])
	assert.Equal(t, "unknown", labels["model_name"])
}

func TestLokiExporter_RejectedPush(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	e := newTestLoki(t, srv.URL, nil)
	assert.False(t, e.Export(testutil.TestContext(t), testutil.LLMRecord("chat")))
}

func TestLabelKey_Deterministic(t *testing.T) {
	a := labelKey(map[string]string{"b": "2", "a": "1"})
	b := labelKey(map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, labelKey(map[string]string{"a": "1", "b": "3"}))
}
