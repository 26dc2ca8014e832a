package esclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	esclient "github.com/robert-malhotra/go-es-query/client"
	"github.com/robert-malhotra/go-es-query/pkg/compiler"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...esclient.ClientOption) *esclient.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]esclient.ClientOption{
		esclient.WithBaseURL(server.URL),
		esclient.WithHTTPClient(server.Client()),
	}, opts...)
	client, err := esclient.New(opts...)
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func hitsPayload(scrollID string, ids ...string) map[string]any {
	hits := make([]any, 0, len(ids))
	for _, id := range ids {
		hits = append(hits, map[string]any{
			"_index":  "events",
			"_id":     id,
			"_score":  1.0,
			"_source": map[string]any{"title": id},
		})
	}
	out := map[string]any{
		"took": 3,
		"hits": map[string]any{
			"total": map[string]any{"value": len(ids), "relation": "eq"},
			"hits":  hits,
		},
	}
	if scrollID != "" {
		out["_scroll_id"] = scrollID
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := esclient.New()
	require.ErrorIs(t, err, esclient.ErrInvalidBaseURL)

	for _, raw := range []string{"localhost:9200", "/only/a/path", "ftp://es.local", "http://"} {
		_, err = esclient.New(esclient.WithBaseURL(raw))
		require.ErrorIs(t, err, esclient.ErrInvalidBaseURL, raw)
	}

	_, err = esclient.New(esclient.WithBaseURL("http://localhost:9200"), esclient.WithHTTPClient(nil))
	require.ErrorIs(t, err, esclient.ErrNilHTTPClient)
}

func TestSelect(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/events/_search", r.URL.Path)
		assert.Equal(t, "venue-7", r.URL.Query().Get("routing"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get(esclient.OpaqueIDHeader))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(t, w, hitsPayload("", "a", "b"))
	}, esclient.WithDefaultHeader("X-Test", "yes"))

	req := &compiler.Request{
		Index:   "events",
		Routing: "venue-7",
		Body:    map[string]any{"query": map[string]any{"match_all": map[string]any{}}},
	}
	resp, err := client.Select(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"query": map[string]any{"match_all": map[string]any{}}}, gotBody)
	assert.Equal(t, int64(3), resp.Took)
	assert.Equal(t, int64(2), resp.Hits.Total.Value)
	require.Len(t, resp.Hits.Hits, 2)
	assert.Equal(t, "a", resp.Hits.Hits[0].ID)
	assert.JSONEq(t, `{"title":"a"}`, string(resp.Hits.Hits[0].Source))
}

func TestSelect_LegacyTotal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"took":1,"hits":{"total":42,"hits":[]}}`)
	})

	resp, err := client.Select(context.Background(), &compiler.Request{Index: "events"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.Hits.Total.Value)
	assert.Equal(t, "eq", resp.Hits.Total.Relation)
}

func TestSelect_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"status":400,"error":{"type":"parsing_exception","reason":"unknown query [bogus]","root_cause":[{"type":"parsing_exception","reason":"unknown query [bogus]"}]}}`)
	})

	_, err := client.Select(context.Background(), &compiler.Request{Index: "events"})
	var apiErr *esclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, "parsing_exception", apiErr.Type)
	assert.Equal(t, "unknown query [bogus]", apiErr.Reason)
	assert.Len(t, apiErr.RootCause, 1)
	assert.False(t, apiErr.Temporary())
	assert.Contains(t, err.Error(), "parsing_exception")
}

func TestSelect_NoRetryOnServerError(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":"cluster unavailable","status":503}`)
	})

	_, err := client.Select(context.Background(), &compiler.Request{Index: "events"})
	var apiErr *esclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Temporary())
	assert.Equal(t, "cluster unavailable", apiErr.Reason)
	assert.Equal(t, 1, calls)
}

func TestCount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events/_count", r.URL.Path)
		writeJSON(t, w, map[string]any{"count": 17})
	})

	n, err := client.Count(context.Background(), &compiler.Request{Index: "events", Body: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	_, err = client.Count(context.Background(), nil)
	require.ErrorIs(t, err, esclient.ErrNilRequest)
}

func TestCursor_ScrollsAndClears(t *testing.T) {
	var (
		mu      sync.Mutex
		cleared []string
		scrolls int
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.URL.Path == "/events/_search":
			assert.Equal(t, "60000ms", r.URL.Query().Get("scroll"))
			writeJSON(t, w, hitsPayload("s1", "a", "b"))
		case r.URL.Path == "/_search/scroll" && r.Method == http.MethodPost:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "s1", body["scroll_id"])
			scrolls++
			if scrolls == 1 {
				writeJSON(t, w, hitsPayload("s1", "c"))
				return
			}
			writeJSON(t, w, hitsPayload("s1"))
		case r.URL.Path == "/_search/scroll" && r.Method == http.MethodDelete:
			var body struct {
				ScrollID []string `json:"scroll_id"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			cleared = append(cleared, body.ScrollID...)
			writeJSON(t, w, map[string]any{"succeeded": true})
		default:
			http.NotFound(w, r)
		}
	})

	cur := client.Cursor(&compiler.Request{Index: "events", Body: map[string]any{}}, 0)
	var ids []string
	for hit, err := range cur.Hits(context.Background()) {
		require.NoError(t, err)
		ids = append(ids, hit.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, []string{"s1"}, cleared)

	var second []error
	for _, err := range cur.Hits(context.Background()) {
		second = append(second, err)
	}
	require.Len(t, second, 1)
	require.ErrorIs(t, second[0], esclient.ErrCursorConsumed)
}

func TestCursor_EarlyStopClearsScroll(t *testing.T) {
	var cleared bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			cleared = true
			writeJSON(t, w, map[string]any{"succeeded": true})
		default:
			writeJSON(t, w, hitsPayload("s9", "a", "b"))
		}
	})

	for hit, err := range client.Cursor(&compiler.Request{Index: "events"}, 0).Hits(context.Background()) {
		require.NoError(t, err)
		assert.Equal(t, "a", hit.ID)
		break
	}
	assert.True(t, cleared)
}

func TestInsert(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		assert.Equal(t, compiler.NDJSON, r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, 4, strings.Count(string(data), "\n"))
		writeJSON(t, w, map[string]any{
			"took":   5,
			"errors": true,
			"items": []any{
				map[string]any{"index": map[string]any{"_index": "events", "_id": "1", "status": 201, "result": "created"}},
				map[string]any{"index": map[string]any{"_index": "events", "_id": "2", "status": 400,
					"error": map[string]any{"type": "mapper_parsing_exception", "reason": "bad field"}}},
			},
		})
	})

	c := compiler.New()
	m, err := c.CompileInsert("events", []map[string]any{{"_id": "1", "a": 1}, {"_id": "2", "a": "x"}}, "")
	require.NoError(t, err)

	resp, err := client.Insert(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, resp.Errors)
	failed := resp.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "2", failed[0].ID)
	assert.Equal(t, "mapper_parsing_exception", failed[0].Error.Type)
}

func TestDelete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/events/_doc/a%2Fb", r.URL.EscapedPath())
		assert.Equal(t, "p1", r.URL.Query().Get("routing"))
		writeJSON(t, w, map[string]any{"_index": "events", "_id": "a/b", "_version": 2, "result": "deleted"})
	})

	m, err := compiler.New().CompileDelete("events", "a/b", "p1")
	require.NoError(t, err)

	resp, err := client.Delete(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "deleted", resp.Result)
	assert.Equal(t, int64(2), resp.Version)

	_, err = client.Insert(context.Background(), m)
	require.Error(t, err)
}

func TestRateLimiter_HonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"count": 1})
	}, esclient.WithRateLimiter(0.001, 1))

	_, err := client.Count(context.Background(), &compiler.Request{Index: "events"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Count(ctx, &compiler.Request{Index: "events"})
	require.Error(t, err)
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debugf(string, ...any) {}

func (l *recordingLogger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, format)
}

func TestLogger_RecordsFailures(t *testing.T) {
	logger := &recordingLogger{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"type":"index_not_found_exception","reason":"no such index [nope]"},"status":404}`)
	}, esclient.WithLogger(logger))

	_, err := client.Select(context.Background(), &compiler.Request{Index: "nope"})
	require.Error(t, err)
	assert.Len(t, logger.errors, 1)
}
