package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miradorstack/mirador-logrca/internal/models"
	"github.com/miradorstack/mirador-logrca/internal/utils"
)

func jsonResponse(status int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     header,
	}
}

func newTestFetcherWithConfig(t *testing.T, cfg ESConfig, rt roundTripFunc) *ESFetcher {
	t.Helper()
	cfg.URL = "http://es.local/"
	cfg.IndexPattern = "logs-*"
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	cfg.Transport = rt
	f, err := NewESFetcher(cfg, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	return f
}

func newTestFetcher(t *testing.T, rt roundTripFunc) *ESFetcher {
	t.Helper()
	return newTestFetcherWithConfig(t, ESConfig{ScrollSize: 2}, rt)
}

func TestFetchPaginatesWithScroll(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var firstQuery map[string]any

	f := newTestFetcher(t, func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		paths = append(paths, req.Method+" "+req.URL.Path)
		mu.Unlock()
		switch {
		case req.URL.Path == "/logs-*/_search":
			if req.URL.Query().Get("scroll") == "" {
				t.Fatalf("expected a scroll keep-alive, got %q", req.URL.RawQuery)
			}
			if err := json.NewDecoder(req.Body).Decode(&firstQuery); err != nil {
				t.Fatalf("decode query: %v", err)
			}
			return jsonResponse(http.StatusOK, `{"_scroll_id":"s1","hits":{"hits":[
				{"_source":{"@timestamp":"2024-01-01T10:00:00Z","message":"a","log":{"level":"error"},"service":{"name":"api"}}},
				{"_source":{"@timestamp":"2024-01-01T10:00:01Z","message":"b","error":{"type":"Timeout","message":"slow"}}}
			]}}`), nil
		case req.Method != http.MethodDelete && req.URL.Path == "/_search/scroll":
			var body map[string]any
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body["scroll_id"] != "s1" {
				t.Fatalf("expected scroll_id s1 in body, got %v (%v)", body, err)
			}
			return jsonResponse(http.StatusOK, `{"_scroll_id":"s2","hits":{"hits":[
				{"_source":{"@timestamp":"2024-01-01T10:00:02Z","message":"c","host":{"name":"h1"}}}
			]}}`), nil
		case req.Method == http.MethodDelete:
			return jsonResponse(http.StatusOK, `{}`), nil
		}
		t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
		return nil, nil
	})

	records, err := f.Fetch(context.Background(), models.FetchQuery{
		Start:    time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
		Services: []string{"api"},
		MaxLogs:  3,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].LogLevel != "error" || records[0].ServiceName != "api" {
		t.Fatalf("unexpected mapping %+v", records[0])
	}
	if records[1].ErrorType != "Timeout" || records[1].ErrorMessage != "slow" {
		t.Fatalf("nested error fields not mapped: %+v", records[1])
	}
	if records[2].HostName != "h1" || records[2].Raw == nil {
		t.Fatalf("expected host and raw document, got %+v", records[2])
	}
	if firstQuery["size"].(float64) != 2 {
		t.Fatalf("expected page size 2, got %v", firstQuery["size"])
	}
	encoded, _ := json.Marshal(firstQuery)
	if !strings.Contains(string(encoded), `"log.level":["error","critical"]`) {
		t.Fatalf("expected default level filter, got %s", encoded)
	}
	if !strings.Contains(string(encoded), `"service.name":["api"]`) {
		t.Fatalf("expected service filter, got %s", encoded)
	}
	if paths[len(paths)-1] != "DELETE /_search/scroll" {
		t.Fatalf("expected scroll to be cleared, got %v", paths)
	}
}

func TestFetchLowercasesRequestedLevels(t *testing.T) {
	var body string
	f := newTestFetcher(t, func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodDelete {
			return jsonResponse(http.StatusOK, `{}`), nil
		}
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
		return jsonResponse(http.StatusOK, `{"hits":{"hits":[]}}`), nil
	})
	records, err := f.Fetch(context.Background(), models.FetchQuery{Levels: []string{"WARN", "Error"}})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty result, got %d", len(records))
	}
	if !strings.Contains(body, `"log.level":["warn","error"]`) {
		t.Fatalf("expected lowercased levels, got %s", body)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	calls := 0
	f := newTestFetcher(t, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return jsonResponse(http.StatusServiceUnavailable, `busy`), nil
		}
		return jsonResponse(http.StatusOK, `{"hits":{"hits":[{"_source":{"message":"ok"}}]}}`), nil
	})
	records, err := f.Fetch(context.Background(), models.FetchQuery{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 3 || len(records) != 1 {
		t.Fatalf("expected success on third attempt, calls=%d records=%d", calls, len(records))
	}
}

func TestFetchDoesNotRetryMissingIndex(t *testing.T) {
	calls := 0
	f := newTestFetcher(t, func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})
	_, err := f.Fetch(context.Background(), models.FetchQuery{})
	if !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestFetchDoesNotRetryUndecodableResponse(t *testing.T) {
	calls := 0
	f := newTestFetcher(t, func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusOK, `{"_scroll_id":"s1","hits":`), nil
	})
	if _, err := f.Fetch(context.Background(), models.FetchQuery{}); err == nil {
		t.Fatalf("expected decode error")
	}
	if calls != 1 {
		t.Fatalf("expected a single search request, got %d", calls)
	}
}

func TestNewESFetcherRequiresURL(t *testing.T) {
	if _, err := NewESFetcher(ESConfig{}, nil); !errors.Is(err, utils.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without URL, got %v", err)
	}
	if _, err := NewESFetcher(ESConfig{URL: "http://es.local", ScrollTimeout: "soon"}, nil); err == nil {
		t.Fatalf("expected invalid scroll timeout to be rejected")
	}
}

func TestPingSendsBasicAuth(t *testing.T) {
	rt := func(req *http.Request) (*http.Response, error) {
		user, pass, ok := req.BasicAuth()
		if !ok || user != "elastic" || pass != "secret" {
			return jsonResponse(http.StatusUnauthorized, ``), nil
		}
		return jsonResponse(http.StatusOK, `{"cluster_name":"test"}`), nil
	}
	anonymous := newTestFetcher(t, rt)
	if err := anonymous.Ping(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized without credentials, got %v", err)
	}
	authed := newTestFetcherWithConfig(t, ESConfig{Username: "elastic", Password: "secret"}, rt)
	if err := authed.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestBackoffDoublesUpToMax(t *testing.T) {
	f := newTestFetcherWithConfig(t, ESConfig{}, func(*http.Request) (*http.Response, error) { return nil, nil })
	f.cfg.InitialBackoff = 100 * time.Millisecond
	f.cfg.MaxBackoff = 300 * time.Millisecond
	for attempt, want := range map[int]time.Duration{1: 100 * time.Millisecond, 2: 200 * time.Millisecond, 3: 300 * time.Millisecond, 6: 300 * time.Millisecond} {
		if got := f.backoff(attempt); got != want {
			t.Fatalf("backoff(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func TestLookupStringHandlesFlattenedKeys(t *testing.T) {
	doc := map[string]any{
		"log.level": "error",
		"error":     map[string]any{"code": 503},
	}
	if got := lookupString(doc, "log.level"); got != "error" {
		t.Fatalf("expected flattened key lookup, got %q", got)
	}
	if got := lookupString(doc, "error.code"); got != "503" {
		t.Fatalf("expected numeric value stringified, got %q", got)
	}
	if got := lookupString(doc, "error.code.deeper"); got != "" {
		t.Fatalf("expected empty for missing path, got %q", got)
	}
}

func TestMergeFieldMappings(t *testing.T) {
	m := MergeFieldMappings(map[string]string{"service_name": "kubernetes.container.name", "bogus": "x"})
	if m.ServiceName != "kubernetes.container.name" {
		t.Fatalf("expected override applied, got %q", m.ServiceName)
	}
	if m.Timestamp != "@timestamp" || m.LogLevel != "log.level" {
		t.Fatalf("expected defaults kept, got %+v", m)
	}
}
