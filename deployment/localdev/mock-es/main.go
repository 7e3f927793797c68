// Command mock-es serves a canned cascading incident through the subset of the
// Elasticsearch search and scroll API that logrca uses.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type incidentEvent struct {
	offset    time.Duration
	service   string
	level     string
	errorType string
	message   string
	repeat    int
	spacing   time.Duration
}

// The database fails first, the API follows, and the gateway bursts last.
var incident = []incidentEvent{
	{offset: 0, service: "postgres-proxy", level: "error", errorType: "ConnectionError", message: "connection refused to db-primary:5432", repeat: 12, spacing: 5 * time.Second},
	{offset: 30 * time.Second, service: "orders-api", level: "error", errorType: "TimeoutError", message: "query timeout after 30000ms waiting for connection pool", repeat: 15, spacing: 4 * time.Second},
	{offset: 45 * time.Second, service: "orders-api", level: "critical", errorType: "PoolExhausted", message: "connection pool exhausted: 50/50 in use", repeat: 4, spacing: 10 * time.Second},
	{offset: 90 * time.Second, service: "edge-gateway", level: "error", errorType: "UpstreamError", message: "upstream orders-api returned 503 Service Unavailable", repeat: 20, spacing: time.Second},
	{offset: 2 * time.Minute, service: "auth", level: "error", errorType: "AuthError", message: "401 Unauthorized: invalid token for user id=4821", repeat: 3, spacing: 20 * time.Second},
}

type scrollState struct {
	hits []map[string]any
	next int
}

type server struct {
	logger   *slog.Logger
	pageSize int

	mu      sync.Mutex
	scrolls map[string]*scrollState
}

func main() {
	addr := flag.String("addr", ":9200", "listen address")
	pageSize := flag.Int("page-size", 10, "hits per search or scroll page")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With(slog.String("component", "mock-es"))
	s := &server{logger: logger, pageSize: *pageSize, scrolls: make(map[string]*scrollState)}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleInfo).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/_search/scroll", s.handleScroll).Methods(http.MethodPost)
	r.HandleFunc("/_search/scroll", s.handleClearScroll).Methods(http.MethodDelete)
	r.HandleFunc("/{index}/_search", s.handleSearch).Methods(http.MethodPost, http.MethodGet)
	r.Use(s.logRequests, productHeader)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("listening", slog.String("address", *addr), slog.Int("documents", len(buildHits(time.Now().UTC()))))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

func (s *server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         "mock-es",
		"cluster_name": "logrca-localdev",
		"version":      map[string]any{"number": "8.13.0"},
		"tagline":      "You Know, for Search",
	})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	hits := buildHits(time.Now().UTC())
	if r.URL.Query().Get("scroll") == "" {
		writeJSON(w, http.StatusOK, searchPage("", hits, len(hits)))
		return
	}

	id := uuid.NewString()
	state := &scrollState{hits: hits}
	page := s.advance(state)
	s.mu.Lock()
	s.scrolls[id] = state
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, searchPage(id, page, len(hits)))
}

func (s *server) handleScroll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScrollID string `json:"scroll_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "parse_exception", err.Error())
		return
	}
	s.mu.Lock()
	state, ok := s.scrolls[body.ScrollID]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "search_context_missing_exception", fmt.Sprintf("no search context found for id [%s]", body.ScrollID))
		return
	}
	page := s.advance(state)
	writeJSON(w, http.StatusOK, searchPage(body.ScrollID, page, len(state.hits)))
}

func (s *server) handleClearScroll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScrollID []string `json:"scroll_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	for _, id := range body.ScrollID {
		delete(s.scrolls, id)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"succeeded": true, "num_freed": len(body.ScrollID)})
}

func (s *server) advance(state *scrollState) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := state.next + s.pageSize
	if end > len(state.hits) {
		end = len(state.hits)
	}
	page := state.hits[state.next:end]
	state.next = end
	return page
}

// buildHits lays the incident out over the ten minutes before now, newest first.
func buildHits(now time.Time) []map[string]any {
	base := now.Add(-10 * time.Minute)
	var docs []map[string]any
	for _, ev := range incident {
		for i := 0; i < ev.repeat; i++ {
			ts := base.Add(ev.offset + time.Duration(i)*ev.spacing)
			docs = append(docs, map[string]any{
				"@timestamp": ts.Format(time.RFC3339Nano),
				"message":    ev.message,
				"log":        map[string]any{"level": ev.level},
				"service":    map[string]any{"name": ev.service},
				"host":       map[string]any{"name": ev.service + "-" + strconv.Itoa(i%3)},
				"error":      map[string]any{"type": ev.errorType, "message": ev.message},
				"event":      map[string]any{"dataset": ev.service + ".log", "module": "mock"},
			})
		}
	}
	hits := make([]map[string]any, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		hits = append(hits, map[string]any{"_index": "logs-mock", "_id": uuid.NewString(), "_source": docs[i]})
	}
	return hits
}

func searchPage(scrollID string, hits []map[string]any, total int) map[string]any {
	page := map[string]any{
		"took":      1,
		"timed_out": false,
		"hits": map[string]any{
			"total": map[string]any{"value": total, "relation": "eq"},
			"hits":  hits,
		},
	}
	if scrollID != "" {
		page["_scroll_id"] = scrollID
	}
	return page
}

// productHeader marks responses the way a real cluster does; the official
// client refuses to talk to servers that omit it.
func productHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, kind, reason string) {
	writeJSON(w, status, map[string]any{
		"error":  map[string]any{"type": kind, "reason": reason},
		"status": status,
	})
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Duration("elapsed", time.Since(start)))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
