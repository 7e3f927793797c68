package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

const maxRequestBytes = 64 << 20

// RESTHandler exposes the analysis service over JSON/HTTP.
type RESTHandler struct {
	service AnalysisService
	logger  *slog.Logger
}

// NewRouter builds the REST routes plus /healthz and /metrics. A nil gatherer uses the default registry.
func NewRouter(service AnalysisService, logger *slog.Logger, gatherer prometheus.Gatherer) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := &RESTHandler{service: service, logger: logger}

	router := mux.NewRouter()
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/analyze", h.Analyze).Methods(http.MethodPost)
	v1.HandleFunc("/investigate", h.Investigate).Methods(http.MethodPost)
	v1.HandleFunc("/runs", h.ListRuns).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{id}", h.GetRun).Methods(http.MethodGet)

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return router
}

// Analyze handles POST /api/v1/analyze.
func (h *RESTHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := ValidateAnalyzeRequest(req); err != nil {
		h.fail(w, err)
		return
	}
	res, err := h.service.Analyze(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Investigate handles POST /api/v1/investigate.
func (h *RESTHandler) Investigate(w http.ResponseWriter, r *http.Request) {
	var req models.InvestigationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := ValidateInvestigationRequest(req); err != nil {
		h.fail(w, err)
		return
	}
	res, err := h.service.Investigate(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ListRuns handles GET /api/v1/runs?limit=&page_token=.
func (h *RESTHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	req := models.ListRunsRequest{PageToken: r.URL.Query().Get("page_token")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		req.Limit = limit
	}
	res, err := h.service.ListRuns(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetRun handles GET /api/v1/runs/{id}.
func (h *RESTHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res, err := h.service.GetRun(r.Context(), models.GetRunRequest{RunID: vars["id"]})
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Health handles GET /healthz. Degraded components yield 503.
func (h *RESTHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.service.Health(r.Context())
	code := http.StatusOK
	if report.OverallStatus != "healthy" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, report)
}

func (h *RESTHandler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(out); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *RESTHandler) fail(w http.ResponseWriter, err error) {
	code := httpStatusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", slog.Any("error", err))
	}
	respondError(w, code, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
