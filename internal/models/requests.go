package models

import "time"

// AnalyzeRequest asks for an analysis of caller-supplied records.
type AnalyzeRequest struct {
	Records     []LogRecord `json:"records"`
	UseAdvisory bool        `json:"use_advisory"`
}

// InvestigationRequest asks for logs to be fetched from the log store and analysed.
type InvestigationRequest struct {
	TimeRange      TimeRange `json:"time_range"`
	Hours          int       `json:"hours,omitempty"`
	Services       []string  `json:"services,omitempty"`
	Levels         []string  `json:"levels,omitempty"`
	MaxLogs        int       `json:"max_logs,omitempty"`
	UseAdvisory    bool      `json:"use_advisory"`
	SkipPersisting bool      `json:"skip_persisting,omitempty"`
}

// TimeRange bounds the log window for analysis.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FetchQuery is the normalised query handed to the log fetcher.
type FetchQuery struct {
	Start    time.Time
	End      time.Time
	Services []string
	Levels   []string
	MaxLogs  int
}

// ListRunsRequest captures pagination for run history.
type ListRunsRequest struct {
	Limit     int    `json:"limit"`
	PageToken string `json:"page_token,omitempty"`
}

// ListRunsResponse contains run summaries and pagination state.
type ListRunsResponse struct {
	Runs          []RunSummary `json:"runs"`
	NextPageToken string       `json:"next_page_token,omitempty"`
}

// GetRunRequest identifies a stored run.
type GetRunRequest struct {
	RunID string `json:"run_id"`
}

// RunSummary is the indexed part of a stored run.
type RunSummary struct {
	RunID             string    `json:"run_id"`
	Status            RunStatus `json:"status"`
	StartedAt         string    `json:"started_at"`
	CompletedAt       string    `json:"completed_at"`
	TotalLogs         int       `json:"total_logs"`
	ErrorGroups       int       `json:"error_groups"`
	TopRootCause      string    `json:"top_root_cause"`
	ConfidenceScore   float64   `json:"confidence_score"`
	OverallConfidence float64   `json:"overall_confidence"`
}

// HealthRequest is the (empty) health check request.
type HealthRequest struct{}

// HealthReport describes component health.
type HealthReport struct {
	Timestamp     string            `json:"timestamp"`
	OverallStatus string            `json:"overall_status"`
	Components    map[string]string `json:"components"`
	RunLatency    *RunLatency       `json:"run_latency,omitempty"`
}

// RunLatency summarises recent analysis run durations. Absent until a run has finished.
type RunLatency struct {
	Samples int   `json:"samples"`
	P50Ms   int64 `json:"p50_ms"`
	P95Ms   int64 `json:"p95_ms"`
	MaxMs   int64 `json:"max_ms"`
}
