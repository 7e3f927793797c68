package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/miradorstack/mirador-logrca/internal/models"
	"github.com/miradorstack/mirador-logrca/internal/utils"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS runs (
    run_id             TEXT PRIMARY KEY,
    status             TEXT NOT NULL,
    started_at         TEXT NOT NULL,
    completed_at       TEXT NOT NULL DEFAULT '',
    total_logs         INTEGER NOT NULL DEFAULT 0,
    error_groups       INTEGER NOT NULL DEFAULT 0,
    top_root_cause     TEXT NOT NULL DEFAULT '',
    confidence_score   REAL NOT NULL DEFAULT 0.0,
    overall_confidence REAL NOT NULL DEFAULT 0.0,
    result             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`,
	},
}

// SQLiteStore persists analysis results for later retrieval.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies pending migrations.
// ":memory:" gives a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, utils.NewAppError("repo.NewSQLiteStore", "store path is empty", nil)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// SaveRun stores a run, replacing any previous result under the same id.
func (s *SQLiteStore) SaveRun(ctx context.Context, result models.AnalysisResult) error {
	if result.RunID == "" {
		return utils.InvalidRequest("repo.SaveRun", "run id is empty")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	summary := Summarize(result)
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO runs(run_id, status, started_at, completed_at, total_logs, error_groups,
                         top_root_cause, confidence_score, overall_confidence, result)
        VALUES(?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(run_id) DO UPDATE SET
            status             = excluded.status,
            completed_at       = excluded.completed_at,
            total_logs         = excluded.total_logs,
            error_groups       = excluded.error_groups,
            top_root_cause     = excluded.top_root_cause,
            confidence_score   = excluded.confidence_score,
            overall_confidence = excluded.overall_confidence,
            result             = excluded.result
    `,
		summary.RunID, string(summary.Status), summary.StartedAt, summary.CompletedAt,
		summary.TotalLogs, summary.ErrorGroups, summary.TopRootCause,
		summary.ConfidenceScore, summary.OverallConfidence, string(payload),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", result.RunID, err)
	}
	return nil
}

// GetRun loads a stored run. Unknown ids return utils.ErrRunNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (models.AnalysisResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AnalysisResult{}, utils.NewAppError("repo.GetRun", runID, utils.ErrRunNotFound)
	}
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return result, nil
}

// ListRuns returns run summaries, newest first. The page token is an opaque offset.
func (s *SQLiteStore) ListRuns(ctx context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := 0
	if req.PageToken != "" {
		n, err := strconv.Atoi(req.PageToken)
		if err != nil || n < 0 {
			return models.ListRunsResponse{}, utils.InvalidRequest("repo.ListRuns", "malformed page token")
		}
		offset = n
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT run_id, status, started_at, completed_at, total_logs, error_groups,
               top_root_cause, confidence_score, overall_confidence
        FROM runs
        ORDER BY started_at DESC, run_id DESC
        LIMIT ? OFFSET ?`, limit+1, offset)
	if err != nil {
		return models.ListRunsResponse{}, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.RunSummary, 0, limit)
	for rows.Next() {
		var r models.RunSummary
		var status string
		if err := rows.Scan(&r.RunID, &status, &r.StartedAt, &r.CompletedAt, &r.TotalLogs,
			&r.ErrorGroups, &r.TopRootCause, &r.ConfidenceScore, &r.OverallConfidence); err != nil {
			return models.ListRunsResponse{}, fmt.Errorf("scan run: %w", err)
		}
		r.Status = models.RunStatus(status)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return models.ListRunsResponse{}, fmt.Errorf("list runs: %w", err)
	}

	resp := models.ListRunsResponse{Runs: runs}
	if len(runs) > limit {
		resp.Runs = runs[:limit]
		resp.NextPageToken = strconv.Itoa(offset + limit)
	}
	return resp, nil
}

// Summarize extracts the indexed columns of a run.
func Summarize(result models.AnalysisResult) models.RunSummary {
	summary := models.RunSummary{
		RunID:             result.RunID,
		Status:            result.Status,
		StartedAt:         result.StartedAt,
		CompletedAt:       result.CompletedAt,
		TotalLogs:         result.Statistics.TotalLogs,
		ErrorGroups:       len(result.ErrorGroups),
		ConfidenceScore:   result.ConfidenceScore,
		OverallConfidence: result.OverallConfidence,
	}
	if len(result.RootCauses) > 0 {
		summary.TopRootCause = result.RootCauses[0].Description
	}
	return summary
}
