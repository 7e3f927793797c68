package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-logrca/internal/engine"
	"github.com/miradorstack/mirador-logrca/internal/metrics"
	"github.com/miradorstack/mirador-logrca/internal/models"
	"github.com/miradorstack/mirador-logrca/internal/utils"
)

const (
	// TriggerAnalyze labels runs over caller-supplied records.
	TriggerAnalyze = "analyze"
	// TriggerInvestigate labels runs over fetched logs.
	TriggerInvestigate = "investigate"
	// TriggerSchedule labels runs started by the daily scheduler.
	TriggerSchedule = "schedule"

	defaultLookbackHours = 24

	stageFetch     = "fetch"
	stageParse     = "parse"
	stageRCA       = "rca"
	stageSolutions = "solutions"
	stagePersist   = "persist"

	statusCompleted = "completed"
	statusFailed    = "failed"
	statusSkipped   = "skipped"
)

// LogFetcher pulls log records from the log store.
type LogFetcher interface {
	Fetch(ctx context.Context, q models.FetchQuery) ([]models.LogRecord, error)
	Ping(ctx context.Context) error
}

// RunStore persists analysis results.
type RunStore interface {
	SaveRun(ctx context.Context, result models.AnalysisResult) error
	GetRun(ctx context.Context, runID string) (models.AnalysisResult, error)
	ListRuns(ctx context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error)
	Ping(ctx context.Context) error
}

// Advisor is an engine.Advisor that can report its own health.
type Advisor interface {
	engine.Advisor
	Ping(ctx context.Context) error
}

// RCAService orchestrates staged analysis runs over the engine pipeline.
type RCAService struct {
	logger    *slog.Logger
	pipeline  *engine.Pipeline
	fetcher   LogFetcher
	advisor   Advisor
	store     RunStore
	latencies *utils.LatencyWindow

	now   func() time.Time
	newID func() string
}

// NewRCAService constructs the service facade. fetcher, advisor and store may be nil;
// operations that need them report utils.ErrNotConfigured.
func NewRCAService(logger *slog.Logger, pipeline *engine.Pipeline, fetcher LogFetcher, advisor Advisor, store RunStore) *RCAService {
	if logger == nil {
		logger = slog.Default()
	}
	if pipeline == nil {
		pipeline = engine.NewPipeline(logger, nil, nil, nil)
	}
	return &RCAService{
		logger:    logger,
		pipeline:  pipeline,
		fetcher:   fetcher,
		advisor:   advisor,
		store:     store,
		latencies: utils.NewLatencyWindow(1024),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Analyze runs the pipeline over caller-supplied records.
func (s *RCAService) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	advisor, err := s.resolveAdvisor(req.UseAdvisory)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	run := s.newRun()
	run.Stages = append(run.Stages, models.StageStatus{Name: stageFetch, Status: statusSkipped, Detail: "records supplied by caller"})
	return s.execute(ctx, TriggerAnalyze, run, req.Records, advisor, false)
}

// Investigate fetches the requested window from the log store and analyses it.
func (s *RCAService) Investigate(ctx context.Context, req models.InvestigationRequest) (models.AnalysisResult, error) {
	return s.investigate(ctx, TriggerInvestigate, req)
}

// RunScheduled performs the periodic investigation over the last lookbackHours.
func (s *RCAService) RunScheduled(ctx context.Context, lookbackHours int, useAdvisory bool) (models.AnalysisResult, error) {
	return s.investigate(ctx, TriggerSchedule, models.InvestigationRequest{Hours: lookbackHours, UseAdvisory: useAdvisory})
}

func (s *RCAService) investigate(ctx context.Context, trigger string, req models.InvestigationRequest) (models.AnalysisResult, error) {
	if s.fetcher == nil {
		return models.AnalysisResult{}, utils.NewAppError("services.Investigate", "log store", utils.ErrNotConfigured)
	}
	query, err := s.buildQuery(req)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	advisor, err := s.resolveAdvisor(req.UseAdvisory)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	run := s.newRun()
	start := time.Now()
	s.logger.Info("analysis run started",
		slog.String("run_id", run.RunID),
		slog.String("trigger", trigger),
		slog.String("window_start", utils.FormatTimestamp(query.Start)),
		slog.String("window_end", utils.FormatTimestamp(query.End)),
	)

	records, err := s.fetcher.Fetch(ctx, query)
	metrics.ObserveStage(stageFetch, time.Since(start))
	if err != nil {
		run.Stages = append(run.Stages, models.StageStatus{Name: stageFetch, Status: statusFailed, Detail: err.Error()})
		s.fail(ctx, trigger, run, start, err, req.SkipPersisting)
		return models.AnalysisResult{}, fmt.Errorf("fetch logs: %w", err)
	}
	run.Stages = append(run.Stages, models.StageStatus{Name: stageFetch, Status: statusCompleted, Detail: fmt.Sprintf("%d logs", len(records))})

	return s.execute(ctx, trigger, run, records, advisor, req.SkipPersisting)
}

// execute runs parse, RCA and solution stages and persists the outcome.
func (s *RCAService) execute(ctx context.Context, trigger string, run models.AnalysisResult, records []models.LogRecord, advisor engine.Advisor, skipPersist bool) (models.AnalysisResult, error) {
	start := time.Now()

	stageStart := time.Now()
	parsed, err := s.pipeline.Parse(ctx, records)
	metrics.ObserveStage(stageParse, time.Since(stageStart))
	if err != nil {
		run.Stages = append(run.Stages, models.StageStatus{Name: stageParse, Status: statusFailed, Detail: err.Error()})
		s.fail(ctx, trigger, run, start, err, skipPersist)
		return models.AnalysisResult{}, fmt.Errorf("parse logs: %w", err)
	}
	run.Stages = append(run.Stages, models.StageStatus{
		Name:   stageParse,
		Status: statusCompleted,
		Detail: fmt.Sprintf("%d logs, %d groups", len(parsed.ClassifiedLogs), len(parsed.ErrorGroups)),
	})
	for category, n := range parsed.Statistics.ByCategory {
		metrics.AddClassified(string(category), n)
	}

	stageStart = time.Now()
	rca := s.pipeline.Investigate(ctx, parsed, advisor)
	metrics.ObserveStage(stageRCA, time.Since(stageStart))
	run.Stages = append(run.Stages, models.StageStatus{Name: stageRCA, Status: statusCompleted, Detail: fmt.Sprintf("%d root causes", len(rca.RootCauses))})

	stageStart = time.Now()
	solutions := s.pipeline.Remediate(ctx, rca, parsed.ErrorGroups, advisor)
	metrics.ObserveStage(stageSolutions, time.Since(stageStart))
	run.Stages = append(run.Stages, models.StageStatus{Name: stageSolutions, Status: statusCompleted, Detail: fmt.Sprintf("%d solutions", len(solutions.Solutions))})

	result := engine.Assemble(parsed, rca, solutions)
	result.RunID = run.RunID
	result.StartedAt = run.StartedAt
	result.Stages = run.Stages
	result.Status = models.RunCompleted
	outcome := metrics.OutcomeSuccess
	if len(records) == 0 {
		result.Status = models.RunCompletedNoLogs
		outcome = metrics.OutcomeNoLogs
	}
	result.CompletedAt = utils.FormatTimestamp(s.now())
	s.persist(ctx, &result, skipPersist)

	duration := time.Since(start)
	s.latencies.Observe(duration)
	metrics.ObserveRun(trigger, duration, outcome)

	s.logger.Info("analysis run completed",
		slog.String("run_id", result.RunID),
		slog.String("status", string(result.Status)),
		slog.Int("error_groups", len(result.ErrorGroups)),
		slog.Float64("confidence", result.ConfidenceScore),
		slog.Duration("duration", duration),
	)
	return result, nil
}

func (s *RCAService) fail(ctx context.Context, trigger string, run models.AnalysisResult, start time.Time, cause error, skipPersist bool) {
	run.Status = models.RunFailed
	run.CompletedAt = utils.FormatTimestamp(s.now())
	s.persist(ctx, &run, skipPersist)
	metrics.ObserveRun(trigger, time.Since(start), metrics.OutcomeError)
	s.logger.Error("analysis run failed", slog.String("run_id", run.RunID), slog.Any("error", cause))
}

func (s *RCAService) persist(ctx context.Context, result *models.AnalysisResult, skip bool) {
	if skip || s.store == nil {
		return
	}
	start := time.Now()
	err := s.store.SaveRun(context.WithoutCancel(ctx), *result)
	metrics.ObserveStage(stagePersist, time.Since(start))
	if err != nil {
		result.Stages = append(result.Stages, models.StageStatus{Name: stagePersist, Status: statusFailed, Detail: err.Error()})
		s.logger.Warn("persisting run failed", slog.String("run_id", result.RunID), slog.Any("error", err))
	}
}

func (s *RCAService) newRun() models.AnalysisResult {
	return models.AnalysisResult{
		RunID:     s.newID(),
		StartedAt: utils.FormatTimestamp(s.now()),
	}
}

func (s *RCAService) resolveAdvisor(requested bool) (engine.Advisor, error) {
	if !requested {
		return nil, nil
	}
	if s.advisor == nil {
		return nil, utils.NewAppError("services.resolveAdvisor", "advisory requested", utils.ErrNoAdvisor)
	}
	return s.advisor, nil
}

func (s *RCAService) buildQuery(req models.InvestigationRequest) (models.FetchQuery, error) {
	if req.Hours < 0 {
		return models.FetchQuery{}, utils.InvalidRequest("services.Investigate", "hours must not be negative")
	}
	if req.MaxLogs < 0 {
		return models.FetchQuery{}, utils.InvalidRequest("services.Investigate", "max_logs must not be negative")
	}
	q := models.FetchQuery{
		Start:    req.TimeRange.Start.UTC(),
		End:      req.TimeRange.End.UTC(),
		Services: req.Services,
		Levels:   req.Levels,
		MaxLogs:  req.MaxLogs,
	}
	if req.TimeRange.Start.IsZero() || req.TimeRange.End.IsZero() {
		hours := req.Hours
		if hours == 0 {
			hours = defaultLookbackHours
		}
		q.End = s.now().UTC()
		q.Start = q.End.Add(-time.Duration(hours) * time.Hour)
	}
	if !q.End.After(q.Start) {
		return models.FetchQuery{}, utils.InvalidRequest("services.Investigate", "time range end must be after start")
	}
	return q, nil
}

// GetRun returns a stored run.
func (s *RCAService) GetRun(ctx context.Context, req models.GetRunRequest) (models.AnalysisResult, error) {
	if req.RunID == "" {
		return models.AnalysisResult{}, utils.InvalidRequest("services.GetRun", "run_id is required")
	}
	if s.store == nil {
		return models.AnalysisResult{}, utils.NewAppError("services.GetRun", "run store", utils.ErrNotConfigured)
	}
	return s.store.GetRun(ctx, req.RunID)
}

// ListRuns returns stored run summaries, newest first.
func (s *RCAService) ListRuns(ctx context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error) {
	if req.Limit < 0 {
		return models.ListRunsResponse{}, utils.InvalidRequest("services.ListRuns", "limit must not be negative")
	}
	if s.store == nil {
		return models.ListRunsResponse{}, utils.NewAppError("services.ListRuns", "run store", utils.ErrNotConfigured)
	}
	return s.store.ListRuns(ctx, req)
}

// Health checks every configured collaborator. Unconfigured components do not degrade the report.
func (s *RCAService) Health(ctx context.Context) models.HealthReport {
	report := models.HealthReport{
		Timestamp:     utils.FormatTimestamp(s.now()),
		OverallStatus: "healthy",
		Components:    make(map[string]string, 3),
	}
	check := func(name string, configured bool, ping func(context.Context) error) {
		if !configured {
			report.Components[name] = "not_configured"
			return
		}
		if err := ping(ctx); err != nil {
			report.Components[name] = "unhealthy: " + err.Error()
			report.OverallStatus = "degraded"
			return
		}
		report.Components[name] = "healthy"
	}
	check("log_store", s.fetcher != nil, func(ctx context.Context) error { return s.fetcher.Ping(ctx) })
	check("advisor", s.advisor != nil, func(ctx context.Context) error { return s.advisor.Ping(ctx) })
	check("run_store", s.store != nil, func(ctx context.Context) error { return s.store.Ping(ctx) })

	if latency := s.latencies.Summary(); latency.Samples > 0 {
		report.RunLatency = &models.RunLatency{
			Samples: latency.Samples,
			P50Ms:   latency.P50.Milliseconds(),
			P95Ms:   latency.P95.Milliseconds(),
			MaxMs:   latency.Max.Milliseconds(),
		}
	}
	return report
}
