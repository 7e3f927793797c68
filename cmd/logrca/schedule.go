package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

type scheduledRunner interface {
	RunScheduled(ctx context.Context, lookbackHours int, useAdvisory bool) (models.AnalysisResult, error)
}

// scheduler triggers one investigation per day at a fixed UTC time.
type scheduler struct {
	runner      scheduledRunner
	logger      *slog.Logger
	hour        int
	minute      int
	lookback    int
	useAdvisory bool

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func newScheduler(runner scheduledRunner, logger *slog.Logger, hour, minute, lookback int, useAdvisory bool) *scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &scheduler{
		runner:      runner,
		logger:      logger,
		hour:        hour,
		minute:      minute,
		lookback:    lookback,
		useAdvisory: useAdvisory,
		now:         time.Now,
		after:       time.After,
	}
}

// nextRun returns the first HH:MM UTC strictly after now.
func nextRun(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled. Failed runs are logged and the schedule continues.
func (s *scheduler) Run(ctx context.Context) {
	for {
		next := nextRun(s.now(), s.hour, s.minute)
		s.logger.Info("next scheduled analysis", slog.Time("at", next))
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-s.after(next.Sub(s.now())):
		}
		s.runOnce(ctx)
	}
}

func (s *scheduler) runOnce(ctx context.Context) {
	result, err := s.runner.RunScheduled(ctx, s.lookback, s.useAdvisory)
	if err != nil {
		s.logger.Error("scheduled analysis failed", slog.Any("error", err))
		return
	}
	s.logger.Info("scheduled analysis finished",
		slog.String("run_id", result.RunID),
		slog.String("status", string(result.Status)),
		slog.Float64("confidence", result.ConfidenceScore))
}

func newScheduleCmd(c *cli) *cobra.Command {
	var runNow bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the investigation daily at schedule.dailyAt (UTC)",
		Long: `Run an investigation over the last schedule.lookbackHours every day at
schedule.dailyAt (HH:MM, UTC) until interrupted. Results are persisted to the run store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			hour, minute, err := c.cfg.Schedule.DailyTime()
			if err != nil {
				return err
			}
			useAdvisory := c.cfg.Analysis.UseAdvisory && c.cfg.Advisor.Enabled
			s := newScheduler(a.service, c.logger, hour, minute, c.cfg.Schedule.LookbackHours, useAdvisory)
			if runNow {
				s.runOnce(ctx)
			}
			s.Run(ctx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run one investigation immediately before waiting for the schedule")
	return cmd
}
