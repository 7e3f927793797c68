package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/miradorstack/mirador-logrca/internal/api"
)

func newServeCmd(c *cli) *cobra.Command {
	var withSchedule bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC and REST analysis service",
		Long: `Serve the analysis API over gRPC (JSON codec) and REST.

REST routes:
  POST /api/v1/analyze       analyse records in the request body
  POST /api/v1/investigate   fetch a window from Elasticsearch and analyse it
  GET  /api/v1/runs          list stored runs
  GET  /api/v1/runs/{id}     fetch one stored run
  GET  /healthz              component health
  GET  /metrics              Prometheus metrics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c, withSchedule)
		},
	}
	cmd.Flags().BoolVar(&withSchedule, "with-schedule", false, "also run the daily scheduled analysis in-process")
	return cmd
}

func runServe(parent context.Context, c *cli, withSchedule bool) error {
	cfg, logger := c.cfg, c.logger
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("starting logrca",
		slog.String("grpc_address", cfg.Server.Address),
		slog.String("http_address", cfg.Server.HTTPAddress))

	server, err := api.NewServer(cfg.Server, a.service,
		grpc.MaxRecvMsgSize(cfg.Server.MaxMessageBytes),
		grpc.MaxSendMsgSize(cfg.Server.MaxMessageBytes),
	)
	if err != nil {
		return err
	}

	var httpServer *http.Server
	if cfg.Server.HTTPAddress != "" {
		httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddress,
			Handler:           api.NewRouter(a.service, logger, prometheus.DefaultGatherer),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      5 * time.Minute,
		}
		go func() {
			logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	if withSchedule {
		hour, minute, _ := cfg.Schedule.DailyTime()
		sched := newScheduler(a.service, logger, hour, minute, cfg.Schedule.LookbackHours, cfg.Analysis.UseAdvisory && cfg.Advisor.Enabled)
		go sched.Run(ctx)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
	}

	logger.Info("logrca stopped")
	return nil
}
