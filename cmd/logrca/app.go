package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/mirador-logrca/internal/advisory"
	"github.com/miradorstack/mirador-logrca/internal/cache"
	"github.com/miradorstack/mirador-logrca/internal/classifier"
	"github.com/miradorstack/mirador-logrca/internal/config"
	"github.com/miradorstack/mirador-logrca/internal/engine"
	"github.com/miradorstack/mirador-logrca/internal/metrics"
	"github.com/miradorstack/mirador-logrca/internal/patterns"
	"github.com/miradorstack/mirador-logrca/internal/repo"
	"github.com/miradorstack/mirador-logrca/internal/services"
)

// app is the fully wired service plus the resources that must be released on exit.
type app struct {
	service *services.RCAService
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	a := &app{}

	cacheProvider := buildCache(ctx, cfg.Cache, logger)
	a.closers = append(a.closers, cacheProvider.Close)

	var advisor services.Advisor
	if cfg.Advisor.Enabled {
		completer, err := advisory.NewAnthropicCompleter(cfg.Advisor.APIKey, cfg.Advisor.Model, cfg.Advisor.MaxTokens)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("advisor: %w", err)
		}
		advisor = advisory.NewProvider(logger, completer, cacheProvider, advisory.Options{
			RequestsPerSecond: cfg.Advisor.RequestsPerSecond,
			Burst:             cfg.Advisor.Burst,
			Timeout:           cfg.Advisor.Timeout,
			MaxRetries:        cfg.Advisor.MaxRetries,
			CacheTTL:          cfg.Cache.AdvisoryTTL,
		})
		logger.Info("advisory enabled", slog.String("model", cfg.Advisor.Model))
	}

	var fetcher services.LogFetcher
	if es := cfg.Elasticsearch; es.URL != "" {
		esFetcher, err := repo.NewESFetcher(repo.ESConfig{
			URL:           es.URL,
			Username:      es.Username,
			Password:      es.Password,
			IndexPattern:  es.IndexPattern,
			Fields:        repo.MergeFieldMappings(es.FieldMappings),
			DefaultLevels: es.DefaultLevels,
			ScrollSize:    es.ScrollSize,
			ScrollTimeout: es.ScrollTimeout,
			MaxLogs:       es.MaxLogs,
			Timeout:       es.Timeout,
			MaxRetries:    es.MaxRetries,
		}, logger)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("log store: %w", err)
		}
		fetcher = esFetcher
	}

	var store services.RunStore
	if path := cfg.Store.Path; path != "" {
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				_ = a.Close()
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
		sqliteStore, err := repo.NewSQLiteStore(path)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open run store: %w", err)
		}
		a.closers = append(a.closers, sqliteStore.Close)
		store = sqliteStore
	}

	rules, err := engine.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load rule pack: %w", err)
	}

	pipeline := engine.NewPipeline(
		logger,
		classifier.New(logger, classifier.WithWorkers(cfg.Analysis.Workers)),
		patterns.NewDetector(logger),
		rules,
	)
	a.service = services.NewRCAService(logger, pipeline, fetcher, advisor, store)
	return a, nil
}

func buildCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled {
		return cache.NoopProvider{}
	}
	if cfg.Addr != "" {
		provider, err := cache.NewValkeyProvider(ctx, cache.ValkeyConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			KeyPrefix:    cfg.KeyPrefix,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		})
		if err == nil {
			return provider
		}
		logger.Warn("valkey cache unavailable, using in-memory cache", slog.Any("error", err))
	}
	return cache.NewMemoryProvider(cfg.MemoryMax)
}
