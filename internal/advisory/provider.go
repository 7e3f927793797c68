package advisory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/miradorstack/mirador-logrca/internal/cache"
	"github.com/miradorstack/mirador-logrca/internal/metrics"
	"github.com/miradorstack/mirador-logrca/internal/models"
)

const (
	kindRootCause = "root_cause"
	kindSolution  = "solution"
)

// Options tunes the Provider.
type Options struct {
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	CacheTTL          time.Duration
}

// Provider resolves advisories through a Completer, rate limited and cached.
type Provider struct {
	completer Completer
	limiter   *rate.Limiter
	cache     cache.Provider
	opts      Options
	logger    *slog.Logger
}

// NewProvider wires a Completer with rate limiting and caching. store may be nil.
func NewProvider(logger *slog.Logger, completer Completer, store cache.Provider, opts Options) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = cache.NoopProvider{}
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Provider{
		completer: completer,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		cache:     store,
		opts:      opts,
		logger:    logger,
	}
}

// RootCause asks the model for the most probable root cause.
func (p *Provider) RootCause(ctx context.Context, groups []models.ErrorGroup, patterns models.PatternSet, temporal models.TemporalAnalysis) (*models.Advisory, error) {
	answer, err := p.ask(ctx, kindRootCause, BuildRootCausePrompt(groups, patterns, temporal))
	if err != nil {
		return nil, err
	}
	advisory := ParseRootCause(answer)
	if advisory == nil {
		p.logger.Warn("discarding malformed root cause advisory")
	}
	return advisory, nil
}

// Solution asks the model for a remediation plan for one root cause.
func (p *Provider) Solution(ctx context.Context, rc models.RootCause, groups []models.ErrorGroup) (*models.SolutionAdvice, error) {
	answer, err := p.ask(ctx, kindSolution, BuildSolutionPrompt(rc, groups))
	if err != nil {
		return nil, err
	}
	advice := ParseSolution(answer)
	if advice == nil {
		p.logger.Warn("discarding malformed solution advisory", slog.String("root_cause", rc.Description))
	}
	return advice, nil
}

// Ping reports whether the cache behind the provider is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	return p.cache.Ping(ctx)
}

func (p *Provider) ask(ctx context.Context, kind, prompt string) (string, error) {
	key := cacheKey(kind, prompt)
	if cached, err := p.cache.Get(ctx, key); err == nil {
		metrics.ObserveAdvisoryCall(kind, metrics.OutcomeCacheHit)
		return string(cached), nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		p.logger.Debug("advisory cache read failed", slog.Any("error", err))
	}

	answer, err := p.completeWithRetry(ctx, kind, prompt)
	if err != nil {
		metrics.ObserveAdvisoryCall(kind, metrics.OutcomeError)
		return "", err
	}
	metrics.ObserveAdvisoryCall(kind, metrics.OutcomeSuccess)

	if err := p.cache.Set(ctx, key, []byte(answer), p.opts.CacheTTL); err != nil {
		p.logger.Debug("advisory cache write failed", slog.Any("error", err))
	}
	return answer, nil
}

func (p *Provider) completeWithRetry(ctx context.Context, kind, prompt string) (string, error) {
	var lastErr error
	backoff := p.opts.InitialBackoff

	for attempt := 0; attempt <= p.opts.MaxRetries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%s advisory: rate limiter: %w", kind, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
		answer, err := p.completer.Complete(attemptCtx, prompt)
		cancel()
		if err == nil {
			if attempt > 0 {
				p.logger.Info("advisory succeeded after retry", slog.String("kind", kind), slog.Int("retries", attempt))
			}
			return answer, nil
		}

		lastErr = err
		if !isRetriable(err) || attempt == p.opts.MaxRetries {
			break
		}
		p.logger.Warn("advisory request failed, retrying",
			slog.String("kind", kind),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.Any("error", err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", fmt.Errorf("%s advisory: %w", kind, ctx.Err())
		}
		backoff *= 2
		if backoff > p.opts.MaxBackoff {
			backoff = p.opts.MaxBackoff
		}
	}
	return "", fmt.Errorf("%s advisory: %w", kind, lastErr)
}

// isRetriable treats deadlines, rate limits, 5xx and connection failures as transient.
func isRetriable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "overloaded", "529",
		"500", "502", "503", "504",
		"connection refused", "connection reset", "timeout", "temporary failure",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func cacheKey(kind, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "advisory:" + kind + ":" + hex.EncodeToString(sum[:])
}
