// Package classifier assigns a category, severity, and extracted entities to log records.
package classifier

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-logrca/internal/extractors"
	"github.com/miradorstack/mirador-logrca/internal/models"
	"github.com/miradorstack/mirador-logrca/internal/utils"
)

type categoryPatterns struct {
	category models.Category
	patterns []string
}

// categoryTable is evaluated in order; earlier entries win ties.
var categoryTable = []categoryPatterns{
	{models.CategoryApplication, []string{
		"exception", "nullpointerexception", "indexoutofbounds", "illegalargument",
		"runtime error", "syntax error", "type error", "value error",
		"attribute error", "import error", "assertion error",
	}},
	{models.CategoryInfrastructure, []string{
		"connection refused", "connection timeout", "network unreachable", "host not found",
		"dns resolution failed", "disk full", "out of memory", "resource exhausted",
		"service unavailable", "database connection", "redis connection", "kafka connection",
	}},
	{models.CategorySecurity, []string{
		"authentication failed", "authorization denied", "access denied", "permission denied",
		"invalid token", "expired token", "unauthorized", "forbidden",
		"csrf", "xss", "sql injection", "invalid credentials",
	}},
	{models.CategoryPerformance, []string{
		"timeout", "slow query", "high latency", "response time exceeded",
		"thread pool exhausted", "queue full", "rate limit exceeded", "throttling", "circuit breaker",
	}},
}

var (
	criticalKeywords = []string{"critical", "fatal", "disaster", "emergency", "data loss", "corruption", "security breach"}
	highKeywords     = []string{"error", "failed", "failure", "exception", "unavailable", "down", "crash"}
)

// Classifier labels records. It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	logger  *slog.Logger
	workers int
	now     func() time.Time
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithWorkers bounds the ClassifyAll worker pool.
func WithWorkers(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithClock overrides the clock used for classified_at.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Classifier.
func New(logger *slog.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{logger: logger, workers: runtime.GOMAXPROCS(0), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify labels a single record. It never fails.
func (c *Classifier) Classify(record models.LogRecord) models.ClassifiedLog {
	category := Categorize(record)
	return models.ClassifiedLog{
		LogRecord:     record,
		Category:      category,
		Severity:      AssessSeverity(record, category),
		ExtractedInfo: extractors.ExtractEntities(record.Message),
		ClassifiedAt:  utils.FormatTimestamp(c.now()),
	}
}

// ClassifyAll labels every record on a bounded worker pool and returns results in input order.
// Only context cancellation produces an error.
func (c *Classifier) ClassifyAll(ctx context.Context, records []models.LogRecord) ([]models.ClassifiedLog, error) {
	out := make([]models.ClassifiedLog, len(records))
	if len(records) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i := range records {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = c.Classify(records[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("classified records", slog.Int("count", len(records)))
	return out, nil
}

// Categorize scores the record text against every category and returns the strict winner.
func Categorize(record models.LogRecord) models.Category {
	text := strings.ToLower(record.Message + " " + record.ErrorMessage + " " + record.ErrorType)

	best := models.CategoryUnknown
	bestScore := 0
	for _, entry := range categoryTable {
		score := 0
		for _, pattern := range entry.patterns {
			if strings.Contains(text, pattern) {
				score++
			}
		}
		if score > bestScore {
			best = entry.category
			bestScore = score
		}
	}
	return best
}

// AssessSeverity applies the severity decision list; the first matching rule wins.
func AssessSeverity(record models.LogRecord, category models.Category) models.Severity {
	level := strings.ToLower(record.LogLevel)
	text := strings.ToLower(record.Message + " " + record.ErrorMessage)

	if level == "critical" || level == "fatal" || containsAny(text, criticalKeywords) {
		return models.SeverityCritical
	}
	if level == "error" || containsAny(text, highKeywords) {
		if category == models.CategorySecurity || category == models.CategoryInfrastructure {
			return models.SeverityHigh
		}
		return models.SeverityMedium
	}
	if level == "warning" {
		return models.SeverityMedium
	}
	return models.SeverityLow
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
