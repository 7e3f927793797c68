package advisory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miradorstack/mirador-logrca/internal/cache"
	"github.com/miradorstack/mirador-logrca/internal/engine"
	"github.com/miradorstack/mirador-logrca/internal/models"
)

var _ engine.Advisor = (*Provider)(nil)

type fakeCompleter struct {
	mu      sync.Mutex
	answers []string
	errs    []error
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.answers) {
		return f.answers[i], nil
	}
	return f.answers[len(f.answers)-1], nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func fastOptions() Options {
	return Options{RequestsPerSecond: 1000, Burst: 10, MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, CacheTTL: time.Minute}
}

func sampleGroups() []models.ErrorGroup {
	return []models.ErrorGroup{{
		Category: models.CategoryInfrastructure, ServiceName: "db", ErrorType: "ConnectionRefused",
		Count: 12, Severity: models.SeverityHigh, FirstOccurrence: "2024-01-01T10:00:00Z",
	}}
}

func TestProviderRootCauseUsesCache(t *testing.T) {
	completer := &fakeCompleter{answers: []string{`{"root_cause": "db down", "confidence": 88}`}}
	p := NewProvider(nil, completer, cache.NewMemoryProvider(0), fastOptions())

	for i := 0; i < 2; i++ {
		adv, err := p.RootCause(context.Background(), sampleGroups(), models.PatternSet{models.ErrorSpike{Service: "db", Count: 12}}, models.TemporalAnalysis{})
		if err != nil {
			t.Fatalf("root cause: %v", err)
		}
		if adv == nil || adv.RootCause != "db down" || *adv.Confidence != 88 {
			t.Fatalf("unexpected advisory %+v", adv)
		}
	}
	if completer.calls() != 1 {
		t.Fatalf("expected cached second call, got %d completions", completer.calls())
	}
	if !strings.Contains(completer.prompts[0], "High error count from service: db") {
		t.Fatalf("expected pattern description in prompt")
	}
}

func TestProviderRetriesTransientErrors(t *testing.T) {
	completer := &fakeCompleter{
		errs:    []error{errors.New("503 service unavailable"), errors.New("429 rate limit")},
		answers: []string{"", "", "Restart the database."},
	}
	p := NewProvider(nil, completer, nil, fastOptions())

	advice, err := p.Solution(context.Background(), models.RootCause{Description: "db down"}, sampleGroups())
	if err != nil {
		t.Fatalf("solution: %v", err)
	}
	if advice == nil || !advice.TextOnly || advice.Text != "Restart the database." {
		t.Fatalf("unexpected advice %+v", advice)
	}
	if completer.calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", completer.calls())
	}
}

func TestProviderDoesNotRetryClientErrors(t *testing.T) {
	completer := &fakeCompleter{errs: []error{errors.New("401 invalid x-api-key")}, answers: []string{""}}
	p := NewProvider(nil, completer, nil, fastOptions())

	if _, err := p.RootCause(context.Background(), sampleGroups(), nil, models.TemporalAnalysis{}); err == nil {
		t.Fatalf("expected error")
	}
	if completer.calls() != 1 {
		t.Fatalf("expected a single attempt, got %d", completer.calls())
	}
}

func TestBuildSolutionPrompt(t *testing.T) {
	prompt := BuildSolutionPrompt(models.RootCause{
		Description:         "Initial failure in db: ConnectionRefused",
		Confidence:          75,
		AffectedServices:    []string{"db"},
		ContributingFactors: []string{"INFRASTRUCTURE"},
	}, sampleGroups())
	for _, want := range []string{"## Root Cause:\nInitial failure in db: ConnectionRefused", "Confidence: 75%", "Affected Services: db", "- INFRASTRUCTURE", "- db: ConnectionRefused (12 occurrences, severity: HIGH)"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q\n%s", want, prompt)
		}
	}
}

func TestBuildRootCausePromptLimitsCascade(t *testing.T) {
	steps := make([]models.CascadeStep, 0, 8)
	for i := 1; i <= 8; i++ {
		steps = append(steps, models.CascadeStep{Order: i, Service: "svc", ErrorType: "E", Timestamp: "t"})
	}
	prompt := BuildRootCausePrompt(sampleGroups(), nil, models.TemporalAnalysis{ErrorCascade: steps})
	if !strings.Contains(prompt, "5. svc - E at t") || strings.Contains(prompt, "6. svc - E at t") {
		t.Fatalf("expected five cascade steps\n%s", prompt)
	}
}
