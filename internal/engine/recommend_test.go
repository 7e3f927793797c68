package engine

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

func writeRulePack(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(`rules:
  - id: kafka
    match:
      keywords: ["kafka"]
    solution:
      immediate_actions: ["Check broker health"]
      estimated_time: "15-30 minutes"
      confidence: 82
  - id: payments-db
    match:
      keywords: ["database"]
      service: "payment-service"
    solution:
      immediate_actions: ["Fail over the payments primary"]
      confidence: 88
dependency_hints:
  checkout: ["payment-service", "inventory"]
  api-gateway: ["edge-proxy"]
`), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestRuleEngineMatch(t *testing.T) {
	engine, err := NewRuleEngine(writeRulePack(t), slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}

	solution, ok := engine.Match(models.RootCause{Description: "Initial failure in orders: KafkaConnectionError"})
	if !ok {
		t.Fatalf("expected kafka rule to match")
	}
	if solution.Confidence != 82 || solution.Source != models.SolutionRuleBased || solution.ImmediateActions[0] != "Check broker health" {
		t.Fatalf("unexpected solution %+v", solution)
	}
	if solution.Risks == nil || solution.PreventiveMeasures == nil {
		t.Fatalf("expected empty lists rather than nil")
	}

	if _, ok := engine.Match(models.RootCause{Description: "database down", AffectedServices: []string{"orders"}}); ok {
		t.Fatalf("expected service filter to reject orders")
	}
	solution, ok = engine.Match(models.RootCause{Description: "database down", AffectedServices: []string{"Payment-Service"}})
	if !ok || solution.Confidence != 88 {
		t.Fatalf("expected payments rule to match, got %+v", solution)
	}
}

func TestRuleEngineDependencyHints(t *testing.T) {
	engine, err := NewRuleEngine(writeRulePack(t), nil)
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}
	hints := engine.DependencyHints()
	if !contains(hints["checkout"], "inventory") {
		t.Fatalf("expected rule pack hint, got %v", hints["checkout"])
	}
	if len(hints["api-gateway"]) != 1 || hints["api-gateway"][0] != "edge-proxy" {
		t.Fatalf("expected rule pack to override defaults, got %v", hints["api-gateway"])
	}
	if !contains(hints["auth-service"], "cache") {
		t.Fatalf("expected defaults to survive, got %v", hints["auth-service"])
	}
}

func TestRuleEngineNoFile(t *testing.T) {
	engine, err := NewRuleEngine("non-existent", nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if engine != nil {
		t.Fatalf("expected nil engine when file missing")
	}
	if _, ok := engine.Match(models.RootCause{Description: "anything"}); ok {
		t.Fatalf("nil engine must not match")
	}
	if len(engine.DependencyHints()) != len(DefaultDependencyHints()) {
		t.Fatalf("nil engine should return default hints")
	}
}

func TestRuleEngineInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rules: [\n"), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if _, err := NewRuleEngine(path, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}
