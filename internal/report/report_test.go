package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

func TestWriteRendersPlainReport(t *testing.T) {
	res := models.AnalysisResult{
		RunID:  "run-42",
		Status: models.RunCompleted,
		Stages: []models.StageStatus{{Name: "fetch", Status: "completed", Detail: "12 logs"}},
		Statistics: models.Statistics{
			TotalLogs:  12,
			ByCategory: map[models.Category]int{models.CategoryInfrastructure: 8, models.CategoryApplication: 4},
		},
		ErrorGroups: []models.ErrorGroup{
			{ServiceName: "db", ErrorType: "ConnectionError", Category: models.CategoryInfrastructure, Count: 8, Severity: models.SeverityHigh},
		},
		Patterns: models.PatternSet{models.ErrorSpike{Service: "db", Count: 11}},
		RootCauses: []models.RootCause{
			{Description: "Initial failure in db: ConnectionError", Confidence: 75, Source: models.SourceTemporalAnalysis, AffectedServices: []string{"db"}},
		},
		ConfidenceScore: 75,
		Solutions: []models.Solution{
			{RootCause: "Initial failure in db: ConnectionError", ImmediateActions: []string{"Check network connectivity"}, Priority: 1, Source: models.SolutionRuleBased},
		},
		OverallConfidence: 75,
		BestPractices:     []string{"Implement structured logging"},
	}

	var buf bytes.Buffer
	if err := Write(&buf, res, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"run-42",
		"APPLICATION=4 INFRASTRUCTURE=8",
		"db/ConnectionError",
		"ERROR_SPIKE",
		"1. Initial failure in db: ConnectionError 75%",
		"[P1]",
		"Check network connectivity",
		"Implement structured logging",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in report:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no ANSI escapes when colour is disabled")
	}
}

func TestWriteTruncatesGroups(t *testing.T) {
	groups := make([]models.ErrorGroup, 4)
	var buf bytes.Buffer
	if err := Write(&buf, models.AnalysisResult{ErrorGroups: groups}, Options{MaxGroups: 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "... 2 more") {
		t.Fatalf("expected truncation marker, got:\n%s", buf.String())
	}
}

func TestWriteHealthColours(t *testing.T) {
	var buf bytes.Buffer
	report := models.HealthReport{
		OverallStatus: "degraded",
		Components:    map[string]string{"log_store": "unhealthy: refused", "advisor": "healthy"},
	}
	if err := WriteHealth(&buf, report, true); err != nil {
		t.Fatalf("WriteHealth: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "\x1b[") {
		t.Fatalf("expected ANSI escapes when colour is enabled")
	}
	if strings.Index(out, "advisor") > strings.Index(out, "log_store") {
		t.Fatalf("expected components sorted by name:\n%s", out)
	}
}

func TestWriteHealthRunLatency(t *testing.T) {
	var buf bytes.Buffer
	report := models.HealthReport{
		OverallStatus: "healthy",
		Components:    map[string]string{"run_store": "healthy"},
		RunLatency:    &models.RunLatency{Samples: 4, P50Ms: 120, P95Ms: 900, MaxMs: 1500},
	}
	if err := WriteHealth(&buf, report, false); err != nil {
		t.Fatalf("WriteHealth: %v", err)
	}
	if !strings.Contains(buf.String(), "p95=900ms") || !strings.Contains(buf.String(), "over 4 runs") {
		t.Fatalf("expected latency line, got:\n%s", buf.String())
	}
}
