package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

func TestDecodeRecordsFormats(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  int
	}{
		{"array", `[{"timestamp":"2025-01-01T00:00:00Z","message":"a"},{"message":"b"}]`, 2},
		{"envelope", `{"records":[{"message":"a"}]}`, 1},
		{"ndjson", "{\"message\":\"a\"}\n\n{\"message\":\"b\"}\n{\"message\":\"c\"}\n", 3},
		{"single object", `{"message":"only"}`, 1},
		{"empty", "  \n", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records, err := decodeRecords([]byte(tc.input))
			if err != nil {
				t.Fatalf("decodeRecords: %v", err)
			}
			if len(records) != tc.want {
				t.Fatalf("expected %d records, got %d", tc.want, len(records))
			}
		})
	}
}

func TestDecodeRecordsReportsBadLine(t *testing.T) {
	_, err := decodeRecords([]byte("{\"message\":\"a\"}\n{broken\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line 2 error, got %v", err)
	}
}

func TestReadRecordsFromStdin(t *testing.T) {
	records, err := readRecords("-", strings.NewReader(`[{"message":"boom","service_name":"api"}]`))
	if err != nil {
		t.Fatalf("readRecords: %v", err)
	}
	if len(records) != 1 || records[0].ServiceName != "api" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestInvestigationRequestFromFlags(t *testing.T) {
	opts := &analyzeOptions{
		start:    "2025-03-01T00:00:00Z",
		end:      "2025-03-01T06:00:00Z",
		services: []string{"checkout"},
		maxLogs:  500,
		advisory: true,
	}
	req, err := opts.investigationRequest()
	if err != nil {
		t.Fatalf("investigationRequest: %v", err)
	}
	if req.TimeRange.End.Sub(req.TimeRange.Start) != 6*time.Hour {
		t.Fatalf("unexpected window %+v", req.TimeRange)
	}
	if !req.UseAdvisory || req.MaxLogs != 500 || req.Services[0] != "checkout" {
		t.Fatalf("flags not carried into request: %+v", req)
	}

	if _, err := (&analyzeOptions{start: "2025-03-01T00:00:00Z"}).investigationRequest(); err == nil {
		t.Fatalf("expected error when only --start is set")
	}
	if _, err := (&analyzeOptions{start: "yesterday", end: "today"}).investigationRequest(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestWriteRunTable(t *testing.T) {
	var buf bytes.Buffer
	err := writeRunTable(&buf, models.ListRunsResponse{
		Runs: []models.RunSummary{
			{RunID: "run-1", Status: models.RunCompleted, TotalLogs: 12, ErrorGroups: 2, ConfidenceScore: 75, TopRootCause: "db down"},
		},
		NextPageToken: "20",
	})
	if err != nil {
		t.Fatalf("writeRunTable: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"RUN ID", "run-1", "completed_success", "75%", "db down", "--page-token 20"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestAnalyzeCommandFromFile(t *testing.T) {
	t.Setenv("LOGRCA_ADVISOR_ENABLED", "false")
	t.Setenv("LOGRCA_ES_URL", "")
	root := newRootCmd()
	input := `[{"timestamp":"2025-03-01T00:00:00Z","message":"connection refused to db:5432","log_level":"error","service_name":"api"}]`
	var out bytes.Buffer
	root.SetIn(strings.NewReader(input))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"analyze", "--file", "-", "--json", "--config", writeTestConfig(t)})
	if err := root.Execute(); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if result.Statistics.TotalLogs != 1 || len(result.ErrorGroups) != 1 {
		t.Fatalf("unexpected result: %+v", result.Statistics)
	}
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "logrca.yaml")
	content := `logging:
  level: error
store:
  path: ":memory:"
rules:
  path: ` + filepath.Join(dir, "missing-rules.yaml") + `
advisor:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
