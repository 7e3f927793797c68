package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOGRCA_CONFIG", "")
	t.Setenv("LOGRCA_RULES_PATH", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":50051" || cfg.Server.HTTPAddress != ":8080" {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Elasticsearch.ScrollSize != 1000 || cfg.Elasticsearch.MaxLogs != 100000 {
		t.Fatalf("unexpected elasticsearch defaults %+v", cfg.Elasticsearch)
	}
	if h, m, err := cfg.Schedule.DailyTime(); err != nil || h != 2 || m != 0 {
		t.Fatalf("unexpected schedule default %d:%d %v", h, m, err)
	}
	if cfg.Rules.Path != "" {
		t.Fatalf("expected no rule pack by default, got %q", cfg.Rules.Path)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logrca.yaml")
	content := `
server:
  address: ":6000"
  gracefulTimeout: 3s
elasticsearch:
  url: http://es:9200
  fieldMappings:
    service_name: kubernetes.container.name
schedule:
  dailyAt: "06:30"
  lookbackHours: 12
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LOGRCA_ES_INDEX", "app-logs-*")
	t.Setenv("LOGRCA_LOG_FORMAT", "json")
	t.Setenv("LOGRCA_CACHE_ADVISORY_TTL", "15m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":6000" || cfg.Server.GracefulTimeout != 3*time.Second {
		t.Fatalf("file values not applied: %+v", cfg.Server)
	}
	if cfg.Server.HTTPAddress != ":8080" {
		t.Fatalf("expected default http address kept, got %q", cfg.Server.HTTPAddress)
	}
	if cfg.Elasticsearch.IndexPattern != "app-logs-*" || !cfg.Logging.JSON {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Elasticsearch, cfg.Logging)
	}
	if cfg.Elasticsearch.FieldMappings["service_name"] != "kubernetes.container.name" {
		t.Fatalf("field mappings not parsed: %+v", cfg.Elasticsearch.FieldMappings)
	}
	if cfg.Cache.AdvisoryTTL != 15*time.Minute {
		t.Fatalf("expected advisory TTL override, got %s", cfg.Cache.AdvisoryTTL)
	}
	if h, m, _ := cfg.Schedule.DailyTime(); h != 6 || m != 30 || cfg.Schedule.LookbackHours != 12 {
		t.Fatalf("unexpected schedule %+v", cfg.Schedule)
	}
}

func TestLoadRejectsInvalidSchedule(t *testing.T) {
	t.Setenv("LOGRCA_SCHEDULE_DAILY_AT", "25:99")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected invalid schedule to be rejected")
	}
}

func TestLoadRequiresAPIKeyWhenAdvisorEnabled(t *testing.T) {
	t.Setenv("LOGRCA_ADVISOR_ENABLED", "true")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("LOGRCA_ADVISOR_API_KEY", "")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected missing api key to be rejected")
	}
	t.Setenv("LOGRCA_ADVISOR_API_KEY", "sk-test")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Advisor.Enabled || cfg.Advisor.APIKey != "sk-test" {
		t.Fatalf("unexpected advisor config %+v", cfg.Advisor)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
