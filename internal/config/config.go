package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures every setting needed to boot the analysis service and CLI.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Advisor       AdvisorConfig       `yaml:"advisor"`
	Store         StoreConfig         `yaml:"store"`
	Cache         CacheConfig         `yaml:"cache"`
	Rules         RulesConfig         `yaml:"rules"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
}

// ServerConfig controls the gRPC and HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	HTTPAddress     string        `yaml:"httpAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	MaxMessageBytes int           `yaml:"maxMessageBytes"`
}

// LoggingConfig controls structured logging and optional file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// ElasticsearchConfig configures the log store the service fetches from.
type ElasticsearchConfig struct {
	URL           string            `yaml:"url"`
	Username      string            `yaml:"username"`
	Password      string            `yaml:"password"`
	IndexPattern  string            `yaml:"indexPattern"`
	FieldMappings map[string]string `yaml:"fieldMappings"`
	DefaultLevels []string          `yaml:"defaultLevels"`
	ScrollSize    int               `yaml:"scrollSize"`
	ScrollTimeout string            `yaml:"scrollTimeout"`
	MaxLogs       int               `yaml:"maxLogs"`
	Timeout       time.Duration     `yaml:"timeout"`
	MaxRetries    int               `yaml:"maxRetries"`
}

// AdvisorConfig configures the optional AI advisory.
type AdvisorConfig struct {
	Enabled           bool          `yaml:"enabled"`
	APIKey            string        `yaml:"apiKey"`
	Model             string        `yaml:"model"`
	MaxTokens         int           `yaml:"maxTokens"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	MaxRetries        int           `yaml:"maxRetries"`
}

// StoreConfig controls where analysis runs are persisted. An empty path disables persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls caching of advisory responses. Without an address an in-memory cache is used.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"keyPrefix"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	MemoryMax    int           `yaml:"memoryMaxEntries"`
	AdvisoryTTL  time.Duration `yaml:"advisoryTTL"`
}

// RulesConfig controls rule-pack loading for solution recommendations.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// AnalysisConfig tunes the engine.
type AnalysisConfig struct {
	Workers     int  `yaml:"workers"`
	UseAdvisory bool `yaml:"useAdvisory"`
}

// ScheduleConfig drives the daily run.
type ScheduleConfig struct {
	DailyAt       string `yaml:"dailyAt"`
	LookbackHours int    `yaml:"lookbackHours"`
}

// DailyTime parses DailyAt as HH:MM in UTC.
func (s ScheduleConfig) DailyTime() (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s.DailyAt))
	if err != nil {
		return 0, 0, fmt.Errorf("schedule.dailyAt %q: expected HH:MM", s.DailyAt)
	}
	return t.Hour(), t.Minute(), nil
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("LOGRCA_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, _, err := c.Schedule.DailyTime(); err != nil {
		return err
	}
	if c.Schedule.LookbackHours <= 0 {
		return fmt.Errorf("schedule.lookbackHours must be positive")
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must not be negative")
	}
	if c.Advisor.Enabled && c.Advisor.APIKey == "" {
		return fmt.Errorf("advisor.enabled requires advisor.apiKey (or ANTHROPIC_API_KEY)")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8080",
			GracefulTimeout: 10 * time.Second,
			MaxMessageBytes: 64 << 20,
		},
		Logging: LoggingConfig{Level: "info", JSON: false, MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
		Elasticsearch: ElasticsearchConfig{
			IndexPattern:  "logs-*",
			DefaultLevels: []string{"error", "critical"},
			ScrollSize:    1000,
			ScrollTimeout: "5m",
			MaxLogs:       100000,
			Timeout:       30 * time.Second,
			MaxRetries:    3,
		},
		Advisor: AdvisorConfig{
			Model:             "claude-sonnet-4-5",
			MaxTokens:         4096,
			Timeout:           60 * time.Second,
			RequestsPerSecond: 1,
			Burst:             1,
			MaxRetries:        3,
		},
		Store: StoreConfig{Path: "data/logrca.db"},
		Cache: CacheConfig{
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			KeyPrefix:    "logrca:",
			MemoryMax:    1024,
			AdvisoryTTL:  time.Hour,
		},
		Rules:    RulesConfig{},
		Analysis: AnalysisConfig{},
		Schedule: ScheduleConfig{DailyAt: "02:00", LookbackHours: 24},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOGRCA_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("LOGRCA_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("LOGRCA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOGRCA_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("LOGRCA_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("LOGRCA_ES_URL"); v != "" {
		cfg.Elasticsearch.URL = v
	}
	if v := os.Getenv("LOGRCA_ES_USERNAME"); v != "" {
		cfg.Elasticsearch.Username = v
	}
	if v := os.Getenv("LOGRCA_ES_PASSWORD"); v != "" {
		cfg.Elasticsearch.Password = v
	}
	if v := os.Getenv("LOGRCA_ES_INDEX"); v != "" {
		cfg.Elasticsearch.IndexPattern = v
	}
	if v := os.Getenv("LOGRCA_ES_MAX_LOGS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Elasticsearch.MaxLogs = n
		}
	}
	if v := os.Getenv("LOGRCA_ADVISOR_ENABLED"); v != "" {
		cfg.Advisor.Enabled = parseBool(v)
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Advisor.APIKey == "" {
		cfg.Advisor.APIKey = v
	}
	if v := os.Getenv("LOGRCA_ADVISOR_API_KEY"); v != "" {
		cfg.Advisor.APIKey = v
	}
	if v := os.Getenv("LOGRCA_ADVISOR_MODEL"); v != "" {
		cfg.Advisor.Model = v
	}
	if v := os.Getenv("LOGRCA_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("LOGRCA_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("LOGRCA_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("LOGRCA_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("LOGRCA_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("LOGRCA_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("LOGRCA_CACHE_TLS"); parseBool(v) {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("LOGRCA_CACHE_ADVISORY_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.AdvisoryTTL = d
		}
	}
	if v := os.Getenv("LOGRCA_RULES_PATH"); v != "" {
		cfg.Rules.Path = v
	}
	if v := os.Getenv("LOGRCA_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.Workers = n
		}
	}
	if v := os.Getenv("LOGRCA_SCHEDULE_DAILY_AT"); v != "" {
		cfg.Schedule.DailyAt = v
	}
	if v := os.Getenv("LOGRCA_SCHEDULE_LOOKBACK_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Schedule.LookbackHours = n
		}
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
