package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/miradorstack/mirador-logrca/internal/models"
	"github.com/miradorstack/mirador-logrca/internal/utils"
)

var (
	// ErrIndexNotFound is returned when the configured index pattern matches nothing.
	ErrIndexNotFound = errors.New("elasticsearch index not found")
	// ErrUnauthorized is returned when the cluster rejects the credentials.
	ErrUnauthorized = errors.New("elasticsearch authentication failed")
)

// FieldMappings maps LogRecord fields to dot-separated ECS document paths.
type FieldMappings struct {
	Timestamp       string
	Message         string
	LogLevel        string
	ServiceName     string
	HostName        string
	ErrorMessage    string
	ErrorStackTrace string
	ErrorType       string
	EventDataset    string
	EventModule     string
}

// DefaultFieldMappings returns the ECS field layout.
func DefaultFieldMappings() FieldMappings {
	return FieldMappings{
		Timestamp:       "@timestamp",
		Message:         "message",
		LogLevel:        "log.level",
		ServiceName:     "service.name",
		HostName:        "host.name",
		ErrorMessage:    "error.message",
		ErrorStackTrace: "error.stack_trace",
		ErrorType:       "error.type",
		EventDataset:    "event.dataset",
		EventModule:     "event.module",
	}
}

// MergeFieldMappings overlays overrides keyed by LogRecord JSON field name onto the ECS defaults.
func MergeFieldMappings(overrides map[string]string) FieldMappings {
	m := DefaultFieldMappings()
	targets := map[string]*string{
		"timestamp":         &m.Timestamp,
		"message":           &m.Message,
		"log_level":         &m.LogLevel,
		"service_name":      &m.ServiceName,
		"host_name":         &m.HostName,
		"error_message":     &m.ErrorMessage,
		"error_stack_trace": &m.ErrorStackTrace,
		"error_type":        &m.ErrorType,
		"event_dataset":     &m.EventDataset,
		"event_module":      &m.EventModule,
	}
	for key, path := range overrides {
		if dst, ok := targets[key]; ok && path != "" {
			*dst = path
		}
	}
	return m
}

// ESConfig configures the Elasticsearch log fetcher.
type ESConfig struct {
	URL            string
	Username       string
	Password       string
	IndexPattern   string
	Fields         FieldMappings
	DefaultLevels  []string
	ScrollSize     int
	ScrollTimeout  string
	MaxLogs        int
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Transport replaces the default HTTP transport when set.
	Transport http.RoundTripper
}

// retryStatuses are the responses the client retries with backoff. Network errors are retried too.
var retryStatuses = []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout}

// ESFetcher pulls log records from Elasticsearch using scroll pagination.
type ESFetcher struct {
	client *elasticsearch.Client
	cfg    ESConfig
	scroll time.Duration
	logger *slog.Logger
}

// NewESFetcher constructs a fetcher targeting the configured cluster.
func NewESFetcher(cfg ESConfig, logger *slog.Logger) (*ESFetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		return nil, utils.NewAppError("repo.NewESFetcher", "elasticsearch URL", utils.ErrNotConfigured)
	}
	if cfg.IndexPattern == "" {
		cfg.IndexPattern = "logs-*"
	}
	if cfg.Fields == (FieldMappings{}) {
		cfg.Fields = DefaultFieldMappings()
	}
	if len(cfg.DefaultLevels) == 0 {
		cfg.DefaultLevels = []string{"error", "critical"}
	}
	if cfg.ScrollSize <= 0 {
		cfg.ScrollSize = 1000
	}
	if cfg.ScrollTimeout == "" {
		cfg.ScrollTimeout = "5m"
	}
	if cfg.MaxLogs <= 0 {
		cfg.MaxLogs = 100000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}

	scroll, err := time.ParseDuration(cfg.ScrollTimeout)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch scroll timeout %q: %w", cfg.ScrollTimeout, err)
	}

	f := &ESFetcher{cfg: cfg, scroll: scroll, logger: logger}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{strings.TrimRight(cfg.URL, "/")},
		Username:      cfg.Username,
		Password:      cfg.Password,
		Transport:     cfg.Transport,
		MaxRetries:    cfg.MaxRetries,
		RetryOnStatus: retryStatuses,
		RetryBackoff:  f.backoff,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	f.client = client
	return f, nil
}

// backoff doubles from InitialBackoff up to MaxBackoff. attempt starts at 1.
func (f *ESFetcher) backoff(attempt int) time.Duration {
	d := f.cfg.InitialBackoff
	for i := 1; i < attempt && d < f.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > f.cfg.MaxBackoff {
		d = f.cfg.MaxBackoff
	}
	f.logger.Warn("elasticsearch request failed, retrying",
		slog.Int("attempt", attempt),
		slog.Duration("backoff", d),
	)
	return d
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Fetch returns the records matching q, newest first, capped at the configured maximum.
func (f *ESFetcher) Fetch(ctx context.Context, q models.FetchQuery) ([]models.LogRecord, error) {
	maxLogs := q.MaxLogs
	if maxLogs <= 0 || maxLogs > f.cfg.MaxLogs {
		maxLogs = f.cfg.MaxLogs
	}

	f.logger.Info("fetching logs",
		slog.String("start", utils.FormatTimestamp(q.Start)),
		slog.String("end", utils.FormatTimestamp(q.End)),
		slog.Int("max_logs", maxLogs),
		slog.Any("services", q.Services),
		slog.Any("levels", q.Levels),
	)

	query, err := json.Marshal(f.buildQuery(q, min(f.cfg.ScrollSize, maxLogs)))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	var resp searchResponse
	err = f.perform(ctx, &resp, func(ctx context.Context) (*esapi.Response, error) {
		return f.client.Search(
			f.client.Search.WithContext(ctx),
			f.client.Search.WithIndex(f.cfg.IndexPattern),
			f.client.Search.WithBody(bytes.NewReader(query)),
			f.client.Search.WithScroll(f.scroll),
		)
	})
	if err != nil {
		return nil, utils.NewAppError("repo.Fetch", "search failed", err)
	}

	records := make([]models.LogRecord, 0, min(maxLogs, len(resp.Hits.Hits)))
	scrollID := resp.ScrollID
	hits := resp.Hits.Hits
	for {
		for _, hit := range hits {
			if len(records) >= maxLogs {
				break
			}
			records = append(records, f.normalize(hit.Source))
		}
		if scrollID == "" || len(records) >= maxLogs || len(hits) == 0 {
			break
		}
		payload, err := json.Marshal(map[string]any{"scroll": f.cfg.ScrollTimeout, "scroll_id": scrollID})
		if err != nil {
			return nil, fmt.Errorf("marshal scroll: %w", err)
		}
		var next searchResponse
		err = f.perform(ctx, &next, func(ctx context.Context) (*esapi.Response, error) {
			return f.client.Scroll(
				f.client.Scroll.WithContext(ctx),
				f.client.Scroll.WithBody(bytes.NewReader(payload)),
			)
		})
		if err != nil {
			f.clearScroll(scrollID)
			return nil, utils.NewAppError("repo.Fetch", "scroll failed", err)
		}
		if next.ScrollID != "" {
			scrollID = next.ScrollID
		}
		hits = next.Hits.Hits
	}
	if scrollID != "" {
		f.clearScroll(scrollID)
	}

	f.logger.Info("fetched logs", slog.Int("count", len(records)))
	return records, nil
}

// Ping checks that the cluster answers.
func (f *ESFetcher) Ping(ctx context.Context) error {
	return f.perform(ctx, nil, func(ctx context.Context) (*esapi.Response, error) {
		return f.client.Ping(f.client.Ping.WithContext(ctx))
	})
}

func (f *ESFetcher) buildQuery(q models.FetchQuery, size int) map[string]any {
	fields := f.cfg.Fields
	must := []any{
		map[string]any{
			"range": map[string]any{
				fields.Timestamp: map[string]any{
					"gte": utils.FormatTimestamp(q.Start),
					"lte": utils.FormatTimestamp(q.End),
				},
			},
		},
	}

	levels := f.cfg.DefaultLevels
	if len(q.Levels) > 0 {
		levels = make([]string, 0, len(q.Levels))
		for _, l := range q.Levels {
			levels = append(levels, strings.ToLower(l))
		}
	}
	must = append(must, map[string]any{"terms": map[string]any{fields.LogLevel: levels}})

	if len(q.Services) > 0 {
		must = append(must, map[string]any{"terms": map[string]any{fields.ServiceName: q.Services}})
	}

	return map[string]any{
		"size":  size,
		"query": map[string]any{"bool": map[string]any{"must": must}},
		"sort":  []any{map[string]any{fields.Timestamp: map[string]any{"order": "desc"}}},
	}
}

func (f *ESFetcher) normalize(src map[string]any) models.LogRecord {
	fields := f.cfg.Fields
	return models.LogRecord{
		Timestamp:       lookupString(src, fields.Timestamp),
		Message:         lookupString(src, fields.Message),
		LogLevel:        lookupString(src, fields.LogLevel),
		ServiceName:     lookupString(src, fields.ServiceName),
		HostName:        lookupString(src, fields.HostName),
		ErrorMessage:    lookupString(src, fields.ErrorMessage),
		ErrorStackTrace: lookupString(src, fields.ErrorStackTrace),
		ErrorType:       lookupString(src, fields.ErrorType),
		EventDataset:    lookupString(src, fields.EventDataset),
		EventModule:     lookupString(src, fields.EventModule),
		Raw:             src,
	}
}

// lookupString walks a dot path through nested objects. A flattened key that
// literally contains the dots is tried first.
func lookupString(doc map[string]any, path string) string {
	if path == "" || doc == nil {
		return ""
	}
	if v, ok := doc[path]; ok {
		return stringify(v)
	}
	var current any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		if current, ok = m[part]; !ok {
			return ""
		}
	}
	return stringify(current)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func (f *ESFetcher) clearScroll(scrollID string) {
	payload, err := json.Marshal(map[string]any{"scroll_id": []string{scrollID}})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = f.perform(ctx, nil, func(ctx context.Context) (*esapi.Response, error) {
		return f.client.ClearScroll(
			f.client.ClearScroll.WithContext(ctx),
			f.client.ClearScroll.WithBody(bytes.NewReader(payload)),
		)
	})
	if err != nil {
		f.logger.Debug("clear scroll failed", slog.Any("error", err))
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("elasticsearch returned %d %s", e.code, http.StatusText(e.code))
	}
	return fmt.Sprintf("elasticsearch returned %d %s: %s", e.code, http.StatusText(e.code), e.body)
}

// perform runs one API call under the request timeout. Retries happen inside the client
// transport, so a response that fails to decode is returned as-is.
func (f *ESFetcher) perform(ctx context.Context, out any, call func(context.Context) (*esapi.Response, error)) error {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	res, err := call(ctx)
	if err != nil {
		return err
	}
	if res.Body != nil {
		defer res.Body.Close()
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrIndexNotFound, f.cfg.IndexPattern)
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case res.IsError():
		var snippet []byte
		if res.Body != nil {
			snippet, _ = io.ReadAll(io.LimitReader(res.Body, 512))
		}
		return &statusError{code: res.StatusCode, body: strings.TrimSpace(string(snippet))}
	}

	if out == nil || res.Body == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
