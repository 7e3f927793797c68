package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-logrca/internal/api"
	"github.com/miradorstack/mirador-logrca/internal/models"
	"github.com/miradorstack/mirador-logrca/internal/report"
)

// analyzer is satisfied by both the in-process service and the gRPC client.
type analyzer interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error)
	Investigate(ctx context.Context, req models.InvestigationRequest) (models.AnalysisResult, error)
}

type analyzeOptions struct {
	file      string
	hours     int
	start     string
	end       string
	services  []string
	levels    []string
	maxLogs   int
	advisory  bool
	asJSON    bool
	noColor   bool
	server    string
	maxGroups int
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a one-shot analysis over a file or an Elasticsearch window",
		Long: `Analyse log records and print the ranked root causes and remediations.

With --file the records are read from a JSON array, an object with a "records"
field, or newline-delimited JSON ("-" reads stdin). Without --file the window
is fetched from Elasticsearch using --hours or --start/--end (RFC 3339).`,
		Example: `  logrca analyze --file incident.json
  kubectl logs deploy/api | logrca analyze --file - --json
  logrca analyze --hours 6 --service checkout --advisory`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd.Context(), c, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", `read records from a file ("-" for stdin)`)
	f.IntVar(&opts.hours, "hours", 0, "lookback window in hours when fetching (default 24)")
	f.StringVar(&opts.start, "start", "", "window start, RFC 3339")
	f.StringVar(&opts.end, "end", "", "window end, RFC 3339")
	f.StringSliceVar(&opts.services, "service", nil, "restrict the fetch to these services")
	f.StringSliceVar(&opts.levels, "level", nil, "log levels to fetch (default elasticsearch.defaultLevels)")
	f.IntVar(&opts.maxLogs, "max-logs", 0, "cap on fetched records")
	f.BoolVar(&opts.advisory, "advisory", false, "consult the language-model advisor")
	f.BoolVar(&opts.asJSON, "json", false, "print the full result as JSON")
	f.BoolVar(&opts.noColor, "no-color", false, "disable coloured output")
	f.StringVar(&opts.server, "server", "", "send the request to a running logrca gRPC server")
	f.IntVar(&opts.maxGroups, "max-groups", 10, "error groups to print (0 for all)")
	return cmd
}

func runAnalyze(ctx context.Context, c *cli, opts *analyzeOptions, stdin io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var svc analyzer
	if opts.server != "" {
		client, err := api.Dial(opts.server)
		if err != nil {
			return err
		}
		defer client.Close()
		svc = client
	} else {
		a, err := buildApp(ctx, c.cfg, c.logger)
		if err != nil {
			return err
		}
		defer a.Close()
		svc = a.service
	}

	var (
		result models.AnalysisResult
		err    error
	)
	if opts.file != "" {
		records, readErr := readRecords(opts.file, stdin)
		if readErr != nil {
			return readErr
		}
		result, err = svc.Analyze(ctx, models.AnalyzeRequest{Records: records, UseAdvisory: opts.advisory})
	} else {
		req, reqErr := opts.investigationRequest()
		if reqErr != nil {
			return reqErr
		}
		result, err = svc.Investigate(ctx, req)
	}
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return report.Write(out, result, report.Options{
		Color:     !opts.noColor && !color.NoColor,
		MaxGroups: opts.maxGroups,
	})
}

func (o *analyzeOptions) investigationRequest() (models.InvestigationRequest, error) {
	req := models.InvestigationRequest{
		Hours:       o.hours,
		Services:    o.services,
		Levels:      o.levels,
		MaxLogs:     o.maxLogs,
		UseAdvisory: o.advisory,
	}
	if (o.start == "") != (o.end == "") {
		return req, errors.New("--start and --end must be given together")
	}
	if o.start != "" {
		start, err := time.Parse(time.RFC3339, o.start)
		if err != nil {
			return req, fmt.Errorf("--start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, o.end)
		if err != nil {
			return req, fmt.Errorf("--end: %w", err)
		}
		req.TimeRange = models.TimeRange{Start: start, End: end}
	}
	return req, nil
}

func readRecords(path string, stdin io.Reader) ([]models.LogRecord, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

// decodeRecords accepts a JSON array, {"records": [...]}, or one JSON object per line.
func decodeRecords(data []byte) ([]models.LogRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []models.LogRecord{}, nil
	}

	if trimmed[0] == '[' {
		var records []models.LogRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var envelope struct {
		Records *[]models.LogRecord `json:"records"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil && envelope.Records != nil {
		return *envelope.Records, nil
	}

	records := []models.LogRecord{}
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var record models.LogRecord
		if err := json.Unmarshal(text, &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
