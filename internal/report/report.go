package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

const defaultMaxGroups = 10

// Options controls terminal rendering.
type Options struct {
	Color     bool
	MaxGroups int
}

type palette struct {
	header func(a ...any) string
	title  func(a ...any) string
	good   func(a ...any) string
	warn   func(a ...any) string
	bad    func(a ...any) string
	muted  func(a ...any) string
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		header: mk(color.FgCyan, color.Bold),
		title:  mk(color.FgYellow),
		good:   mk(color.FgGreen),
		warn:   mk(color.FgYellow),
		bad:    mk(color.FgRed, color.Bold),
		muted:  mk(color.FgHiBlack),
	}
}

func (p palette) severity(s models.Severity) func(a ...any) string {
	switch s {
	case models.SeverityCritical, models.SeverityHigh:
		return p.bad
	case models.SeverityMedium:
		return p.warn
	default:
		return p.muted
	}
}

func (p palette) confidence(v float64) func(a ...any) string {
	switch {
	case v >= 70:
		return p.good
	case v >= 50:
		return p.warn
	default:
		return p.bad
	}
}

// Write renders an analysis result for humans.
func Write(w io.Writer, res models.AnalysisResult, opts Options) error {
	if opts.MaxGroups <= 0 {
		opts.MaxGroups = defaultMaxGroups
	}
	p := newPalette(opts.Color)
	b := &strings.Builder{}

	fmt.Fprintf(b, "\n%s\n", p.header("=== Log Root-Cause Analysis ==="))
	if res.RunID != "" {
		fmt.Fprintf(b, "Run:       %s\n", res.RunID)
	}
	if res.Status != "" {
		fmt.Fprintf(b, "Status:    %s\n", statusColor(p, res.Status)(string(res.Status)))
	}
	if res.StartedAt != "" {
		fmt.Fprintf(b, "Window:    %s -> %s\n", res.StartedAt, res.CompletedAt)
	}
	for _, st := range res.Stages {
		fmt.Fprintf(b, "  %s %-10s %s\n", stageIcon(p, st.Status), st.Name, p.muted(st.Detail))
	}

	writeStatistics(b, p, res.Statistics)
	writeGroups(b, p, res.ErrorGroups, opts.MaxGroups)
	writePatterns(b, p, res.Patterns)
	writeRootCauses(b, p, res.RootCauses, res.ConfidenceScore)
	writeSolutions(b, p, res.Solutions, res.OverallConfidence)

	if len(res.BestPractices) > 0 {
		fmt.Fprintf(b, "\n%s\n", p.title("Best Practices:"))
		for _, bp := range res.BestPractices {
			fmt.Fprintf(b, "  - %s\n", bp)
		}
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeStatistics(b *strings.Builder, p palette, stats models.Statistics) {
	fmt.Fprintf(b, "\n%s\n", p.title("Statistics:"))
	fmt.Fprintf(b, "  Logs: %d  Groups: %d  Services: %d  Error types: %d\n",
		stats.TotalLogs, stats.TotalErrorGroups, stats.UniqueServices, stats.UniqueErrorTypes)
	if len(stats.ByCategory) > 0 {
		fmt.Fprintf(b, "  By category: %s\n", formatCounts(stats.ByCategory))
	}
	if len(stats.BySeverity) > 0 {
		fmt.Fprintf(b, "  By severity: %s\n", formatCounts(stats.BySeverity))
	}
}

func writeGroups(b *strings.Builder, p palette, groups []models.ErrorGroup, limit int) {
	fmt.Fprintf(b, "\n%s\n", p.title("Error Groups:"))
	if len(groups) == 0 {
		fmt.Fprintf(b, "  %s\n", p.muted("No error groups"))
		return
	}
	for i, g := range groups {
		if i == limit {
			fmt.Fprintf(b, "  %s\n", p.muted(fmt.Sprintf("... %d more", len(groups)-limit)))
			break
		}
		sev := p.severity(g.Severity)
		fmt.Fprintf(b, "  %s %s/%s [%s] x%d\n", sev("●"), g.ServiceName, g.ErrorType, g.Category, g.Count)
		fmt.Fprintf(b, "    %s\n", p.muted(g.FirstOccurrence+" .. "+g.LastOccurrence))
	}
}

func writePatterns(b *strings.Builder, p palette, patterns models.PatternSet) {
	if len(patterns) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", p.title("Patterns:"))
	for _, pat := range patterns {
		fmt.Fprintf(b, "  - %s %s\n", p.warn(string(pat.Type())), pat.Description())
	}
}

func writeRootCauses(b *strings.Builder, p palette, causes []models.RootCause, top float64) {
	fmt.Fprintf(b, "\n%s %s\n", p.title("Root Causes:"), p.confidence(top)(fmt.Sprintf("(confidence %.0f%%)", top)))
	if len(causes) == 0 {
		fmt.Fprintf(b, "  %s\n", p.muted("No root cause identified"))
		return
	}
	for i, rc := range causes {
		fmt.Fprintf(b, "  %d. %s %s\n", i+1, rc.Description, p.confidence(rc.Confidence)(fmt.Sprintf("%.0f%%", rc.Confidence)))
		fmt.Fprintf(b, "     %s\n", p.muted(string(rc.Source)+": "+rc.Evidence))
		if len(rc.AffectedServices) > 0 {
			fmt.Fprintf(b, "     services: %s\n", strings.Join(rc.AffectedServices, ", "))
		}
	}
}

func writeSolutions(b *strings.Builder, p palette, solutions []models.Solution, overall float64) {
	fmt.Fprintf(b, "\n%s %s\n", p.title("Solutions:"), p.confidence(overall)(fmt.Sprintf("(overall %.1f%%)", overall)))
	for _, s := range solutions {
		fmt.Fprintf(b, "  [P%d] %s %s\n", s.Priority, s.RootCause, p.muted("("+string(s.Source)+")"))
		for _, a := range s.ImmediateActions {
			fmt.Fprintf(b, "     %s %s\n", p.good("→"), a)
		}
		if s.EstimatedTime != "" {
			fmt.Fprintf(b, "     %s\n", p.muted("estimated time: "+s.EstimatedTime))
		}
	}
}

// WriteHealth renders a health report.
func WriteHealth(w io.Writer, h models.HealthReport, useColor bool) error {
	p := newPalette(useColor)
	b := &strings.Builder{}
	overall := p.good
	if h.OverallStatus != "healthy" {
		overall = p.bad
	}
	fmt.Fprintf(b, "%s %s\n", p.header("Health:"), overall(h.OverallStatus))
	names := make([]string, 0, len(h.Components))
	for name := range h.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		state := h.Components[name]
		c := p.muted
		switch {
		case state == "healthy":
			c = p.good
		case strings.HasPrefix(state, "unhealthy"):
			c = p.bad
		}
		fmt.Fprintf(b, "  %-10s %s\n", name, c(state))
	}
	if l := h.RunLatency; l != nil {
		fmt.Fprintf(b, "%s p50=%dms p95=%dms max=%dms over %d runs\n", p.header("Run latency:"), l.P50Ms, l.P95Ms, l.MaxMs, l.Samples)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func statusColor(p palette, s models.RunStatus) func(a ...any) string {
	switch s {
	case models.RunCompleted:
		return p.good
	case models.RunCompletedNoLogs:
		return p.warn
	default:
		return p.bad
	}
}

func stageIcon(p palette, status string) string {
	switch status {
	case "completed":
		return p.good("●")
	case "failed":
		return p.bad("✗")
	default:
		return p.muted("○")
	}
}

func formatCounts[K ~string](counts map[K]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[K(k)]))
	}
	return strings.Join(parts, " ")
}
