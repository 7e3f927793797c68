package advisory

import (
	"fmt"
	"strings"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

const rootCauseSystemPrompt = `You are a site reliability engineer performing root cause analysis on production errors.
Answer with a single JSON object of the form:
{"root_cause": string, "confidence": number 0-100, "contributing_factors": [string], "affected_services": [string]}`

const solutionSystemPrompt = `You are a site reliability engineer writing an incident remediation plan.
Answer with a single JSON object of the form:
{"immediate_actions": [string], "preventive_measures": [string], "estimated_time": string,
 "confidence": number 0-100, "risks": [string], "verification_steps": [string]}`

const (
	promptMaxGroups        = 10
	promptMaxCascadeSteps  = 5
	promptMaxSolutionGroup = 5
)

// BuildRootCausePrompt summarises the top groups, detected patterns, and the start of the cascade.
func BuildRootCausePrompt(groups []models.ErrorGroup, patterns models.PatternSet, temporal models.TemporalAnalysis) string {
	var b strings.Builder
	b.WriteString(rootCauseSystemPrompt)
	b.WriteString("\n\n# Error Analysis Context\n")

	top := groups
	if len(top) > promptMaxGroups {
		top = top[:promptMaxGroups]
	}
	fmt.Fprintf(&b, "\n## Error Groups (Top %d):\n", len(top))
	for i, g := range top {
		fmt.Fprintf(&b, "%d. Service: %s, Category: %s, Error: %s, Count: %d, Severity: %s\n",
			i+1, g.ServiceName, g.Category, g.ErrorType, g.Count, g.Severity)
	}

	if len(patterns) > 0 {
		b.WriteString("\n## Detected Patterns:\n")
		for _, p := range patterns {
			fmt.Fprintf(&b, "- %s\n", p.Description())
		}
	}

	if len(temporal.ErrorCascade) > 0 {
		b.WriteString("\n## Error Cascade (Temporal Order):\n")
		steps := temporal.ErrorCascade
		if len(steps) > promptMaxCascadeSteps {
			steps = steps[:promptMaxCascadeSteps]
		}
		for _, s := range steps {
			fmt.Fprintf(&b, "%d. %s - %s at %s\n", s.Order, s.Service, s.ErrorType, s.Timestamp)
		}
	}

	b.WriteString("\n## Question:\n")
	b.WriteString("Based on the above error data, what is the most probable root cause? ")
	b.WriteString("Provide your analysis in the specified JSON format.")
	return b.String()
}

// BuildSolutionPrompt describes one root cause and the largest error groups.
func BuildSolutionPrompt(rc models.RootCause, groups []models.ErrorGroup) string {
	var b strings.Builder
	b.WriteString(solutionSystemPrompt)
	b.WriteString("\n\n# Root Cause Analysis Summary\n\n")
	fmt.Fprintf(&b, "## Root Cause:\n%s\n\n", rc.Description)
	fmt.Fprintf(&b, "Confidence: %g%%\n\n", rc.Confidence)

	if len(rc.AffectedServices) > 0 {
		fmt.Fprintf(&b, "Affected Services: %s\n\n", strings.Join(rc.AffectedServices, ", "))
	}
	if len(rc.ContributingFactors) > 0 {
		b.WriteString("Contributing Factors:\n")
		for _, f := range rc.ContributingFactors {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Error Details:\n")
	top := groups
	if len(top) > promptMaxSolutionGroup {
		top = top[:promptMaxSolutionGroup]
	}
	for _, g := range top {
		fmt.Fprintf(&b, "- %s: %s (%d occurrences, severity: %s)\n", g.ServiceName, g.ErrorType, g.Count, g.Severity)
	}

	b.WriteString("\n## Task:\n")
	b.WriteString("Generate a detailed remediation solution in the specified JSON format. ")
	b.WriteString("Include immediate actions, preventive measures, estimated time, risks, and verification steps.")
	return b.String()
}
