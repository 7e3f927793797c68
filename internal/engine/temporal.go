package engine

import (
	"sort"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

// AnalyzeTemporal orders groups by first occurrence and builds the error cascade.
// Groups without a first occurrence sort after every timestamped group.
func AnalyzeTemporal(groups []models.ErrorGroup) models.TemporalAnalysis {
	analysis := models.TemporalAnalysis{ErrorCascade: []models.CascadeStep{}}
	if len(groups) == 0 {
		return analysis
	}

	ordered := append([]models.ErrorGroup(nil), groups...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].FirstOccurrence, ordered[j].FirstOccurrence
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a < b
	})

	first := ordered[0]
	analysis.FirstError = &first

	if len(ordered) >= 2 {
		for i, g := range ordered {
			analysis.ErrorCascade = append(analysis.ErrorCascade, models.CascadeStep{
				Order:           i + 1,
				Service:         g.ServiceName,
				ErrorType:       g.ErrorType,
				Category:        g.Category,
				Timestamp:       g.FirstOccurrence,
				LikelyRootCause: i == 0,
			})
		}
		start, ok1 := parse(ordered[0].FirstOccurrence)
		end, ok2 := parse(ordered[len(ordered)-1].LastOccurrence)
		if ok1 && ok2 {
			analysis.TotalDurationSeconds = end.Sub(start).Seconds()
		}
	}
	return analysis
}

// AnalyzeDependencies lists the affected services and the upstream dependencies hinted for them.
// Both lists are sorted. A nil hints map falls back to DefaultDependencyHints.
func AnalyzeDependencies(groups []models.ErrorGroup, hints map[string][]string) models.DependencyAnalysis {
	if hints == nil {
		hints = DefaultDependencyHints()
	}

	services := make(map[string]struct{})
	deps := make(map[string]struct{})
	for _, g := range groups {
		if _, ok := services[g.ServiceName]; ok {
			continue
		}
		services[g.ServiceName] = struct{}{}
		for _, dep := range hints[g.ServiceName] {
			deps[dep] = struct{}{}
		}
	}

	return models.DependencyAnalysis{
		AffectedServices:              sortedKeys(services),
		PotentialUpstreamDependencies: sortedKeys(deps),
		ServiceCount:                  len(services),
	}
}

// DefaultDependencyHints returns the built-in service to upstream dependency table.
func DefaultDependencyHints() map[string][]string {
	return map[string][]string{
		"api-gateway":     {"upstream services"},
		"auth-service":    {"database", "cache"},
		"user-service":    {"database", "auth-service"},
		"payment-service": {"database", "external-api"},
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
