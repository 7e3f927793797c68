package engine

import (
	"fmt"
	"sort"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

const (
	maxRootCauses               = 5
	defaultAdvisoryConfidence   = 70
	temporalRootCauseConfidence = 75
	cascadeRootCauseConfidence  = 65
)

// RankRootCauses combines the advisory, the earliest error group, and cascading-failure
// patterns into at most five candidates ordered by confidence. Candidates are not deduplicated.
// The second return value is the highest confidence, or 0 when there are no candidates.
func RankRootCauses(temporal models.TemporalAnalysis, patterns models.PatternSet, advisory *models.Advisory) ([]models.RootCause, float64) {
	causes := make([]models.RootCause, 0)

	if advisory != nil {
		description := advisory.RootCause
		if description == "" {
			description = "Unknown"
		}
		confidence := float64(defaultAdvisoryConfidence)
		if advisory.Confidence != nil {
			confidence = clamp(*advisory.Confidence, 0, 100)
		}
		causes = append(causes, models.RootCause{
			Description:         description,
			Confidence:          confidence,
			Source:              models.SourceAIAnalysis,
			ContributingFactors: nonNil(advisory.ContributingFactors),
			AffectedServices:    nonNil(advisory.AffectedServices),
			Evidence:            "AI-powered analysis",
		})
	}

	if first := temporal.FirstError; first != nil {
		causes = append(causes, models.RootCause{
			Description:         fmt.Sprintf("Initial failure in %s: %s", first.ServiceName, first.ErrorType),
			Confidence:          temporalRootCauseConfidence,
			Source:              models.SourceTemporalAnalysis,
			ContributingFactors: []string{string(first.Category)},
			AffectedServices:    []string{first.ServiceName},
			Evidence:            "First error in temporal sequence",
		})
	}

	for _, cascade := range patterns.CascadingFailures() {
		causes = append(causes, models.RootCause{
			Description:         "Cascading failure: " + cascade.ErrorType,
			Confidence:          cascadeRootCauseConfidence,
			Source:              models.SourcePatternDetection,
			ContributingFactors: []string{"service_dependency"},
			AffectedServices:    nonNil(cascade.AffectedServices),
			Evidence:            fmt.Sprintf("Same error across %d services", len(cascade.AffectedServices)),
		})
	}

	sort.SliceStable(causes, func(i, j int) bool {
		return causes[i].Confidence > causes[j].Confidence
	})
	if len(causes) > maxRootCauses {
		causes = causes[:maxRootCauses]
	}

	top := 0.0
	for _, c := range causes {
		if c.Confidence > top {
			top = c.Confidence
		}
	}
	return causes, top
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNil(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
