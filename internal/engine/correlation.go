package engine

import (
	"math"
	"sort"
	"time"

	"github.com/miradorstack/mirador-logrca/internal/models"
	"github.com/miradorstack/mirador-logrca/internal/utils"
)

const maxCorrelations = 10

// Correlate links every pair of groups whose occurrence windows overlap and returns the
// ten strongest, ties kept in pair-generation order.
func Correlate(groups []models.ErrorGroup) []models.Correlation {
	correlations := make([]models.Correlation, 0)
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			if !windowsOverlap(groups[i], groups[j]) {
				continue
			}
			correlations = append(correlations, models.Correlation{
				Group1:          groups[i].Summary(),
				Group2:          groups[j].Summary(),
				CorrelationType: models.CorrelationTemporal,
				Strength:        correlationStrength(groups[i], groups[j]),
			})
		}
	}

	sort.SliceStable(correlations, func(i, j int) bool {
		return correlations[i].Strength > correlations[j].Strength
	})
	if len(correlations) > maxCorrelations {
		correlations = correlations[:maxCorrelations]
	}
	return correlations
}

// windowsOverlap reports inclusive overlap of [first, last]. Any unparseable bound means no overlap.
func windowsOverlap(a, b models.ErrorGroup) bool {
	start1, ok1 := parse(a.FirstOccurrence)
	end1, ok2 := parse(a.LastOccurrence)
	start2, ok3 := parse(b.FirstOccurrence)
	end2, ok4 := parse(b.LastOccurrence)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}
	return !start1.After(end2) && !start2.After(end1)
}

func correlationStrength(a, b models.ErrorGroup) float64 {
	strength := 0.0
	if a.Category == b.Category {
		strength += 0.3
	}
	if isInfraAppPair(a.Category, b.Category) {
		strength += 0.4
	}
	t1, ok1 := parse(a.FirstOccurrence)
	t2, ok2 := parse(b.FirstOccurrence)
	if ok1 && ok2 {
		diff := math.Abs(t1.Sub(t2).Seconds())
		switch {
		case diff < 60:
			strength += 0.3
		case diff < 300:
			strength += 0.2
		}
	}
	return round2(math.Min(strength, 1.0))
}

func isInfraAppPair(a, b models.Category) bool {
	return (a == models.CategoryInfrastructure && b == models.CategoryApplication) ||
		(a == models.CategoryApplication && b == models.CategoryInfrastructure)
}

func parse(ts string) (time.Time, bool) {
	t, err := utils.ParseTimestamp(ts)
	return t, err == nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
