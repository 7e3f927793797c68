// Package patterns detects cross-record patterns in a classified batch.
package patterns

import (
	"log/slog"
	"sort"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

const (
	spikeTopServices    = 5
	spikeMinCount       = 10
	cascadeTopTypes     = 3
	cascadeMinCount     = 5
	cascadeMinServices  = 2
	clusteringMinRecord = 20
)

// Detector finds spikes, cascades, and temporal bursts.
type Detector struct {
	logger *slog.Logger
}

// NewDetector constructs a Detector.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Detect runs every detector over the flat record list. Patterns are emitted spikes first,
// then cascades, then temporal clustering.
func (d *Detector) Detect(logs []models.ClassifiedLog) models.PatternSet {
	patterns := models.PatternSet{}

	for _, svc := range topN(logs, spikeTopServices, func(l models.ClassifiedLog) string {
		return orUnknown(l.ServiceName)
	}) {
		if svc.count > spikeMinCount {
			patterns = append(patterns, models.ErrorSpike{Service: svc.key, Count: svc.count})
		}
	}

	for _, et := range topN(logs, cascadeTopTypes, func(l models.ClassifiedLog) string {
		return l.ErrorType
	}) {
		if et.count <= cascadeMinCount {
			continue
		}
		services := servicesFor(logs, et.key)
		if len(services) > cascadeMinServices {
			patterns = append(patterns, models.CascadingFailure{
				ErrorType:        et.key,
				AffectedServices: services,
				Count:            et.count,
			})
		}
	}

	if burst, ok := temporalCluster(logs); ok {
		patterns = append(patterns, burst)
	}

	if len(patterns) > 0 {
		d.logger.Debug("patterns detected", slog.Int("count", len(patterns)))
	}
	return patterns
}

type keyCount struct {
	key   string
	count int
}

// topN counts non-empty keys and returns the n largest, ties kept in first-appearance order.
func topN(logs []models.ClassifiedLog, n int, keyFn func(models.ClassifiedLog) string) []keyCount {
	index := make(map[string]int)
	counts := make([]keyCount, 0)
	for _, l := range logs {
		key := keyFn(l)
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(counts)
			index[key] = i
			counts = append(counts, keyCount{key: key})
		}
		counts[i].count++
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].count > counts[j].count
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

func servicesFor(logs []models.ClassifiedLog, errorType string) []string {
	seen := make(map[string]struct{})
	services := make([]string, 0)
	for _, l := range logs {
		if l.ErrorType != errorType {
			continue
		}
		svc := orUnknown(l.ServiceName)
		if _, ok := seen[svc]; ok {
			continue
		}
		seen[svc] = struct{}{}
		services = append(services, svc)
	}
	return services
}

func temporalCluster(logs []models.ClassifiedLog) (models.TemporalClustering, bool) {
	if len(logs) <= clusteringMinRecord {
		return models.TemporalClustering{}, false
	}
	var start, end string
	for _, l := range logs {
		ts := l.Timestamp
		if ts == "" {
			continue
		}
		if start == "" || ts < start {
			start = ts
		}
		if end == "" || ts > end {
			end = ts
		}
	}
	if start == "" {
		return models.TemporalClustering{}, false
	}
	return models.TemporalClustering{Count: len(logs), Start: start, End: end}, true
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
