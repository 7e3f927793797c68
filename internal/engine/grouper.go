package engine

import (
	"sort"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

const (
	maxSampleLogs     = 5
	maxStatsByService = 10
	unknownValue      = "unknown"
)

type groupKey struct {
	category  models.Category
	service   string
	errorType string
}

// GroupErrors partitions classified logs by (category, service, error type). Groups are
// returned by count descending; equal counts keep the order in which they were first seen.
func GroupErrors(logs []models.ClassifiedLog) []models.ErrorGroup {
	index := make(map[groupKey]int)
	groups := make([]models.ErrorGroup, 0)
	hosts := make([]map[string]struct{}, 0)

	for _, l := range logs {
		key := groupKey{category: l.Category, service: orUnknown(l.ServiceName), errorType: orUnknown(l.ErrorType)}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, models.ErrorGroup{
				Category:      key.category,
				ServiceName:   key.service,
				ErrorType:     key.errorType,
				Severity:      l.Severity,
				SampleLogs:    []models.ClassifiedLog{},
				AffectedHosts: []string{},
			})
			hosts = append(hosts, make(map[string]struct{}))
		}

		g := &groups[i]
		g.Count++
		if l.Severity.Rank() > g.Severity.Rank() {
			g.Severity = l.Severity
		}
		if ts := l.Timestamp; ts != "" {
			if g.FirstOccurrence == "" || ts < g.FirstOccurrence {
				g.FirstOccurrence = ts
			}
			if g.LastOccurrence == "" || ts > g.LastOccurrence {
				g.LastOccurrence = ts
			}
		}
		if len(g.SampleLogs) < maxSampleLogs {
			g.SampleLogs = append(g.SampleLogs, l)
		}
		if l.HostName != "" {
			hosts[i][l.HostName] = struct{}{}
		}
	}

	for i := range groups {
		for h := range hosts[i] {
			groups[i].AffectedHosts = append(groups[i].AffectedHosts, h)
		}
		sort.Strings(groups[i].AffectedHosts)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})
	return groups
}

// ComputeStatistics summarises the classified batch and its groups.
func ComputeStatistics(logs []models.ClassifiedLog, groups []models.ErrorGroup) models.Statistics {
	stats := models.Statistics{
		TotalLogs:        len(logs),
		ByCategory:       make(map[models.Category]int),
		BySeverity:       make(map[models.Severity]int),
		ByService:        []models.ServiceCount{},
		TotalErrorGroups: len(groups),
	}

	serviceIndex := make(map[string]int)
	errorTypes := make(map[string]struct{})
	for _, l := range logs {
		stats.ByCategory[l.Category]++
		stats.BySeverity[l.Severity]++

		svc := orUnknown(l.ServiceName)
		i, ok := serviceIndex[svc]
		if !ok {
			i = len(stats.ByService)
			serviceIndex[svc] = i
			stats.ByService = append(stats.ByService, models.ServiceCount{Service: svc})
		}
		stats.ByService[i].Count++
		errorTypes[orUnknown(l.ErrorType)] = struct{}{}
	}

	stats.UniqueServices = len(stats.ByService)
	stats.UniqueErrorTypes = len(errorTypes)

	sort.SliceStable(stats.ByService, func(i, j int) bool {
		return stats.ByService[i].Count > stats.ByService[j].Count
	})
	if len(stats.ByService) > maxStatsByService {
		stats.ByService = stats.ByService[:maxStatsByService]
	}
	return stats
}

func orUnknown(v string) string {
	if v == "" {
		return unknownValue
	}
	return v
}
