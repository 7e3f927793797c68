package engine

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

func TestGroupErrorsAggregatesMembers(t *testing.T) {
	logs := []models.ClassifiedLog{
		classified("user-service", "NullPointerException", "host-b", "2024-01-01T10:00:02Z", models.CategoryApplication, models.SeverityMedium),
		classified("user-service", "NullPointerException", "host-a", "2024-01-01T10:00:01Z", models.CategoryApplication, models.SeverityCritical),
		classified("user-service", "NullPointerException", "host-b", "", models.CategoryApplication, models.SeverityLow),
	}

	groups := GroupErrors(logs)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if g.Count != 3 {
		t.Fatalf("expected count 3, got %d", g.Count)
	}
	if g.Severity != models.SeverityCritical {
		t.Fatalf("expected CRITICAL, got %s", g.Severity)
	}
	if g.FirstOccurrence != "2024-01-01T10:00:01Z" || g.LastOccurrence != "2024-01-01T10:00:02Z" {
		t.Fatalf("unexpected window %s..%s", g.FirstOccurrence, g.LastOccurrence)
	}
	if !reflect.DeepEqual(g.AffectedHosts, []string{"host-a", "host-b"}) {
		t.Fatalf("unexpected hosts %v", g.AffectedHosts)
	}
	if len(g.SampleLogs) != 3 || g.SampleLogs[0].HostName != "host-b" {
		t.Fatalf("expected samples in input order")
	}
}

func TestGroupErrorsSortAndLimits(t *testing.T) {
	logs := make([]models.ClassifiedLog, 0)
	logs = append(logs, classified("a", "X", "", "", models.CategoryApplication, models.SeverityLow))
	for i := 0; i < 7; i++ {
		logs = append(logs, classified("b", "Y", "", "", models.CategoryInfrastructure, models.SeverityHigh))
	}
	logs = append(logs, classified("", "", "", "", models.CategoryUnknown, models.SeverityLow))

	groups := GroupErrors(logs)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].ServiceName != "b" || groups[0].Count != 7 {
		t.Fatalf("expected largest group first, got %+v", groups[0])
	}
	if len(groups[0].SampleLogs) != maxSampleLogs {
		t.Fatalf("expected %d samples, got %d", maxSampleLogs, len(groups[0].SampleLogs))
	}
	if groups[1].ServiceName != "a" || groups[2].ServiceName != "unknown" || groups[2].ErrorType != "unknown" {
		t.Fatalf("expected ties in discovery order with unknown placeholders, got %+v %+v", groups[1], groups[2])
	}
	if groups[0].FirstOccurrence != "" {
		t.Fatalf("expected empty first occurrence without timestamps")
	}
}

func TestGroupErrorsProperties(t *testing.T) {
	severities := []models.Severity{models.SeverityLow, models.SeverityHigh, models.SeverityMedium, models.SeverityCritical}
	categories := []models.Category{models.CategoryApplication, models.CategorySecurity, models.CategoryPerformance}
	logs := make([]models.ClassifiedLog, 0, 97)
	for i := 0; i < 97; i++ {
		logs = append(logs, classified(
			fmt.Sprintf("svc-%d", i%5),
			fmt.Sprintf("Err%d", i%3),
			fmt.Sprintf("host-%d", i%2),
			fmt.Sprintf("2024-01-01T10:%02d:00Z", i%60),
			categories[i%len(categories)],
			severities[i%len(severities)],
		))
	}

	groups := GroupErrors(logs)
	total := 0
	for i, g := range groups {
		total += g.Count
		if i > 0 && groups[i-1].Count < g.Count {
			t.Fatalf("groups not sorted by count at %d", i)
		}
		maxRank := 0
		for _, l := range logs {
			if l.Category == g.Category && l.ServiceName == g.ServiceName && l.ErrorType == g.ErrorType && l.Severity.Rank() > maxRank {
				maxRank = l.Severity.Rank()
			}
		}
		if g.Severity.Rank() != maxRank {
			t.Fatalf("group %s/%s severity %s is not the member maximum", g.ServiceName, g.ErrorType, g.Severity)
		}
	}
	if total != len(logs) {
		t.Fatalf("expected counts to sum to %d, got %d", len(logs), total)
	}
	if !reflect.DeepEqual(groups, GroupErrors(logs)) {
		t.Fatalf("expected grouping to be idempotent")
	}
}

func TestComputeStatistics(t *testing.T) {
	logs := []models.ClassifiedLog{
		classified("a", "X", "", "", models.CategoryApplication, models.SeverityLow),
		classified("b", "X", "", "", models.CategorySecurity, models.SeverityHigh),
		classified("b", "", "", "", models.CategorySecurity, models.SeverityHigh),
	}
	groups := GroupErrors(logs)
	stats := ComputeStatistics(logs, groups)

	if stats.TotalLogs != 3 || stats.TotalErrorGroups != 3 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.ByCategory[models.CategorySecurity] != 2 || stats.BySeverity[models.SeverityHigh] != 2 {
		t.Fatalf("unexpected breakdowns %+v", stats)
	}
	if stats.ByService[0].Service != "b" || stats.ByService[0].Count != 2 {
		t.Fatalf("expected busiest service first, got %+v", stats.ByService)
	}
	if stats.UniqueServices != 2 || stats.UniqueErrorTypes != 2 {
		t.Fatalf("unexpected unique counts %+v", stats)
	}
}

func TestComputeStatisticsTopTenServices(t *testing.T) {
	logs := make([]models.ClassifiedLog, 0)
	for i := 0; i < 12; i++ {
		logs = append(logs, classified(fmt.Sprintf("svc-%02d", i), "X", "", "", models.CategoryUnknown, models.SeverityLow))
	}
	stats := ComputeStatistics(logs, GroupErrors(logs))
	if len(stats.ByService) != maxStatsByService || stats.UniqueServices != 12 {
		t.Fatalf("expected top %d of 12 services, got %d/%d", maxStatsByService, len(stats.ByService), stats.UniqueServices)
	}
	if stats.ByService[0].Service != "svc-00" {
		t.Fatalf("expected ties in first-appearance order, got %s", stats.ByService[0].Service)
	}
}
