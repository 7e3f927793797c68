package engine

import (
	"fmt"
	"testing"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

func TestCorrelateInfraAppWithinMinute(t *testing.T) {
	groups := []models.ErrorGroup{
		group("db", "ConnectionRefused", models.CategoryInfrastructure, "2024-01-01T10:00:00Z", "2024-01-01T10:05:00Z"),
		group("api", "NullPointerException", models.CategoryApplication, "2024-01-01T10:00:30Z", "2024-01-01T10:06:00Z"),
	}

	correlations := Correlate(groups)
	if len(correlations) != 1 {
		t.Fatalf("expected 1 correlation, got %d", len(correlations))
	}
	c := correlations[0]
	if c.Strength != 0.7 {
		t.Fatalf("expected strength 0.7, got %v", c.Strength)
	}
	if c.Group1.Service != "db" || c.Group2.Service != "api" || c.CorrelationType != models.CorrelationTemporal {
		t.Fatalf("unexpected correlation %+v", c)
	}
}

func TestCorrelateStrengthComponents(t *testing.T) {
	cases := []struct {
		name string
		a, b models.ErrorGroup
		want float64
	}{
		{
			"same category within five minutes",
			group("a", "X", models.CategorySecurity, "2024-01-01T10:00:00Z", "2024-01-01T10:10:00Z"),
			group("b", "Y", models.CategorySecurity, "2024-01-01T10:02:00Z", "2024-01-01T10:03:00Z"),
			0.5,
		},
		{
			"same category within a minute",
			group("a", "X", models.CategoryApplication, "2024-01-01T10:00:00Z", "2024-01-01T10:10:00Z"),
			group("b", "Y", models.CategoryApplication, "2024-01-01T10:00:10Z", "2024-01-01T10:03:00Z"),
			0.6,
		},
		{
			"unrelated categories far apart",
			group("a", "X", models.CategorySecurity, "2024-01-01T10:00:00Z", "2024-01-01T11:00:00Z"),
			group("b", "Y", models.CategoryPerformance, "2024-01-01T10:30:00Z", "2024-01-01T10:31:00Z"),
			0,
		},
	}
	for _, tc := range cases {
		got := Correlate([]models.ErrorGroup{tc.a, tc.b})
		if len(got) != 1 || got[0].Strength != tc.want {
			t.Fatalf("%s: expected strength %v, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestCorrelateSkipsDisjointAndUnparseable(t *testing.T) {
	groups := []models.ErrorGroup{
		group("a", "X", models.CategoryApplication, "2024-01-01T10:00:00Z", "2024-01-01T10:01:00Z"),
		group("b", "Y", models.CategoryApplication, "2024-01-01T10:02:00Z", "2024-01-01T10:03:00Z"),
		group("c", "Z", models.CategoryApplication, "not-a-time", "2024-01-01T10:03:00Z"),
		group("d", "W", models.CategoryApplication, "", ""),
	}
	if got := Correlate(groups); len(got) != 0 {
		t.Fatalf("expected no correlations, got %+v", got)
	}
}

func TestCorrelateInclusiveBoundary(t *testing.T) {
	groups := []models.ErrorGroup{
		group("a", "X", models.CategoryApplication, "2024-01-01T10:00:00Z", "2024-01-01T10:01:00Z"),
		group("b", "Y", models.CategoryApplication, "2024-01-01T10:01:00Z", "2024-01-01T10:03:00Z"),
	}
	if got := Correlate(groups); len(got) != 1 {
		t.Fatalf("expected touching windows to correlate, got %d", len(got))
	}
}

func TestCorrelateBoundsAndOrdering(t *testing.T) {
	categories := []models.Category{models.CategoryInfrastructure, models.CategoryApplication, models.CategorySecurity}
	groups := make([]models.ErrorGroup, 0, 8)
	for i := 0; i < 8; i++ {
		groups = append(groups, group(
			fmt.Sprintf("svc-%d", i),
			"X",
			categories[i%len(categories)],
			fmt.Sprintf("2024-01-01T10:%02d:00Z", i),
			"2024-01-01T11:00:00Z",
		))
	}

	got := Correlate(groups)
	if len(got) != maxCorrelations {
		t.Fatalf("expected %d correlations, got %d", maxCorrelations, len(got))
	}
	for i, c := range got {
		if c.Strength < 0 || c.Strength > 1 {
			t.Fatalf("strength out of range: %v", c.Strength)
		}
		if i > 0 && got[i-1].Strength < c.Strength {
			t.Fatalf("correlations not sorted at %d", i)
		}
	}
}
