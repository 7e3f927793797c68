package models

// ErrorGroup aggregates classified logs sharing category, service and error type within one run.
type ErrorGroup struct {
	Category        Category        `json:"category"`
	ServiceName     string          `json:"service_name"`
	ErrorType       string          `json:"error_type"`
	Count           int             `json:"count"`
	Severity        Severity        `json:"severity"`
	FirstOccurrence string          `json:"first_occurrence"`
	LastOccurrence  string          `json:"last_occurrence"`
	SampleLogs      []ClassifiedLog `json:"sample_logs"`
	AffectedHosts   []string        `json:"affected_hosts"`
}

// Summary returns the identifying fields of the group.
func (g ErrorGroup) Summary() GroupSummary {
	return GroupSummary{Service: g.ServiceName, ErrorType: g.ErrorType, Category: g.Category}
}

// GroupSummary identifies an error group inside a correlation.
type GroupSummary struct {
	Service   string   `json:"service"`
	ErrorType string   `json:"error_type"`
	Category  Category `json:"category"`
}

// CorrelationType enumerates correlation kinds.
type CorrelationType string

// CorrelationTemporal marks groups whose occurrence windows overlap.
const CorrelationTemporal CorrelationType = "TEMPORAL"

// Correlation links two error groups. Group1 always precedes Group2 in the group list.
type Correlation struct {
	Group1          GroupSummary    `json:"group1"`
	Group2          GroupSummary    `json:"group2"`
	CorrelationType CorrelationType `json:"correlation_type"`
	Strength        float64         `json:"strength"`
}

// Statistics summarises a classified batch.
type Statistics struct {
	TotalLogs        int              `json:"total_logs"`
	ByCategory       map[Category]int `json:"by_category"`
	BySeverity       map[Severity]int `json:"by_severity"`
	ByService        []ServiceCount   `json:"by_service"`
	TotalErrorGroups int              `json:"total_error_groups"`
	UniqueServices   int              `json:"unique_services"`
	UniqueErrorTypes int              `json:"unique_error_types"`
}

// ServiceCount is a service with its record count.
type ServiceCount struct {
	Service string `json:"service"`
	Count   int    `json:"count"`
}

// CascadeStep is one group in the temporal error cascade.
type CascadeStep struct {
	Order           int      `json:"order"`
	Service         string   `json:"service"`
	ErrorType       string   `json:"error_type"`
	Category        Category `json:"category"`
	Timestamp       string   `json:"timestamp"`
	LikelyRootCause bool     `json:"likely_root_cause"`
}

// TemporalAnalysis orders error groups by first occurrence.
type TemporalAnalysis struct {
	ErrorCascade         []CascadeStep `json:"error_cascade"`
	FirstError           *ErrorGroup   `json:"first_error,omitempty"`
	TotalDurationSeconds float64       `json:"total_duration_seconds"`
}

// DependencyAnalysis lists affected services and their likely upstream dependencies.
type DependencyAnalysis struct {
	AffectedServices              []string `json:"affected_services"`
	PotentialUpstreamDependencies []string `json:"potential_upstream_dependencies"`
	ServiceCount                  int      `json:"service_count"`
}
