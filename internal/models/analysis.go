package models

// RootCauseSource enumerates where a root-cause candidate came from.
type RootCauseSource string

const (
	SourceAIAnalysis       RootCauseSource = "ai_analysis"
	SourceTemporalAnalysis RootCauseSource = "temporal_analysis"
	SourcePatternDetection RootCauseSource = "pattern_detection"
)

// RootCause is a ranked root-cause candidate. Confidence is in [0,100].
type RootCause struct {
	Description         string          `json:"description"`
	Confidence          float64         `json:"confidence"`
	Source              RootCauseSource `json:"source"`
	ContributingFactors []string        `json:"contributing_factors"`
	AffectedServices    []string        `json:"affected_services"`
	Evidence            string          `json:"evidence"`
}

// SolutionSource enumerates where a remediation plan came from.
type SolutionSource string

const (
	SolutionAIGenerated      SolutionSource = "ai_generated"
	SolutionAITextResponse   SolutionSource = "ai_text_response"
	SolutionRuleBased        SolutionSource = "rule_based"
	SolutionRuleBasedGeneric SolutionSource = "rule_based_generic"
	SolutionGeneric          SolutionSource = "generic"
)

// Solution is a remediation plan for one root cause. Priority 1 is the highest.
type Solution struct {
	RootCause          string         `json:"root_cause"`
	ImmediateActions   []string       `json:"immediate_actions"`
	PreventiveMeasures []string       `json:"preventive_measures"`
	EstimatedTime      string         `json:"estimated_time"`
	Confidence         float64        `json:"confidence"`
	Risks              []string       `json:"risks"`
	VerificationSteps  []string       `json:"verification_steps"`
	Source             SolutionSource `json:"source"`
	Priority           int            `json:"priority"`
}

// Advisory is an already-resolved AI root-cause opinion. A nil *Advisory means none.
type Advisory struct {
	RootCause           string   `json:"root_cause"`
	Confidence          *float64 `json:"confidence,omitempty"`
	ContributingFactors []string `json:"contributing_factors,omitempty"`
	AffectedServices    []string `json:"affected_services,omitempty"`
	TextOnly            bool     `json:"text_only,omitempty"`
}

// SolutionAdvice is an already-resolved AI remediation plan for a single root cause.
// TextOnly advice carries the free-text answer in Text.
type SolutionAdvice struct {
	ImmediateActions   []string `json:"immediate_actions,omitempty"`
	PreventiveMeasures []string `json:"preventive_measures,omitempty"`
	EstimatedTime      string   `json:"estimated_time,omitempty"`
	Confidence         *float64 `json:"confidence,omitempty"`
	Risks              []string `json:"risks,omitempty"`
	VerificationSteps  []string `json:"verification_steps,omitempty"`
	Text               string   `json:"text,omitempty"`
	TextOnly           bool     `json:"text_only,omitempty"`
}

// ParseResult is the output of classification, grouping and pattern detection.
type ParseResult struct {
	ClassifiedLogs []ClassifiedLog `json:"classified_logs"`
	ErrorGroups    []ErrorGroup    `json:"error_groups"`
	Patterns       PatternSet      `json:"patterns"`
	Statistics     Statistics      `json:"statistics"`
}

// RCAResult is the output of correlation and root-cause ranking.
type RCAResult struct {
	RootCauses         []RootCause        `json:"root_causes"`
	Correlations       []Correlation      `json:"correlations"`
	TemporalAnalysis   TemporalAnalysis   `json:"temporal_analysis"`
	DependencyAnalysis DependencyAnalysis `json:"dependency_analysis"`
	Advisory           *Advisory          `json:"ai_analysis,omitempty"`
	ConfidenceScore    float64            `json:"confidence_score"`
}

// SolutionResult is the output of solution ranking.
type SolutionResult struct {
	Solutions         []Solution `json:"solutions"`
	BestPractices     []string   `json:"best_practices"`
	OverallConfidence float64    `json:"overall_confidence"`
}

// AnalysisResult bundles everything one analysis run produced.
type AnalysisResult struct {
	RunID              string             `json:"run_id"`
	Status             RunStatus          `json:"status"`
	StartedAt          string             `json:"started_at"`
	CompletedAt        string             `json:"completed_at"`
	Stages             []StageStatus      `json:"stages,omitempty"`
	ClassifiedLogs     []ClassifiedLog    `json:"classified_logs"`
	ErrorGroups        []ErrorGroup       `json:"error_groups"`
	Patterns           PatternSet         `json:"patterns"`
	Statistics         Statistics         `json:"statistics"`
	Correlations       []Correlation      `json:"correlations"`
	TemporalAnalysis   TemporalAnalysis   `json:"temporal_analysis"`
	DependencyAnalysis DependencyAnalysis `json:"dependency_analysis"`
	RootCauses         []RootCause        `json:"root_causes"`
	ConfidenceScore    float64            `json:"confidence_score"`
	Solutions          []Solution         `json:"solutions"`
	BestPractices      []string           `json:"best_practices"`
	OverallConfidence  float64            `json:"overall_confidence"`
}

// RunStatus enumerates terminal states of an analysis run.
type RunStatus string

const (
	RunCompleted       RunStatus = "completed_success"
	RunCompletedNoLogs RunStatus = "completed_no_logs"
	RunFailed          RunStatus = "failed"
)

// StageStatus records the outcome of one orchestrated stage.
type StageStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}
