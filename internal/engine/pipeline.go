package engine

import (
	"context"
	"log/slog"

	"github.com/miradorstack/mirador-logrca/internal/classifier"
	"github.com/miradorstack/mirador-logrca/internal/models"
	"github.com/miradorstack/mirador-logrca/internal/patterns"
)

// Advisor resolves optional AI enrichment between pipeline stages. Errors degrade to
// "no advice" and never fail a run.
type Advisor interface {
	RootCause(ctx context.Context, groups []models.ErrorGroup, patterns models.PatternSet, temporal models.TemporalAnalysis) (*models.Advisory, error)
	Solution(ctx context.Context, rc models.RootCause, groups []models.ErrorGroup) (*models.SolutionAdvice, error)
}

// Pipeline runs classification, grouping, pattern detection, correlation, and ranking.
type Pipeline struct {
	logger     *slog.Logger
	classifier *classifier.Classifier
	detector   *patterns.Detector
	rules      *RuleEngine
	solutions  *SolutionRanker
}

// NewPipeline constructs a new analysis pipeline. Nil collaborators get defaults; rules may stay nil.
func NewPipeline(
	logger *slog.Logger,
	cls *classifier.Classifier,
	detector *patterns.Detector,
	rules *RuleEngine,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cls == nil {
		cls = classifier.New(logger)
	}
	if detector == nil {
		detector = patterns.NewDetector(logger)
	}
	return &Pipeline{
		logger:     logger,
		classifier: cls,
		detector:   detector,
		rules:      rules,
		solutions:  NewSolutionRanker(logger, rules),
	}
}

// Parse classifies the batch, groups it, detects patterns, and computes statistics.
func (p *Pipeline) Parse(ctx context.Context, records []models.LogRecord) (models.ParseResult, error) {
	classified, err := p.classifier.ClassifyAll(ctx, records)
	if err != nil {
		return models.ParseResult{}, err
	}
	groups := GroupErrors(classified)
	result := models.ParseResult{
		ClassifiedLogs: classified,
		ErrorGroups:    groups,
		Patterns:       p.detector.Detect(classified),
		Statistics:     ComputeStatistics(classified, groups),
	}
	p.logger.Debug("parse stage complete",
		slog.Int("records", len(records)),
		slog.Int("groups", len(groups)),
		slog.Int("patterns", len(result.Patterns)))
	return result, nil
}

// Investigate correlates groups and ranks root causes. advisor may be nil.
func (p *Pipeline) Investigate(ctx context.Context, parsed models.ParseResult, advisor Advisor) models.RCAResult {
	temporal := AnalyzeTemporal(parsed.ErrorGroups)

	var advisory *models.Advisory
	if advisor != nil && len(parsed.ErrorGroups) > 0 {
		adv, err := advisor.RootCause(ctx, parsed.ErrorGroups, parsed.Patterns, temporal)
		if err != nil {
			p.logger.Warn("root cause advisory unavailable", slog.Any("error", err))
		} else {
			advisory = adv
		}
	}

	rootCauses, confidence := RankRootCauses(temporal, parsed.Patterns, advisory)
	return models.RCAResult{
		RootCauses:         rootCauses,
		Correlations:       Correlate(parsed.ErrorGroups),
		TemporalAnalysis:   temporal,
		DependencyAnalysis: AnalyzeDependencies(parsed.ErrorGroups, p.rules.DependencyHints()),
		Advisory:           advisory,
		ConfidenceScore:    confidence,
	}
}

// Remediate ranks solutions for the top root causes. advisor may be nil.
func (p *Pipeline) Remediate(ctx context.Context, rca models.RCAResult, groups []models.ErrorGroup, advisor Advisor) models.SolutionResult {
	var advice []*models.SolutionAdvice
	if advisor != nil {
		for i, rc := range rca.RootCauses {
			if i == maxSolutions {
				break
			}
			adv, err := advisor.Solution(ctx, rc, groups)
			if err != nil {
				p.logger.Warn("solution advisory unavailable", slog.Int("priority", i+1), slog.Any("error", err))
				adv = nil
			}
			advice = append(advice, adv)
		}
	}
	return p.solutions.Rank(rca.RootCauses, groups, advice)
}

// Analyze runs every stage over the batch. Only context cancellation produces an error.
func (p *Pipeline) Analyze(ctx context.Context, records []models.LogRecord, advisor Advisor) (models.AnalysisResult, error) {
	parsed, err := p.Parse(ctx, records)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	rca := p.Investigate(ctx, parsed, advisor)
	solutions := p.Remediate(ctx, rca, parsed.ErrorGroups, advisor)
	return Assemble(parsed, rca, solutions), nil
}

// Assemble merges stage outputs into a single result. Run metadata is left for the caller.
func Assemble(parsed models.ParseResult, rca models.RCAResult, solutions models.SolutionResult) models.AnalysisResult {
	return models.AnalysisResult{
		ClassifiedLogs:     parsed.ClassifiedLogs,
		ErrorGroups:        parsed.ErrorGroups,
		Patterns:           parsed.Patterns,
		Statistics:         parsed.Statistics,
		Correlations:       rca.Correlations,
		TemporalAnalysis:   rca.TemporalAnalysis,
		DependencyAnalysis: rca.DependencyAnalysis,
		RootCauses:         rca.RootCauses,
		ConfidenceScore:    rca.ConfidenceScore,
		Solutions:          solutions.Solutions,
		BestPractices:      solutions.BestPractices,
		OverallConfidence:  solutions.OverallConfidence,
	}
}
