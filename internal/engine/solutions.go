package engine

import (
	"log/slog"
	"strings"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

const (
	maxSolutions              = 3
	textAdviceConfidence      = 60
	structuredAdviceFallback  = 60
	bestPracticeTotalErrors   = 100
	bestPracticeServiceSpread = 3
)

type builtinRule struct {
	keywords []string
	template SolutionTemplate
	source   models.SolutionSource
}

// builtinRules are evaluated in order against the lowercased root-cause description.
var builtinRules = []builtinRule{
	{
		keywords: []string{"database", "connection", "timeout"},
		source:   models.SolutionRuleBased,
		template: SolutionTemplate{
			ImmediateActions: []string{
				"Check database server status and connectivity",
				"Review database connection pool settings",
				"Verify network connectivity between application and database",
				"Check for database locks or long-running queries",
				"Restart database connection pool if necessary",
			},
			PreventiveMeasures: []string{
				"Implement connection pool monitoring and alerting",
				"Set appropriate connection timeout values",
				"Configure automatic connection retry with exponential backoff",
				"Implement circuit breaker pattern for database calls",
				"Regular database performance tuning and optimization",
			},
			EstimatedTime: "30-60 minutes",
			Confidence:    75,
			Risks: []string{
				"Restarting connection pool may cause brief service interruption",
				"Database changes may require application restart",
			},
			VerificationSteps: []string{
				"Verify database connection pool metrics return to normal",
				"Check application logs for successful database connections",
				"Monitor error rates for 15-30 minutes",
				"Run health check endpoints",
			},
		},
	},
	{
		keywords: []string{"auth", "security", "permission", "unauthorized"},
		source:   models.SolutionRuleBased,
		template: SolutionTemplate{
			ImmediateActions: []string{
				"Verify authentication service is running and accessible",
				"Check API keys and credentials are valid and not expired",
				"Review recent security policy changes",
				"Verify user permissions and roles are correctly configured",
				"Check for token expiration issues",
			},
			PreventiveMeasures: []string{
				"Implement automated credential rotation",
				"Set up monitoring for authentication failures",
				"Configure proper token expiration and refresh mechanisms",
				"Regular security audits and access reviews",
				"Implement rate limiting for authentication attempts",
			},
			EstimatedTime: "20-40 minutes",
			Confidence:    70,
			Risks: []string{
				"Credential changes may affect multiple services",
				"Security policy changes require careful testing",
			},
			VerificationSteps: []string{
				"Test authentication flow end-to-end",
				"Verify users can successfully authenticate",
				"Check authentication service logs",
				"Monitor authentication success rates",
			},
		},
	},
	{
		keywords: []string{"performance", "timeout", "slow", "latency", "resource"},
		source:   models.SolutionRuleBased,
		template: SolutionTemplate{
			ImmediateActions: []string{
				"Check system resource utilization (CPU, memory, disk)",
				"Identify and kill any runaway processes",
				"Review recent deployments or configuration changes",
				"Check for memory leaks or resource exhaustion",
				"Scale up resources if necessary",
			},
			PreventiveMeasures: []string{
				"Implement auto-scaling based on resource metrics",
				"Set up resource utilization alerts",
				"Regular performance testing and optimization",
				"Implement caching where appropriate",
				"Code profiling and optimization for slow operations",
			},
			EstimatedTime: "45-90 minutes",
			Confidence:    65,
			Risks: []string{
				"Scaling operations may cause brief interruptions",
				"Resource changes may require application restart",
			},
			VerificationSteps: []string{
				"Monitor resource utilization metrics",
				"Check application response times",
				"Verify no resource alerts are firing",
				"Run load tests to confirm performance",
			},
		},
	},
}

var genericRuleTemplate = SolutionTemplate{
	ImmediateActions: []string{
		"Review recent changes and deployments",
		"Check service health and status",
		"Review application and infrastructure logs",
		"Verify all dependencies are operational",
		"Restart affected services if necessary",
	},
	PreventiveMeasures: []string{
		"Implement comprehensive monitoring and alerting",
		"Set up automated health checks",
		"Regular system maintenance and updates",
		"Improve error handling and logging",
		"Document incident response procedures",
	},
	EstimatedTime: "30-60 minutes",
	Confidence:    50,
	Risks: []string{
		"Service restarts may cause brief downtime",
		"Changes may have unintended side effects",
	},
	VerificationSteps: []string{
		"Monitor error rates and logs",
		"Verify service health checks pass",
		"Check all dependent services",
		"Run smoke tests",
	},
}

var noRootCauseTemplate = SolutionTemplate{
	ImmediateActions: []string{
		"Review all error logs for common patterns",
		"Check system health across all services",
		"Verify recent deployments and changes",
		"Check for infrastructure issues",
		"Review monitoring dashboards",
	},
	PreventiveMeasures: []string{
		"Improve logging and monitoring coverage",
		"Implement better error tracking",
		"Regular system health checks",
		"Automated testing improvements",
	},
	EstimatedTime: "60-120 minutes",
	Confidence:    40,
	Risks:         []string{"Investigation may take longer without clear root cause"},
	VerificationSteps: []string{
		"Monitor error rates",
		"Check all services are healthy",
		"Review logs for improvements",
	},
}

const noRootCauseDescription = "Multiple errors detected without clear root cause"

var generalBestPractices = []string{
	"Implement comprehensive logging with correlation IDs for request tracing",
	"Regular review and update of monitoring and alerting thresholds",
	"Conduct post-incident reviews to improve system resilience",
	"Maintain up-to-date runbooks for common failure scenarios",
}

// SolutionRanker turns ranked root causes into prioritised remediation plans.
type SolutionRanker struct {
	rules  *RuleEngine
	logger *slog.Logger
}

// NewSolutionRanker constructs a SolutionRanker; rules may be nil.
func NewSolutionRanker(logger *slog.Logger, rules *RuleEngine) *SolutionRanker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SolutionRanker{rules: rules, logger: logger}
}

// Rank produces one solution for each of the top three root causes. advice[i], when present
// and non-nil, is the resolved AI advice for rootCauses[i] and takes precedence over rules.
func (r *SolutionRanker) Rank(rootCauses []models.RootCause, groups []models.ErrorGroup, advice []*models.SolutionAdvice) models.SolutionResult {
	result := models.SolutionResult{
		Solutions:     []models.Solution{},
		BestPractices: BestPractices(groups),
	}

	if len(rootCauses) == 0 {
		r.logger.Debug("no root causes, using generic solution")
		solution := noRootCauseTemplate.toSolution(noRootCauseDescription, models.SolutionGeneric)
		solution.Priority = 1
		result.Solutions = append(result.Solutions, solution)
		result.OverallConfidence = OverallConfidence(result.Solutions)
		return result
	}

	for i, rc := range rootCauses {
		if i == maxSolutions {
			break
		}
		var adv *models.SolutionAdvice
		if i < len(advice) {
			adv = advice[i]
		}
		solution := r.solutionFor(rc, adv)
		solution.Priority = i + 1
		result.Solutions = append(result.Solutions, solution)
	}
	result.OverallConfidence = OverallConfidence(result.Solutions)
	return result
}

func (r *SolutionRanker) solutionFor(rc models.RootCause, advice *models.SolutionAdvice) models.Solution {
	if advice != nil {
		return fromAdvice(rc.Description, *advice)
	}
	if solution, ok := matchBuiltin(rc); ok {
		return solution
	}
	// The rule pack only replaces the generic fallback; keyword matches keep their fixed confidences.
	if solution, ok := r.rules.Match(rc); ok {
		return solution
	}
	return genericRuleTemplate.toSolution(rc.Description, models.SolutionRuleBasedGeneric)
}

// RuleBasedSolution applies the built-in keyword rules to a root cause.
func RuleBasedSolution(rc models.RootCause) models.Solution {
	if solution, ok := matchBuiltin(rc); ok {
		return solution
	}
	return genericRuleTemplate.toSolution(rc.Description, models.SolutionRuleBasedGeneric)
}

func matchBuiltin(rc models.RootCause) (models.Solution, bool) {
	description := strings.ToLower(rc.Description)
	for _, rule := range builtinRules {
		if containsAny(description, rule.keywords) {
			return rule.template.toSolution(rc.Description, rule.source), true
		}
	}
	return models.Solution{}, false
}

func fromAdvice(rootCause string, advice models.SolutionAdvice) models.Solution {
	if advice.TextOnly {
		return models.Solution{
			RootCause:          rootCause,
			ImmediateActions:   []string{advice.Text},
			PreventiveMeasures: []string{},
			EstimatedTime:      "Unknown",
			Confidence:         textAdviceConfidence,
			Risks:              []string{},
			VerificationSteps:  []string{},
			Source:             models.SolutionAITextResponse,
		}
	}
	confidence := float64(structuredAdviceFallback)
	if advice.Confidence != nil {
		confidence = clamp(*advice.Confidence, 0, 100)
	}
	return models.Solution{
		RootCause:          rootCause,
		ImmediateActions:   nonNil(advice.ImmediateActions),
		PreventiveMeasures: nonNil(advice.PreventiveMeasures),
		EstimatedTime:      advice.EstimatedTime,
		Confidence:         confidence,
		Risks:              nonNil(advice.Risks),
		VerificationSteps:  nonNil(advice.VerificationSteps),
		Source:             models.SolutionAIGenerated,
	}
}

// OverallConfidence is the priority-weighted mean of solution confidences, rounded to two decimals.
func OverallConfidence(solutions []models.Solution) float64 {
	var weighted, total float64
	for _, s := range solutions {
		priority := s.Priority
		if priority < 1 {
			priority = 1
		}
		w := 1.0 / float64(priority)
		weighted += s.Confidence * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return round2(weighted / total)
}

// BestPractices returns conditional recommendations followed by the general ones.
func BestPractices(groups []models.ErrorGroup) []string {
	practices := make([]string, 0, len(generalBestPractices)+3)

	total := 0
	services := make(map[string]struct{})
	critical := false
	for _, g := range groups {
		total += g.Count
		services[g.ServiceName] = struct{}{}
		if g.Severity == models.SeverityCritical {
			critical = true
		}
	}

	if total > bestPracticeTotalErrors {
		practices = append(practices, "Implement rate limiting and circuit breakers to prevent error cascades")
	}
	if len(services) > bestPracticeServiceSpread {
		practices = append(practices, "Review service dependencies and implement better isolation between services")
	}
	if critical {
		practices = append(practices, "Set up dedicated alerting for critical errors with immediate escalation")
	}
	return append(practices, generalBestPractices...)
}
