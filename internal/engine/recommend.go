package engine

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

// RuleEngine holds an operator-supplied rule pack: solution rules consulted when no built-in
// keyword rule matches, and dependency hints layered over the defaults.
type RuleEngine struct {
	rules  []Rule
	hints  map[string][]string
	logger *slog.Logger
}

// Rule maps root causes to a remediation plan.
type Rule struct {
	ID       string           `yaml:"id"`
	Match    RuleMatch        `yaml:"match"`
	Solution SolutionTemplate `yaml:"solution"`
}

// RuleMatch defines optional attributes for rule matching. Empty fields match everything.
type RuleMatch struct {
	Keywords []string `yaml:"keywords"`
	Service  string   `yaml:"service"`
	Source   string   `yaml:"source"`
}

// SolutionTemplate is the remediation body a rule contributes.
type SolutionTemplate struct {
	ImmediateActions   []string `yaml:"immediate_actions"`
	PreventiveMeasures []string `yaml:"preventive_measures"`
	EstimatedTime      string   `yaml:"estimated_time"`
	Confidence         float64  `yaml:"confidence"`
	Risks              []string `yaml:"risks"`
	VerificationSteps  []string `yaml:"verification_steps"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules           []Rule              `yaml:"rules"`
	DependencyHints map[string][]string `yaml:"dependency_hints"`
}

// NewRuleEngine loads rules from the provided path. If path is empty or missing, returns nil engine.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("rule pack loaded",
		slog.String("path", path),
		slog.Int("rules", len(cfg.Rules)),
		slog.Int("dependency_hints", len(cfg.DependencyHints)))
	return &RuleEngine{rules: cfg.Rules, hints: cfg.DependencyHints, logger: logger}, nil
}

// Match returns the first rule-pack solution matching the root cause.
func (e *RuleEngine) Match(rc models.RootCause) (models.Solution, bool) {
	if e == nil {
		return models.Solution{}, false
	}
	description := strings.ToLower(rc.Description)
	for _, rule := range e.rules {
		if len(rule.Match.Keywords) > 0 && !containsAny(description, rule.Match.Keywords) {
			continue
		}
		if rule.Match.Service != "" && !serviceMatches(rule.Match.Service, rc.AffectedServices) {
			continue
		}
		if rule.Match.Source != "" && !strings.EqualFold(rule.Match.Source, string(rc.Source)) {
			continue
		}
		e.logger.Debug("rule matched", slog.String("rule", rule.ID))
		return rule.Solution.toSolution(rc.Description, models.SolutionRuleBased), true
	}
	return models.Solution{}, false
}

// DependencyHints returns the default hint table with rule-pack entries layered on top.
func (e *RuleEngine) DependencyHints() map[string][]string {
	hints := DefaultDependencyHints()
	if e == nil {
		return hints
	}
	for svc, deps := range e.hints {
		hints[svc] = deps
	}
	return hints
}

func (t SolutionTemplate) toSolution(rootCause string, source models.SolutionSource) models.Solution {
	return models.Solution{
		RootCause:          rootCause,
		ImmediateActions:   nonNil(t.ImmediateActions),
		PreventiveMeasures: nonNil(t.PreventiveMeasures),
		EstimatedTime:      t.EstimatedTime,
		Confidence:         clamp(t.Confidence, 0, 100),
		Risks:              nonNil(t.Risks),
		VerificationSteps:  nonNil(t.VerificationSteps),
		Source:             source,
	}
}

func serviceMatches(service string, services []string) bool {
	for _, s := range services {
		if strings.EqualFold(service, s) {
			return true
		}
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
