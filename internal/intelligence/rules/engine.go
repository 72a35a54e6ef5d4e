package rules

import (
	_ "embed"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

//go:embed data/rules.yaml
var embeddedRules []byte

// EmbeddedRules returns the built-in rule file.
func EmbeddedRules() []byte { return append([]byte(nil), embeddedRules...) }

// ─────────────────────────────────────────────────────────────────────────────
// Rule definitions
// ─────────────────────────────────────────────────────────────────────────────

// ComplianceRule yields a Requirement when it fires.
type ComplianceRule struct {
	ID           string `yaml:"id"`
	When         string `yaml:"when"`
	Jurisdiction string `yaml:"jurisdiction"`
	Framework    string `yaml:"framework"`
	Requirement  string `yaml:"requirement"`
	Deadline     string `yaml:"deadline"`
}

// RecommendationRule yields a Recommendation when it fires.
type RecommendationRule struct {
	ID        string `yaml:"id"`
	When      string `yaml:"when"`
	Priority  string `yaml:"priority"`
	Timeline  string `yaml:"timeline"`
	Action    string `yaml:"action"`
	Rationale string `yaml:"rationale"`
}

// AlertRule yields an Alert when it fires.
type AlertRule struct {
	ID      string `yaml:"id"`
	When    string `yaml:"when"`
	Level   string `yaml:"level"`
	Message string `yaml:"message"`
	Action  string `yaml:"action"`
}

// RuleSet is the decoded rule file.
type RuleSet struct {
	Compliance      []ComplianceRule     `yaml:"compliance"`
	Recommendations []RecommendationRule `yaml:"recommendations"`
	Alerts          []AlertRule          `yaml:"alerts"`
}

// Recommendation priorities, most urgent first.
var priorities = map[string]int{"Critical": 0, "High": 1, "Medium": 2, "Low": 3}

// ParseRuleSet decodes a YAML rule file.
func ParseRuleSet(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, errors.Wrap(err, errors.ErrCodeConfiguration, "rules: malformed rule file")
	}
	return rs, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Results
// ─────────────────────────────────────────────────────────────────────────────

// Requirement is an obligation that applies to the company.
type Requirement struct {
	ID           string `json:"id"`
	Jurisdiction string `json:"jurisdiction"`
	Framework    string `json:"framework"`
	Requirement  string `json:"requirement"`
	Deadline     string `json:"deadline"`
}

// Recommendation is a mitigation action.
type Recommendation struct {
	ID        string `json:"id"`
	Priority  string `json:"priority"`
	Timeline  string `json:"timeline"`
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
}

// Alert is a monitoring alert.
type Alert struct {
	ID      string `json:"id"`
	Level   string `json:"level"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// Result is everything the rules derived for one assessment.
type Result struct {
	Compliance      []Requirement    `json:"compliance_requirements"`
	Recommendations []Recommendation `json:"recommendations"`
	Alerts          []Alert          `json:"monitoring_alerts"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine
// ─────────────────────────────────────────────────────────────────────────────

type compiled[T any] struct {
	rule    T
	id      string
	program *vm.Program
}

// Engine evaluates a compiled RuleSet. It is immutable and safe for
// concurrent use.
type Engine struct {
	compliance      []compiled[ComplianceRule]
	recommendations []compiled[RecommendationRule]
	alerts          []compiled[AlertRule]
	logger          logging.Logger
}

// NewEngine compiles every rule against Facts. Any compile error is a
// configuration error.
func NewEngine(rs RuleSet, logger logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	e := &Engine{logger: logger.Named("rules")}
	seen := make(map[string]bool)

	for _, r := range rs.Compliance {
		p, err := compileRule(r.ID, r.When, seen)
		if err != nil {
			return nil, err
		}
		e.compliance = append(e.compliance, compiled[ComplianceRule]{rule: r, id: r.ID, program: p})
	}
	for _, r := range rs.Recommendations {
		if _, ok := priorities[r.Priority]; !ok {
			return nil, errors.Newf(errors.ErrCodeConfiguration, "rules: %s has unknown priority %q", r.ID, r.Priority)
		}
		p, err := compileRule(r.ID, r.When, seen)
		if err != nil {
			return nil, err
		}
		e.recommendations = append(e.recommendations, compiled[RecommendationRule]{rule: r, id: r.ID, program: p})
	}
	for _, r := range rs.Alerts {
		p, err := compileRule(r.ID, r.When, seen)
		if err != nil {
			return nil, err
		}
		e.alerts = append(e.alerts, compiled[AlertRule]{rule: r, id: r.ID, program: p})
	}
	return e, nil
}

// NewEmbeddedEngine compiles the built-in rules.
func NewEmbeddedEngine(logger logging.Logger) (*Engine, error) {
	rs, err := ParseRuleSet(embeddedRules)
	if err != nil {
		return nil, err
	}
	return NewEngine(rs, logger)
}

func compileRule(id, when string, seen map[string]bool) (*vm.Program, error) {
	if id == "" {
		return nil, errors.New(errors.ErrCodeConfiguration, "rules: rule id is required")
	}
	if seen[id] {
		return nil, errors.New(errors.ErrCodeConfiguration, "rules: duplicate rule id").WithDetail(id)
	}
	seen[id] = true
	p, err := expr.Compile(when, expr.Env(Facts{}), expr.AsBool())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "rules: failed to compile rule").WithDetail(id)
	}
	return p, nil
}

// Rules reports how many rules of each kind are loaded.
func (e *Engine) Rules() (compliance, recommendations, alerts int) {
	return len(e.compliance), len(e.recommendations), len(e.alerts)
}

// Evaluate runs every rule against f. A rule that fails at run time is
// logged and skipped.
func (e *Engine) Evaluate(f Facts) Result {
	var res Result
	for _, c := range e.compliance {
		if e.fires(c.id, c.program, f) {
			res.Compliance = append(res.Compliance, Requirement{
				ID:           c.rule.ID,
				Jurisdiction: c.rule.Jurisdiction,
				Framework:    c.rule.Framework,
				Requirement:  f.expand(c.rule.Requirement),
				Deadline:     c.rule.Deadline,
			})
		}
	}
	for _, c := range e.recommendations {
		if e.fires(c.id, c.program, f) {
			res.Recommendations = append(res.Recommendations, Recommendation{
				ID:        c.rule.ID,
				Priority:  c.rule.Priority,
				Timeline:  c.rule.Timeline,
				Action:    f.expand(c.rule.Action),
				Rationale: f.expand(c.rule.Rationale),
			})
		}
	}
	sort.SliceStable(res.Recommendations, func(i, j int) bool {
		return priorities[res.Recommendations[i].Priority] < priorities[res.Recommendations[j].Priority]
	})
	for _, c := range e.alerts {
		if e.fires(c.id, c.program, f) {
			res.Alerts = append(res.Alerts, Alert{
				ID:      c.rule.ID,
				Level:   c.rule.Level,
				Message: f.expand(c.rule.Message),
				Action:  f.expand(c.rule.Action),
			})
		}
	}
	return res
}

func (e *Engine) fires(id string, p *vm.Program, f Facts) bool {
	out, err := expr.Run(p, f)
	if err != nil {
		e.logger.Warn("rule evaluation failed", logging.String("rule", id), logging.Err(err))
		return false
	}
	b, ok := out.(bool)
	return ok && b
}
