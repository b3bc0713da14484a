// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"github.com/kusari-oss/triage/internal/core/models"
)

// Decision is the outcome of classifying an action's risk
type Decision int

const (
	// RequireApproval means a human must approve the action before it runs
	RequireApproval Decision = iota
	// AutoExecute means the action may run without approval
	AutoExecute
)

// String returns the decision name used in logs
func (d Decision) String() string {
	if d == AutoExecute {
		return "auto_execute"
	}
	return "require_approval"
}

// Classify decides whether an action may be executed without approval.
// Only low and medium risk actions qualify; anything else, including a
// missing or unrecognized tag, requires approval.
func Classify(action models.Action) Decision {
	switch action.NormalizedRisk() {
	case models.RiskLow, models.RiskMedium:
		return AutoExecute
	default:
		return RequireApproval
	}
}

// Policy combines the risk tier rule with optional approval rules
type Policy struct {
	rules []*Rule
}

// New creates a policy from CEL approval rule expressions.
// An action matched by any rule always requires approval.
func New(expressions []string) (*Policy, error) {
	p := &Policy{}
	if len(expressions) == 0 {
		return p, nil
	}

	evaluator, err := NewCELEvaluator()
	if err != nil {
		return nil, err
	}
	for _, expr := range expressions {
		rule, err := evaluator.Compile(expr)
		if err != nil {
			return nil, err
		}
		p.rules = append(p.rules, rule)
	}
	return p, nil
}

// Classify applies the risk tier rule and then the approval rules.
// A rule that fails to evaluate counts as a match.
func (p *Policy) Classify(action models.Action) Decision {
	decision := Classify(action)
	if decision != AutoExecute || p == nil {
		return decision
	}

	for _, rule := range p.rules {
		matched, err := rule.Matches(action)
		if err != nil || matched {
			return RequireApproval
		}
	}
	return AutoExecute
}

// Rules returns the source expressions of the configured approval rules
func (p *Policy) Rules() []string {
	if p == nil {
		return nil
	}
	exprs := make([]string, 0, len(p.rules))
	for _, rule := range p.rules {
		exprs = append(exprs, rule.Expression)
	}
	return exprs
}
