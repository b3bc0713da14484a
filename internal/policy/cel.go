// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/kusari-oss/triage/internal/core/models"
)

// CELEvaluator compiles approval rules written in CEL
type CELEvaluator struct {
	env *cel.Env
}

// Rule is a compiled approval rule
type Rule struct {
	Expression string
	program    cel.Program
}

// NewCELEvaluator creates a new CEL evaluator with the action variable declared
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}

	return &CELEvaluator{env: env}, nil
}

// Compile parses, type-checks and plans an expression
func (e *CELEvaluator) Compile(expression string) (*Rule, error) {
	ast, issues := e.env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error parsing rule %q: %w", expression, issues.Err())
	}

	checked, issues := e.env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error type-checking rule %q: %w", expression, issues.Err())
	}

	program, err := e.env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("error compiling rule %q: %w", expression, err)
	}

	return &Rule{Expression: expression, program: program}, nil
}

// Matches evaluates the rule against an action
func (r *Rule) Matches(action models.Action) (bool, error) {
	params := action.Params
	if params == nil {
		params = map[string]interface{}{}
	}

	vars := map[string]interface{}{
		"action": map[string]interface{}{
			"name":   action.Name,
			"risk":   action.NormalizedRisk(),
			"params": params,
		},
	}

	result, _, err := r.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("error evaluating rule %q: %w", r.Expression, err)
	}

	if result.Type() != types.BoolType {
		return false, fmt.Errorf("rule %q did not evaluate to a boolean", r.Expression)
	}

	return result.Value().(bool), nil
}
