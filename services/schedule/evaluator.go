package schedule

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Evaluator runs CEL trigger expressions with a dynamic variable set.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate exposes the context map entries as top-level variables and
// requires the expression to produce a boolean.
func (e *Evaluator) Evaluate(expression string, context map[string]any) (bool, error) {
	if expression == "" {
		return false, fmt.Errorf("expression must not be empty")
	}
	if context == nil {
		context = map[string]any{}
	}

	opts := make([]cel.EnvOption, 0, len(context))
	for key := range context {
		opts = append(opts, cel.Variable(key, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	result, _, err := program.Eval(context)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	boolean, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return a boolean, got %T", result.Value())
	}
	return boolean, nil
}
