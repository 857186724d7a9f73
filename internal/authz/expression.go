package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// expressionPolicy is a compiled CEL expression guarding one capability.
type expressionPolicy struct {
	name       string
	expression string
	program    cel.Program
}

// newExpressionEnv creates the CEL environment policies are compiled in.
//
// Variables:
//   - identity: map with sub, name, auth_type, authenticated and claims
//   - capability: "read" or "write"
//   - now: evaluation time
func newExpressionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("identity", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("capability", cel.StringType),
		cel.Variable("now", cel.TimestampType),
	)
}

// compileExpression compiles expression into a policy named name.
// The expression must evaluate to a bool.
func compileExpression(env *cel.Env, name, expression string) (*expressionPolicy, error) {
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, name, issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %s: expression must return bool, got %s",
			ErrInvalidPolicy, name, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, name, err)
	}

	return &expressionPolicy{
		name:       name,
		expression: expression,
		program:    program,
	}, nil
}

// evaluate runs the policy against the identity attributes.
func (p *expressionPolicy) evaluate(
	ctx context.Context,
	identity map[string]interface{},
	capability Capability,
	now time.Time,
) (bool, error) {
	result, _, err := p.program.ContextEval(ctx, map[string]interface{}{
		"identity":   identity,
		"capability": string(capability),
		"now":        now,
	})
	if err != nil {
		return false, fmt.Errorf("evaluating policy %s: %w", p.name, err)
	}

	allowed, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy %s returned %T, want bool", p.name, result.Value())
	}
	return allowed, nil
}
