package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// DataVariable is the single CEL variable conditions are evaluated against:
// the flattened event data.
const DataVariable = "data"

type Evaluator struct {
	env *cel.Env
}

// Condition is a compiled rule condition.
type Condition struct {
	Expression string
	program    cel.Program
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable(DataVariable, cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("condition expression must return bool, got %v", ast.OutputType())
	}
	return nil
}

func (e *Evaluator) CompileExpression(expression string) (*Condition, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("condition expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Condition{Expression: expression, program: program}, nil
}

// CompileCondition translates a rule condition object and compiles it.
func (e *Evaluator) CompileCondition(condition map[string]interface{}) (*Condition, error) {
	expression, err := TranslateCondition(condition)
	if err != nil {
		return nil, err
	}
	return e.CompileExpression(expression)
}

// Match evaluates a compiled condition against flattened data.
func (e *Evaluator) Match(ctx context.Context, cond *Condition, data map[string]interface{}) (bool, error) {
	if cond == nil {
		return false, fmt.Errorf("condition is nil")
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	result, _, err := cond.program.ContextEval(ctx, map[string]interface{}{DataVariable: data})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
