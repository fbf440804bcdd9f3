package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

// exprEvaluator compiles and caches CEL programs for expression
// conditions. Programs are compiled once when the policy enters the
// store; evaluation failures deny, never allow.
type exprEvaluator struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

func newExprEvaluator() (*exprEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("action_type", cel.StringType),
		cel.Variable("chain", cel.StringType),
		cel.Variable("amount", cel.UintType),
		cel.Variable("tokens", cel.ListType(cel.StringType)),
		cel.Variable("daily_spent", cel.UintType),
		cel.Variable("requester", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &exprEvaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// compile builds and caches the program for src, returning any
// compilation error so malformed policies are rejected at store time.
func (e *exprEvaluator) compile(src string) error {
	e.mu.RLock()
	_, hit := e.cache[src]
	e.mu.RUnlock()
	if hit {
		return nil
	}

	ast, issues := e.env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("expression must produce a bool, got %s", ast.OutputType())
	}
	prg, err := e.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return fmt.Errorf("build expression program: %w", err)
	}

	e.mu.Lock()
	e.cache[src] = prg
	e.mu.Unlock()
	return nil
}

// evaluate runs a previously compiled expression. A cache miss means
// the expression bypassed compile, which is treated as an error.
func (e *exprEvaluator) evaluate(src string, input map[string]any) (bool, error) {
	e.mu.RLock()
	prg, hit := e.cache[src]
	e.mu.RUnlock()
	if !hit {
		if err := e.compile(src); err != nil {
			return false, err
		}
		e.mu.RLock()
		prg = e.cache[src]
		e.mu.RUnlock()
	}

	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("evaluate expression: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression result is not a bool")
	}
	return val, nil
}

// exprInput builds the CEL variable bindings for one evaluation.
func exprInput(action contracts.Action, requester contracts.Principal, sc contracts.SpendingContext) map[string]any {
	return map[string]any{
		"action_type": string(action.Type()),
		"chain":       contracts.ActionChain(action),
		"amount":      contracts.ActionAmount(action),
		"tokens":      contracts.ActionTokens(action),
		"daily_spent": sc.DailySpent,
		"requester":   string(requester),
	}
}
