// ABOUTME: Shared $expr/template evaluator backed by google/cel-go
// ABOUTME: The same compiled-expression path serves both `$expr` nodes and `{{ }}` templates

package expr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"

	"github.com/sarlalian/newton/pkg/types"
)

// Evaluator compiles and runs CEL expressions against a frozen
// `{ context, triggers, tasks }` read-model. A single Evaluator is safe
// for concurrent use: its program cache is guarded by a mutex and its
// cel.Env is read-only after construction.
type Evaluator struct {
	env     *cel.Env
	mu      sync.RWMutex
	cache   map[string]cel.Program
}

// New builds an Evaluator with the three top-level variables every
// `$expr`/template expression may reference: context, triggers, tasks.
func New() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("context", cel.DynType),
		cel.Variable("triggers", cel.DynType),
		cel.Variable("tasks", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("expr: building CEL environment: %w", err)
	}
	return &Evaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

func (e *Evaluator) program(source string) (cel.Program, error) {
	e.mu.RLock()
	prog, ok := e.cache[source]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := e.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, types.NewError(types.ErrExprParse, fmt.Sprintf("parsing expression %q", source), issues.Err())
	}
	prog, err := e.env.Program(ast)
	if err != nil {
		return nil, types.NewError(types.ErrExprParse, fmt.Sprintf("planning expression %q", source), err)
	}

	e.mu.Lock()
	e.cache[source] = prog
	e.mu.Unlock()
	return prog, nil
}

// Precompile validates source at transform time without evaluating it,
// surfacing WFG-LINT-005 parse errors before execution.
func (e *Evaluator) Precompile(source string) error {
	_, err := e.program(source)
	return err
}

// CheckSyntax compiles source and returns the raw compiler error, unwrapped
// from the GraphError envelope so the advisory lint pass can fold it into
// its own finding text.
func (e *Evaluator) CheckSyntax(source string) error {
	_, issues := e.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	return nil
}

// StaticResultType reports the statically inferred CEL output type of
// source without evaluating it. Returns ok=false when source fails to
// compile or its type cannot be determined (e.g. it depends on one of the
// dyn-typed context/triggers/tasks variables) — callers should treat that
// as "unknown", not a violation.
func (e *Evaluator) StaticResultType(source string) (typeName string, ok bool) {
	ast, issues := e.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return "", false
	}
	out := ast.OutputType()
	if out == nil || out.String() == "dyn" {
		return "", false
	}
	return out.String(), true
}

func vars(model types.ReadModel) map[string]interface{} {
	taskMap := make(map[string]interface{}, len(model.Tasks))
	for id, tv := range model.Tasks {
		taskMap[id] = map[string]interface{}{
			"status": string(tv.Status),
			"output": tv.Output,
		}
	}
	return map[string]interface{}{
		"context":  model.Context,
		"triggers": model.Triggers,
		"tasks":    taskMap,
	}
}

// Eval runs a `$expr` expression and returns its native Go value.
func (e *Evaluator) Eval(source string, model types.ReadModel) (interface{}, error) {
	prog, err := e.program(source)
	if err != nil {
		return nil, err
	}
	out, _, err := prog.Eval(vars(model))
	if err != nil {
		return nil, types.NewError(types.ErrExprParse, fmt.Sprintf("evaluating expression %q", source), err)
	}
	return toGoValue(out), nil
}

// EvalBool runs source and requires it to evaluate to a boolean, the
// contract `include_if` and transition `when` clauses share.
func (e *Evaluator) EvalBool(source string, model types.ReadModel) (bool, error) {
	v, err := e.Eval(source, model)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, types.NewError(types.ErrTransitionNotBool, fmt.Sprintf("expression %q did not evaluate to a boolean", source), nil)
	}
	return b, nil
}

func toGoValue(v ref.Val) interface{} {
	return v.Value()
}

// RenderTemplate interpolates every `{{ expr }}` segment in tmpl through
// the SAME CEL evaluator used for `$expr`, converting each result to its
// string form and leaving surrounding literal text untouched.
func (e *Evaluator) RenderTemplate(tmpl string, model types.ReadModel) (string, error) {
	var out strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			out.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			return "", types.NewError(types.ErrTemplateParse, fmt.Sprintf("unterminated {{ in template %q", tmpl), nil)
		}
		end += start

		out.WriteString(rest[:start])
		expr := strings.TrimSpace(rest[start+2 : end])
		val, err := e.Eval(expr, model)
		if err != nil {
			return "", types.NewError(types.ErrTemplateParse, fmt.Sprintf("rendering template expression %q", expr), err)
		}
		out.WriteString(fmt.Sprintf("%v", val))

		rest = rest[end+2:]
	}
	return out.String(), nil
}
