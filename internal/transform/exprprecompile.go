// ABOUTME: $expr precompilation step: validates every deferred expression in
// ABOUTME: the canonical document (params, include_if already consumed, transition when) up front

package transform

import (
	"fmt"

	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/pkg/types"
)

func precompileExpressions(doc *types.Document, eval *expr.Evaluator) error {
	for _, task := range doc.Workflow.Tasks {
		if err := precompileParamTree(task.Params, eval); err != nil {
			return err
		}
		for _, t := range task.Transitions {
			if t.When == nil {
				continue
			}
			if err := eval.Precompile(t.When.Expr); err != nil {
				return err
			}
			// A transition's `when` must be statically bool-typed: a
			// non-bool result would otherwise only surface as a run-time
			// EvalBool failure on whichever tick actually reaches this
			// transition, possibly never (spec.md §4.2, §7 — transform-time
			// errors are fatal and execution must not begin).
			if typeName, ok := eval.StaticResultType(t.When.Expr); ok && typeName != "bool" {
				return types.NewLocatedError(types.ErrTransitionNotBool,
					fmt.Sprintf("task %q transition 'when' does not evaluate to bool (got %s)", task.ID, typeName),
					"workflow.tasks["+task.ID+"].transitions", nil)
			}
		}
	}
	return nil
}

func precompileParamTree(v interface{}, eval *expr.Evaluator) error {
	switch val := v.(type) {
	case map[string]interface{}:
		if isExprNode(val) {
			source, _ := val["$expr"].(string)
			return eval.Precompile(source)
		}
		for _, inner := range val {
			if err := precompileParamTree(inner, eval); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, inner := range val {
			if err := precompileParamTree(inner, eval); err != nil {
				return err
			}
		}
	}
	return nil
}
