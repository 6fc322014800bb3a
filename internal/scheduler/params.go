// ABOUTME: Resolves deferred $expr nodes inside task params against the
// ABOUTME: runtime read-model at dispatch time (spec.md §4.3)

package scheduler

import (
	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/pkg/types"
)

// resolveParamTree walks a params tree, replacing any {"$expr": source}
// node with its evaluated runtime value. Plain values pass through
// unchanged; template interpolation already ran at transform time.
func resolveParamTree(v interface{}, eval *expr.Evaluator, model types.ReadModel) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		if len(val) == 1 {
			if source, ok := val["$expr"].(string); ok {
				return eval.Eval(source, model)
			}
		}
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			resolved, err := resolveParamTree(inner, eval, model)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			resolved, err := resolveParamTree(inner, eval, model)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
