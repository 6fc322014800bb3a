// ABOUTME: Template interpolation step: renders every string leaf in task
// ABOUTME: params against { context, triggers } using the shared expr evaluator

package transform

import (
	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/pkg/types"
)

func interpolateTemplates(doc *types.Document, eval *expr.Evaluator) error {
	model := types.ReadModel{Context: doc.Workflow.Context, Triggers: triggerVars(doc)}

	for i := range doc.Workflow.Tasks {
		rendered, err := renderParamTree(doc.Workflow.Tasks[i].Params, eval, model)
		if err != nil {
			return err
		}
		if m, ok := rendered.(map[string]interface{}); ok {
			doc.Workflow.Tasks[i].Params = m
		}
	}
	return nil
}

// renderParamTree walks params recursively, rendering "{{ }}" segments in
// plain string leaves. A map holding exactly one "$expr" key is a deferred
// expression node, not a template string, and is left untouched here: it
// is handled by precompileExpressions and evaluated lazily at run time.
func renderParamTree(v interface{}, eval *expr.Evaluator, model types.ReadModel) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return eval.RenderTemplate(val, model)
	case map[string]interface{}:
		if isExprNode(val) {
			return val, nil
		}
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			rendered, err := renderParamTree(inner, eval, model)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			rendered, err := renderParamTree(inner, eval, model)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

func isExprNode(m map[string]interface{}) bool {
	if len(m) != 1 {
		return false
	}
	_, ok := m["$expr"]
	return ok
}
