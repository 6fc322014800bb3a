// ABOUTME: Macro expansion step: replaces `macro:`/`with:` placeholders with
// ABOUTME: concrete tasks, binding each macro's `with:` arguments into its task templates

package transform

import (
	"fmt"
	"strings"

	"github.com/sarlalian/newton/pkg/types"
)

func expandMacros(doc *types.Document) error {
	macrosByName := make(map[string]types.Macro, len(doc.Macros))
	for _, m := range doc.Macros {
		macrosByName[m.Name] = m
	}

	expanded := make([]types.RawTask, 0, len(doc.Workflow.Tasks))
	seen := make(map[string]bool, len(doc.Workflow.Tasks))

	for _, task := range doc.Workflow.Tasks {
		if !task.IsMacroPlaceholder() {
			if task.ID != "" {
				if seen[task.ID] {
					return types.NewError(types.ErrMacroDuplicateID,
						fmt.Sprintf("task id %q is declared more than once", task.ID), nil)
				}
				seen[task.ID] = true
			}
			expanded = append(expanded, task)
			continue
		}

		macro, ok := macrosByName[task.MacroRef]
		if !ok {
			return types.NewError(types.ErrMacroDuplicateID,
				fmt.Sprintf("macro %q is not defined", task.MacroRef), nil)
		}

		for _, tmpl := range macro.Tasks {
			bound, err := bindMacroTask(tmpl, task.With)
			if err != nil {
				return err
			}
			if seen[bound.ID] {
				return types.NewError(types.ErrMacroDuplicateID,
					fmt.Sprintf("macro %q expansion produced duplicate task id %q", task.MacroRef, bound.ID), nil)
			}
			seen[bound.ID] = true
			expanded = append(expanded, bound)
		}
	}

	doc.Workflow.Tasks = expanded
	return nil
}

// bindMacroTask substitutes each `{{ name }}` occurrence in a macro task
// template with the corresponding value from with, producing one concrete
// task. Binding is a plain textual substitution over the macro's own
// parameter set — distinct from the $expr/template evaluator used later
// for context/triggers/tasks interpolation, since `with` arguments have no
// fixed schema for a CEL environment to declare ahead of time.
func bindMacroTask(tmpl types.RawTask, with map[string]interface{}) (types.RawTask, error) {
	bound := tmpl
	bound.MacroRef = ""
	bound.With = nil

	id, err := substituteWith(tmpl.ID, with)
	if err != nil {
		return types.RawTask{}, err
	}
	bound.ID = id

	params, err := substituteWithValue(tmpl.Params, with)
	if err != nil {
		return types.RawTask{}, err
	}
	if m, ok := params.(map[string]interface{}); ok {
		bound.Params = m
	}

	return bound, nil
}

func substituteWith(s string, with map[string]interface{}) (string, error) {
	var out strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			out.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			return "", types.NewError(types.ErrTemplateParse, fmt.Sprintf("unterminated {{ in macro template %q", s), nil)
		}
		end += start

		out.WriteString(rest[:start])
		name := strings.TrimSpace(rest[start+2 : end])
		val, ok := with[name]
		if !ok {
			return "", types.NewError(types.ErrTemplateParse, fmt.Sprintf("macro parameter %q is not bound in with:", name), nil)
		}
		out.WriteString(fmt.Sprintf("%v", val))

		rest = rest[end+2:]
	}
	return out.String(), nil
}

func substituteWithValue(v interface{}, with map[string]interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return substituteWith(val, with)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			substituted, err := substituteWithValue(inner, with)
			if err != nil {
				return nil, err
			}
			out[k] = substituted
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			substituted, err := substituteWithValue(inner, with)
			if err != nil {
				return nil, err
			}
			out[i] = substituted
		}
		return out, nil
	default:
		return v, nil
	}
}
