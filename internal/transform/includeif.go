// ABOUTME: include_if pruning step: drops tasks whose include_if evaluates
// ABOUTME: false and any transitions that targeted them

package transform

import (
	"fmt"
	"regexp"

	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/pkg/types"
)

// tasksReference matches a bare `tasks.` or `tasks[` reference, which
// include_if may never use: task run status isn't known until after the
// scheduler has decided which tasks are even reachable, so gating
// reachability on it would be circular.
var tasksReference = regexp.MustCompile(`\btasks[.\[]`)

func pruneIncludeIf(doc *types.Document, eval *expr.Evaluator) error {
	model := types.ReadModel{Context: doc.Workflow.Context, Triggers: triggerVars(doc)}

	kept := make([]types.RawTask, 0, len(doc.Workflow.Tasks))
	removed := make(map[string]bool)

	for _, task := range doc.Workflow.Tasks {
		if task.IncludeIf == nil {
			kept = append(kept, task)
			continue
		}
		if tasksReference.MatchString(task.IncludeIf.Expr) {
			return types.NewLocatedError(types.ErrIncludeIfRuntime,
				fmt.Sprintf("include_if for task %q may not reference tasks.*", task.ID),
				"workflow.tasks["+task.ID+"].include_if", nil)
		}

		keep, err := eval.EvalBool(task.IncludeIf.Expr, model)
		if err != nil {
			return err
		}
		if keep {
			kept = append(kept, task)
		} else {
			removed[task.ID] = true
		}
	}

	for i := range kept {
		filtered := kept[i].Transitions[:0]
		for _, t := range kept[i].Transitions {
			if !removed[t.To] {
				filtered = append(filtered, t)
			}
		}
		kept[i].Transitions = filtered
	}

	doc.Workflow.Tasks = kept
	return nil
}

// triggerVars flattens the document's declared trigger payload (if any)
// into the `triggers.<key>` namespace expressions see (spec.md §3, §4.3).
func triggerVars(doc *types.Document) map[string]interface{} {
	if doc.Triggers == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(doc.Triggers.Payload))
	for k, v := range doc.Triggers.Payload {
		out[k] = v
	}
	return out
}
