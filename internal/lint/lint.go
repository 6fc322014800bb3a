// ABOUTME: Advisory lint pass over a parsed (but not necessarily valid) workflow document
// ABOUTME: Surfaces the same WFG-LINT-NNN codes as the fatal passes, as non-aborting findings

package lint

import (
	"fmt"
	"sort"

	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/pkg/types"
)

// LintSeverity ranks a finding for sort order and display.
type LintSeverity string

const (
	SeverityError   LintSeverity = "error"
	SeverityWarning LintSeverity = "warning"
	SeverityInfo    LintSeverity = "info"
)

func severityRank(s LintSeverity) int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	default:
		return 1
	}
}

// LintResult is one advisory finding: a stable code, a severity, a
// human-readable message, a task-id location, and a fix suggestion.
type LintResult struct {
	Code       types.ErrorCode `json:"code"`
	Severity   LintSeverity    `json:"severity"`
	Message    string          `json:"message"`
	Location   string          `json:"location"`
	Suggestion string          `json:"suggestion"`
}

// Rule inspects a document and reports zero or more findings. Rules never
// return an error: a document that can't be linted at all is a fatal
// schema-loader concern, not a lint concern.
type Rule func(doc *types.Document, eval *expr.Evaluator) []LintResult

// LintRegistry runs every registered rule and returns a stably sorted
// result set (severity descending, then code ascending, then location
// ascending) so repeated runs over the same document produce identical
// output.
type LintRegistry struct {
	rules []Rule
}

// New builds a registry with every built-in rule registered.
func New() *LintRegistry {
	return &LintRegistry{rules: []Rule{
		lintDuplicateTaskIDs,
		lintUnknownTransitionTargets,
		lintAssertCompletedUnknownRequire,
		lintExpressions,
		lintShellNotAllowed,
	}}
}

// Run lints doc against every registered rule.
func (r *LintRegistry) Run(doc *types.Document, eval *expr.Evaluator) []LintResult {
	var results []LintResult
	for _, rule := range r.rules {
		results = append(results, rule(doc, eval)...)
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if ra, rb := severityRank(a.Severity), severityRank(b.Severity); ra != rb {
			return ra > rb
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Location < b.Location
	})
	return results
}

// knownTaskIDs collects every concrete (non-macro-placeholder) task id in
// document order. Duplicate ids are still "known" — WFG-LINT-001 reports
// the duplication itself; other rules only care whether an id exists.
func knownTaskIDs(doc *types.Document) map[string]bool {
	ids := make(map[string]bool, len(doc.Workflow.Tasks))
	for _, task := range doc.Workflow.Tasks {
		if task.IsMacroPlaceholder() || task.ID == "" {
			continue
		}
		ids[task.ID] = true
	}
	return ids
}

func lintDuplicateTaskIDs(doc *types.Document, _ *expr.Evaluator) []LintResult {
	counts := make(map[string]int)
	for _, task := range doc.Workflow.Tasks {
		if task.IsMacroPlaceholder() || task.ID == "" {
			continue
		}
		counts[task.ID]++
	}

	var results []LintResult
	for id, n := range counts {
		if n <= 1 {
			continue
		}
		results = append(results, LintResult{
			Code:       types.ErrLintDuplicateID,
			Severity:   SeverityError,
			Message:    fmt.Sprintf("duplicate task id '%s' found %d times", id, n),
			Location:   id,
			Suggestion: "rename tasks so every task id is unique",
		})
	}
	return results
}

func lintUnknownTransitionTargets(doc *types.Document, _ *expr.Evaluator) []LintResult {
	known := knownTaskIDs(doc)

	var results []LintResult
	for _, task := range doc.Workflow.Tasks {
		if task.IsMacroPlaceholder() {
			continue
		}
		for _, t := range task.Transitions {
			if t.To == "" || known[t.To] {
				continue
			}
			results = append(results, LintResult{
				Code:       types.ErrLintUnknownTarget,
				Severity:   SeverityError,
				Message:    fmt.Sprintf("transition from '%s' references unknown target '%s'", task.ID, t.To),
				Location:   task.ID,
				Suggestion: "point transitions to an existing task id",
			})
		}
	}
	return results
}

func lintAssertCompletedUnknownRequire(doc *types.Document, _ *expr.Evaluator) []LintResult {
	known := knownTaskIDs(doc)

	var results []LintResult
	for _, task := range doc.Workflow.Tasks {
		if task.IsMacroPlaceholder() || task.Operator != "assert_completed" {
			continue
		}
		list, _ := task.Params["require"].([]interface{})
		for _, v := range list {
			id, ok := v.(string)
			if !ok || known[id] {
				continue
			}
			results = append(results, LintResult{
				Code:       types.ErrLintUnknownAssertOn,
				Severity:   SeverityError,
				Message:    fmt.Sprintf("assert_completed in '%s' references unknown task '%s'", task.ID, id),
				Location:   task.ID,
				Suggestion: "update 'require' to include only valid task ids",
			})
		}
	}
	return results
}

// lintExpressions walks every `$expr` node reachable from a task — its
// params tree and its transitions' `when` clauses — checking syntax
// (WFG-LINT-005) and, for transition `when` clauses specifically, that
// the expression's statically inferred type is boolean (WFG-LINT-006).
func lintExpressions(doc *types.Document, eval *expr.Evaluator) []LintResult {
	var results []LintResult

	for _, task := range doc.Workflow.Tasks {
		if task.IsMacroPlaceholder() {
			continue
		}
		walkExprNodes(task.Params, func(source string) {
			if err := eval.CheckSyntax(source); err != nil {
				results = append(results, lintParseFailure(task.ID, source, err))
			}
		})

		for _, t := range task.Transitions {
			if t.When == nil {
				continue
			}
			source := t.When.Expr
			if err := eval.CheckSyntax(source); err != nil {
				results = append(results, lintParseFailure(task.ID, source, err))
				continue
			}
			if typeName, ok := eval.StaticResultType(source); ok && typeName != "bool" {
				results = append(results, LintResult{
					Code:       types.ErrTransitionNotBool,
					Severity:   SeverityError,
					Message:    fmt.Sprintf("$expr in transition 'when' for task '%s' does not evaluate to bool", task.ID),
					Location:   task.ID,
					Suggestion: "ensure transition 'when' expressions return true/false",
				})
			}
		}
	}
	return results
}

func lintParseFailure(taskID, source string, err error) LintResult {
	return LintResult{
		Code:       types.ErrExprParse,
		Severity:   SeverityError,
		Message:    fmt.Sprintf("$expr parse failure for '%s': %v", source, err),
		Location:   taskID,
		Suggestion: "fix syntax so the expression compiles",
	}
}

// walkExprNodes recursively visits every `{"$expr": "..."}` node in a
// params tree, invoking visit with its source text.
func walkExprNodes(v interface{}, visit func(source string)) {
	switch val := v.(type) {
	case map[string]interface{}:
		if len(val) == 1 {
			if source, ok := val["$expr"].(string); ok {
				visit(source)
				return
			}
		}
		for _, inner := range val {
			walkExprNodes(inner, visit)
		}
	case []interface{}:
		for _, inner := range val {
			walkExprNodes(inner, visit)
		}
	}
}

func lintShellNotAllowed(doc *types.Document, _ *expr.Evaluator) []LintResult {
	if doc.Workflow.Settings.CommandOperator.AllowShell {
		return nil
	}

	var results []LintResult
	for _, task := range doc.Workflow.Tasks {
		if task.IsMacroPlaceholder() || task.Operator != "command" {
			continue
		}
		script, _ := task.Params["script"].(string)
		if script == "" {
			continue
		}
		results = append(results, LintResult{
			Code:       types.ErrLintShellNotAllowed,
			Severity:   SeverityError,
			Message:    "command operator uses 'script' but settings.command_operator.allow_shell is not true",
			Location:   task.ID,
			Suggestion: "set settings.command_operator.allow_shell=true to opt in explicitly",
		})
	}
	return results
}
