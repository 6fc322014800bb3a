package lint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/internal/schema"
	"github.com/sarlalian/newton/pkg/types"
)

func TestLintResultsAreStablySorted(t *testing.T) {
	doc, err := schema.ParseStringLenient(`
version: "2.0"
mode: workflow_graph
workflow:
  context: {}
  settings:
    entry_task: start
    max_time_seconds: 60
    parallel_limit: 1
    max_task_iterations: 3
    max_workflow_iterations: 10
  tasks:
    - id: start
      operator: command
      params:
        script: "echo hello"
      transitions:
        - to: missing
          priority: 10
          when:
            $expr: "1 +"
    - id: start
      operator: noop
      params: {}
      transitions:
        - to: done
          priority: 1
          when:
            $expr: "1 + 1"
    - id: done
      operator: assert_completed
      params:
        require: ["ghost"]
`)
	require.NoError(t, err)

	ev, err := expr.New()
	require.NoError(t, err)

	results := New().Run(doc, ev)
	require.NotEmpty(t, results)

	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		prevRank, curRank := severityRank(prev.Severity), severityRank(cur.Severity)
		require.GreaterOrEqualf(t, prevRank, curRank, "severity must sort descending at index %d", i)
		if prevRank == curRank {
			require.LessOrEqualf(t, prev.Code, cur.Code, "code must sort ascending within a severity at index %d", i)
			if prev.Code == cur.Code {
				require.LessOrEqualf(t, prev.Location, cur.Location, "location must sort ascending within a code at index %d", i)
			}
		}
	}

	codes := make([]types.ErrorCode, len(results))
	for i, r := range results {
		codes[i] = r.Code
	}
	assert.Equal(t, []types.ErrorCode{
		types.ErrLintDuplicateID,
		types.ErrLintUnknownTarget,
		types.ErrLintUnknownAssertOn,
		types.ErrExprParse,
		types.ErrTransitionNotBool,
		types.ErrLintShellNotAllowed,
	}, codes)

	for _, r := range results {
		assert.Equal(t, SeverityError, r.Severity)
		assert.NotEmpty(t, r.Suggestion)
	}
}

func TestLintShellOptInRuleIsEnforced(t *testing.T) {
	doc, err := schema.ParseStringLenient(`
version: "2.0"
mode: workflow_graph
workflow:
  context: {}
  settings:
    entry_task: start
    max_time_seconds: 60
    parallel_limit: 1
    max_task_iterations: 3
    max_workflow_iterations: 10
    command_operator:
      allow_shell: false
  tasks:
    - id: start
      operator: command
      params:
        script: "echo hello"
`)
	require.NoError(t, err)

	ev, err := expr.New()
	require.NoError(t, err)

	results := New().Run(doc, ev)
	found := false
	for _, r := range results {
		if r.Code == types.ErrLintShellNotAllowed {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLintShellAllowedSuppressesFinding(t *testing.T) {
	doc, err := schema.ParseStringLenient(`
version: "2.0"
workflow:
  settings:
    entry_task: start
    command_operator:
      allow_shell: true
  tasks:
    - id: start
      operator: command
      params:
        script: "echo hello"
`)
	require.NoError(t, err)

	ev, err := expr.New()
	require.NoError(t, err)

	results := New().Run(doc, ev)
	for _, r := range results {
		assert.NotEqual(t, types.ErrLintShellNotAllowed, r.Code)
	}
}

func TestLintCleanDocumentProducesNoFindings(t *testing.T) {
	doc, err := schema.ParseString(`
version: "1"
workflow:
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
      transitions:
        - to: done
          when:
            $expr: "true"
    - id: done
      operator: noop
`)
	require.NoError(t, err)

	ev, err := expr.New()
	require.NoError(t, err)

	assert.Empty(t, New().Run(doc, ev))
}
