package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarlalian/newton/pkg/types"
)

const minimalDoc = `
version: "1"
workflow:
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
`

func TestParseMinimalDocument(t *testing.T) {
	doc, err := ParseString(minimalDoc)
	require.NoError(t, err)
	assert.Equal(t, "workflow_graph", doc.Mode)
	assert.Equal(t, "start", doc.Workflow.Settings.EntryTask)
	assert.Equal(t, 4, doc.Workflow.Settings.ParallelLimit)
	assert.Equal(t, 1, doc.Workflow.Settings.MaxTaskIterations)
	assert.Equal(t, 100, doc.Workflow.Settings.MaxWorkflowIterations)
	require.Len(t, doc.Workflow.Tasks, 1)
	assert.Equal(t, "noop", doc.Workflow.Tasks[0].Operator)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := ParseString(`
version: "1"
bogus_field: true
workflow:
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
`)
	require.Error(t, err)
}

func TestParseMissingVersion(t *testing.T) {
	_, err := ParseString(`
workflow:
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
`)
	require.Error(t, err)
}

func TestParseMissingEntryTask(t *testing.T) {
	_, err := ParseString(`
version: "1"
workflow:
  tasks:
    - id: start
      operator: noop
`)
	require.Error(t, err)
}

func TestParseUnresolvableEntryTask(t *testing.T) {
	_, err := ParseString(`
version: "1"
workflow:
  settings:
    entry_task: missing
  tasks:
    - id: start
      operator: noop
`)
	require.Error(t, err)
}

func TestParseDuplicateTaskID(t *testing.T) {
	_, err := ParseString(`
version: "1"
workflow:
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
    - id: start
      operator: noop
`)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrLintDuplicateID))
}

func TestParseUnknownTransitionTarget(t *testing.T) {
	_, err := ParseString(`
version: "1"
workflow:
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
      transitions:
        - to: ghost
`)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrLintUnknownTarget))
}

func TestParseNoTasks(t *testing.T) {
	_, err := ParseString(`
version: "1"
workflow:
  settings:
    entry_task: start
  tasks: []
`)
	require.Error(t, err)
}

func TestParseRequiredTriggersWithoutSchema(t *testing.T) {
	_, err := ParseString(`
version: "1"
workflow:
  settings:
    entry_task: start
    required_triggers: ["webhook"]
  tasks:
    - id: start
      operator: noop
`)
	require.Error(t, err)
}

func TestParseFileNotFound(t *testing.T) {
	_, err := ParseFileFromPath("/nonexistent/workflow.yaml")
	require.Error(t, err)
}

func TestMacroPlaceholderSkipsIDValidation(t *testing.T) {
	doc, err := ParseString(`
version: "1"
workflow:
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
    - macro: some_macro
      with:
        foo: bar
`)
	require.NoError(t, err)
	require.Len(t, doc.Workflow.Tasks, 2)
	assert.True(t, doc.Workflow.Tasks[1].IsMacroPlaceholder())
}
