package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/internal/schema"
	"github.com/sarlalian/newton/pkg/types"
)

func mustEvaluator(t *testing.T) *expr.Evaluator {
	t.Helper()
	ev, err := expr.New()
	require.NoError(t, err)
	return ev
}

func parse(t *testing.T, yamlDoc string) *types.Document {
	t.Helper()
	doc, err := schema.ParseString(yamlDoc)
	require.NoError(t, err)
	return doc
}

func TestMacroExpansionGeneratesUniqueIDs(t *testing.T) {
	doc := parse(t, `
version: "2.0"
mode: workflow_graph
macros:
  - name: gate
    tasks:
      - id: "{{ prefix }}_scan"
        operator: noop
workflow:
  settings:
    entry_task: start_scan
  tasks:
    - macro: gate
      with:
        prefix: start
`)
	result, err := ApplyDefaultPipeline(doc, mustEvaluator(t))
	require.NoError(t, err)

	var ids []string
	for _, task := range result.Document.Workflow.Tasks {
		ids = append(ids, task.ID)
	}
	assert.Contains(t, ids, "start_scan")
}

func TestMacroExpansionIDCollision(t *testing.T) {
	doc := parse(t, `
version: "2.0"
mode: workflow_graph
macros:
  - name: gate
    tasks:
      - id: "dup"
        operator: noop
workflow:
  settings:
    entry_task: dup
  tasks:
    - macro: gate
      with: {}
    - id: dup
      operator: noop
`)
	_, err := ApplyDefaultPipeline(doc, mustEvaluator(t))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrMacroDuplicateID))
}

func TestIncludeIfFalseRemovesTask(t *testing.T) {
	doc := parse(t, `
version: "2.0"
mode: workflow_graph
workflow:
  settings:
    entry_task: keep
  tasks:
    - id: keep
      operator: noop
      transitions:
        - to: maybe
    - id: maybe
      operator: noop
      include_if:
        $expr: "false"
`)
	result, err := ApplyDefaultPipeline(doc, mustEvaluator(t))
	require.NoError(t, err)

	for _, task := range result.Document.Workflow.Tasks {
		assert.NotEqual(t, "maybe", task.ID)
		if task.ID == "keep" {
			for _, tr := range task.Transitions {
				assert.NotEqual(t, "maybe", tr.To)
			}
		}
	}
}

func TestIncludeIfCannotReferenceTasks(t *testing.T) {
	doc := parse(t, `
version: "2.0"
mode: workflow_graph
workflow:
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
      include_if:
        $expr: "tasks.start.status == 'success'"
`)
	_, err := ApplyDefaultPipeline(doc, mustEvaluator(t))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrIncludeIfRuntime))
}

func TestTemplateInterpolation(t *testing.T) {
	doc := parse(t, `
version: "2.0"
mode: workflow_graph
triggers:
  type: manual
  schema_version: "1"
  payload:
    pr_number: 42
workflow:
  context:
    env: dev
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
      params:
        msg: "PR {{ triggers.pr_number }} env={{ context.env }}"
`)
	result, err := ApplyDefaultPipeline(doc, mustEvaluator(t))
	require.NoError(t, err)

	var start *types.RawTask
	for i := range result.Document.Workflow.Tasks {
		if result.Document.Workflow.Tasks[i].ID == "start" {
			start = &result.Document.Workflow.Tasks[i]
		}
	}
	require.NotNil(t, start)
	assert.Equal(t, "PR 42 env=dev", start.Params["msg"])
}

func TestTemplateParseError(t *testing.T) {
	doc := parse(t, `
version: "2.0"
mode: workflow_graph
workflow:
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
      params:
        msg: "{{ context.foo "
`)
	_, err := ApplyDefaultPipeline(doc, mustEvaluator(t))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrTemplateParse))
}

func TestExprPrecompileReportsParseError(t *testing.T) {
	doc := parse(t, `
version: "2.0"
mode: workflow_graph
workflow:
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
      params:
        bad:
          $expr: "1 +"
`)
	_, err := ApplyDefaultPipeline(doc, mustEvaluator(t))
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrExprParse))
}

func TestTransformOutputIsDeterministic(t *testing.T) {
	yamlDoc := `
version: "2.0"
mode: workflow_graph
macros:
  - name: gate
    tasks:
      - id: "{{ prefix }}_task"
        operator: noop
        params:
          msg: "{{ prefix }}"
workflow:
  settings:
    entry_task: a_task
  tasks:
    - macro: gate
      with:
        prefix: a
`
	docA := parse(t, yamlDoc)
	docB := parse(t, yamlDoc)

	evalA := mustEvaluator(t)
	evalB := mustEvaluator(t)

	resultA, err := ApplyDefaultPipeline(docA, evalA)
	require.NoError(t, err)
	resultB, err := ApplyDefaultPipeline(docB, evalB)
	require.NoError(t, err)

	assert.Equal(t, resultA.WorkflowHash, resultB.WorkflowHash)
}
