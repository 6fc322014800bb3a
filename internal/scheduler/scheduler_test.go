package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarlalian/newton/internal/artifact"
	"github.com/sarlalian/newton/internal/checkpoint"
	"github.com/sarlalian/newton/internal/expr"
	"github.com/sarlalian/newton/internal/schema"
	"github.com/sarlalian/newton/internal/transform"
	"github.com/sarlalian/newton/pkg/types"
)

type noopOperator struct{}

func (noopOperator) Name() string { return "noop" }
func (noopOperator) ValidateParams(map[string]interface{}, *types.Settings) error { return nil }
func (noopOperator) Execute(context.Context, map[string]interface{}, types.ExecutionContext) (interface{}, error) {
	return map[string]interface{}{"ok": true}, nil
}

type fakeRegistry struct{ ops map[string]types.Operator }

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{ops: map[string]types.Operator{"noop": noopOperator{}}}
}

func (f *fakeRegistry) Get(name string) (types.Operator, bool) {
	op, ok := f.ops[name]
	return op, ok
}

func buildScheduler(t *testing.T, yamlDoc string, overrides types.ExecutionOverrides) *Scheduler {
	t.Helper()
	doc, err := schema.ParseString(yamlDoc)
	require.NoError(t, err)

	ev, err := expr.New()
	require.NoError(t, err)

	result, err := transform.ApplyDefaultPipeline(doc, ev)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	artifacts := artifact.New(fs, types.ArtifactStorageSettings{
		BasePath: "/artifacts", MaxInlineBytes: 1 << 20, MaxArtifactBytes: 1 << 20, MaxTotalBytes: 1 << 30,
	})
	checkpoints := checkpoint.New(fs, "/workspace")

	return New(result.Document, result.WorkflowHash, newFakeRegistry(), ev, artifacts, checkpoints,
		noopLogger{}, "/workspace", uuid.New(), overrides)
}

func TestTransitionsDeduplicateTargetsPerTick(t *testing.T) {
	s := buildScheduler(t, `
version: "2.0"
mode: workflow_graph
workflow:
  settings:
    entry_task: start
    parallel_limit: 1
    max_time_seconds: 60
    max_task_iterations: 5
    max_workflow_iterations: 10
  tasks:
    - id: start
      operator: noop
      transitions:
        - to: branch_a
          when:
            $expr: "true"
        - to: branch_b
          when:
            $expr: "true"
    - id: branch_a
      operator: noop
      transitions:
        - to: done
          when:
            $expr: "true"
    - id: branch_b
      operator: noop
      transitions:
        - to: done
          when:
            $expr: "true"
    - id: done
      operator: noop
`, types.ExecutionOverrides{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exec, err := s.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionCompleted, exec.Status)

	doneRuns := 0
	for _, tr := range exec.TaskRuns {
		if tr.TaskID == "done" {
			doneRuns++
			assert.Equal(t, 1, tr.RunSeq)
		}
	}
	assert.Equal(t, 1, doneRuns)
}

func TestLoopHitsTaskIterationCapFirst(t *testing.T) {
	s := buildScheduler(t, `
version: "2.0"
mode: workflow_graph
workflow:
  settings:
    entry_task: loop_task
    parallel_limit: 1
    max_time_seconds: 60
    max_task_iterations: 1
    max_workflow_iterations: 10
  tasks:
    - id: loop_task
      operator: noop
      transitions:
        - to: loop_task
          when:
            $expr: "true"
`, types.ExecutionOverrides{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.Run(ctx, nil)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrTaskIterationCap))
}

func TestResumeContinuesFromPersistedCheckpoint(t *testing.T) {
	yamlDoc := `
version: "2.0"
mode: workflow_graph
workflow:
  settings:
    entry_task: first
    parallel_limit: 1
    max_time_seconds: 60
  tasks:
    - id: first
      operator: noop
      transitions:
        - to: second
    - id: second
      operator: noop
      terminal: success
`
	doc, err := schema.ParseString(yamlDoc)
	require.NoError(t, err)
	ev, err := expr.New()
	require.NoError(t, err)
	result, err := transform.ApplyDefaultPipeline(doc, ev)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	artifacts := artifact.New(fs, types.ArtifactStorageSettings{
		BasePath: "/artifacts", MaxInlineBytes: 1 << 20, MaxArtifactBytes: 1 << 20, MaxTotalBytes: 1 << 30,
	})
	checkpoints := checkpoint.New(fs, "/workspace")
	executionID := uuid.New()

	first := New(result.Document, result.WorkflowHash, newFakeRegistry(), ev, artifacts, checkpoints,
		noopLogger{}, "/workspace", executionID, types.ExecutionOverrides{})
	exec, err := first.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, types.ExecutionCompleted, exec.Status)

	resumer := New(result.Document, result.WorkflowHash, newFakeRegistry(), ev, artifacts, checkpoints,
		noopLogger{}, "/workspace", executionID, types.ExecutionOverrides{})
	resumed, err := resumer.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionCompleted, resumed.Status)
	assert.Equal(t, exec.ID, resumed.ID)
}

func TestResumeFailsOnWorkflowHashMismatch(t *testing.T) {
	s := buildScheduler(t, `
version: "2.0"
mode: workflow_graph
workflow:
  settings:
    entry_task: start
  tasks:
    - id: start
      operator: noop
`, types.ExecutionOverrides{})

	_, err := s.Run(context.Background(), nil)
	require.NoError(t, err)

	other := New(s.doc, "not-the-real-hash", s.registry, s.eval, s.artifacts, s.checkpoints,
		noopLogger{}, s.workspacePath, s.executionID, types.ExecutionOverrides{})
	_, err = other.Resume(context.Background())
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCheckpointHash))
}

// noopLogger satisfies types.Logger with no-op methods, avoiding a test
// dependency on the zerolog-backed logger for scheduler unit tests.
type noopLogger struct{}

func (noopLogger) Debug() types.LogEvent { return noopEvent{} }
func (noopLogger) Info() types.LogEvent  { return noopEvent{} }
func (noopLogger) Warn() types.LogEvent  { return noopEvent{} }
func (noopLogger) Error() types.LogEvent { return noopEvent{} }
func (noopLogger) With() types.LogContext { return noopContext{} }

type noopEvent struct{}

func (noopEvent) Str(string, string) types.LogEvent                { return noopEvent{} }
func (noopEvent) Int(string, int) types.LogEvent                   { return noopEvent{} }
func (noopEvent) Dur(string, time.Duration) types.LogEvent         { return noopEvent{} }
func (noopEvent) Err(error) types.LogEvent                         { return noopEvent{} }
func (noopEvent) Bool(string, bool) types.LogEvent                 { return noopEvent{} }
func (noopEvent) Any(string, interface{}) types.LogEvent           { return noopEvent{} }
func (noopEvent) Msg(string)                                       {}
func (noopEvent) Msgf(string, ...interface{})                      {}

type noopContext struct{}

func (noopContext) Str(string, string) types.LogContext { return noopContext{} }
func (noopContext) Logger() types.Logger                { return noopLogger{} }
