// ABOUTME: End-to-end tests driving the real pipeline: schema load, transform,
// ABOUTME: scheduling, checkpointing, and resume against an in-memory filesystem

package integration

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
	"github.com/sarlalian/newton/internal/operator"
	"github.com/sarlalian/newton/internal/operator/builtin"
	"github.com/sarlalian/newton/internal/scheduler"
	"github.com/sarlalian/newton/internal/schema"
	"github.com/sarlalian/newton/internal/transform"
	"github.com/sarlalian/newton/pkg/types"
)

const twoStepWorkflow = `
version: "2.0"
mode: workflow_graph
workflow:
  context:
    greeting: world
  settings:
    entry_task: announce
    parallel_limit: 2
    max_time_seconds: 30
  tasks:
    - id: announce
      operator: set_context
      params:
        announced: true
      transitions:
        - to: finish
    - id: finish
      operator: noop
      terminal: success
`

func build(t *testing.T) (*types.Document, string, *expr.Evaluator, afero.Fs) {
	t.Helper()
	doc, err := schema.ParseString(twoStepWorkflow)
	require.NoError(t, err)

	ev, err := expr.New()
	require.NoError(t, err)

	result, err := transform.ApplyDefaultPipeline(doc, ev)
	require.NoError(t, err)

	return result.Document, result.WorkflowHash, ev, afero.NewMemMapFs()
}

func TestEndToEndRunCompletesViaRealOperators(t *testing.T) {
	doc, hash, ev, fs := build(t)

	checkpoints := checkpoint.New(fs, "/workspace")

	reg := operator.New()
	builtin.RegisterAll(reg, fs, noopLogger{}, nil, checkpoints)

	artifacts := artifact.New(fs, types.ArtifactStorageSettings{
		BasePath: "/artifacts", MaxInlineBytes: 1 << 20, MaxArtifactBytes: 1 << 20, MaxTotalBytes: 1 << 30,
	})
	executionID := uuid.New()

	sched := scheduler.New(doc, hash, reg, ev, artifacts, checkpoints, noopLogger{},
		"/workspace", executionID, types.ExecutionOverrides{})

	exec, err := sched.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionCompleted, exec.Status)
	require.Len(t, exec.TaskRuns, 2)
	assert.Equal(t, types.TaskSuccess, exec.TaskRuns[0].Status)
	assert.Equal(t, types.TaskSuccess, exec.TaskRuns[1].Status)

	persisted, err := checkpoints.LoadExecution(executionID)
	require.NoError(t, err)
	assert.Equal(t, hash, persisted.WorkflowHash)
}

// TestResumeRejectsRecomputedHashMismatch exercises WFG-CKPT-001: a
// checkpoint produced against one canonical document must refuse to
// resume against a differently-hashed one.
func TestResumeRejectsRecomputedHashMismatch(t *testing.T) {
	doc, hash, ev, fs := build(t)

	checkpoints := checkpoint.New(fs, "/workspace")

	reg := operator.New()
	builtin.RegisterAll(reg, fs, noopLogger{}, nil, checkpoints)
	artifacts := artifact.New(fs, types.ArtifactStorageSettings{
		BasePath: "/artifacts", MaxInlineBytes: 1 << 20, MaxArtifactBytes: 1 << 20, MaxTotalBytes: 1 << 30,
	})
	executionID := uuid.New()

	sched := scheduler.New(doc, hash, reg, ev, artifacts, checkpoints, noopLogger{},
		"/workspace", executionID, types.ExecutionOverrides{})
	_, err := sched.Run(context.Background(), nil)
	require.NoError(t, err)

	resumer := scheduler.New(doc, "different-hash", reg, ev, artifacts, checkpoints, noopLogger{},
		"/workspace", executionID, types.ExecutionOverrides{})
	_, err = resumer.Resume(context.Background())
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCheckpointHash))
}

type noopLogger struct{}

func (noopLogger) Debug() types.LogEvent  { return noopEvent{} }
func (noopLogger) Info() types.LogEvent   { return noopEvent{} }
func (noopLogger) Warn() types.LogEvent   { return noopEvent{} }
func (noopLogger) Error() types.LogEvent  { return noopEvent{} }
func (noopLogger) With() types.LogContext { return noopContext{} }

type noopEvent struct{}

func (noopEvent) Str(string, string) types.LogEvent                 { return noopEvent{} }
func (noopEvent) Int(string, int) types.LogEvent                    { return noopEvent{} }
func (noopEvent) Dur(string, time.Duration) types.LogEvent          { return noopEvent{} }
func (noopEvent) Err(error) types.LogEvent                          { return noopEvent{} }
func (noopEvent) Bool(string, bool) types.LogEvent                  { return noopEvent{} }
func (noopEvent) Any(string, interface{}) types.LogEvent            { return noopEvent{} }
func (noopEvent) Msg(string)                                        {}
func (noopEvent) Msgf(string, ...interface{})                       {}

type noopContext struct{}

func (noopContext) Str(string, string) types.LogContext { return noopContext{} }
func (noopContext) Logger() types.Logger                { return noopLogger{} }
