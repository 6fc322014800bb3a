package checkpoint

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarlalian/newton/pkg/types"
)

func TestWriteAndLoadExecutionRoundTrips(t *testing.T) {
	store := New(afero.NewMemMapFs(), "/workspace")
	execID := uuid.New()
	exec := &types.Execution{
		ID:           execID,
		WorkflowHash: "abc123",
		Status:       types.ExecutionRunning,
		StartedAt:    time.Now(),
	}

	require.NoError(t, store.WriteExecution(exec))

	loaded, err := store.LoadExecution(execID)
	require.NoError(t, err)
	assert.Equal(t, exec.WorkflowHash, loaded.WorkflowHash)
	assert.Equal(t, exec.Status, loaded.Status)
}

func TestWriteAndLoadCheckpointRoundTrips(t *testing.T) {
	store := New(afero.NewMemMapFs(), "/workspace")
	execID := uuid.New()
	state := types.NewSchedulerState()
	state.WorkflowHash = "hash-1"
	state.ReadyQueue = []string{"start"}

	require.NoError(t, store.WriteCheckpoint(execID, state))

	loaded, err := store.LoadCheckpoint(execID)
	require.NoError(t, err)
	assert.Equal(t, []string{"start"}, loaded.ReadyQueue)
	assert.Equal(t, "hash-1", loaded.WorkflowHash)
}

func TestResumeRejectsHashMismatch(t *testing.T) {
	store := New(afero.NewMemMapFs(), "/workspace")
	execID := uuid.New()
	exec := &types.Execution{ID: execID, WorkflowHash: "original-hash", Status: types.ExecutionRunning}
	require.NoError(t, store.WriteExecution(exec))
	require.NoError(t, store.WriteCheckpoint(execID, types.NewSchedulerState()))

	_, _, err := store.Resume(execID, "different-hash")
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCheckpointHash))
}

func TestResumeAcceptsMatchingHash(t *testing.T) {
	store := New(afero.NewMemMapFs(), "/workspace")
	execID := uuid.New()
	exec := &types.Execution{ID: execID, WorkflowHash: "same-hash", Status: types.ExecutionRunning}
	require.NoError(t, store.WriteExecution(exec))
	require.NoError(t, store.WriteCheckpoint(execID, types.NewSchedulerState()))

	loadedExec, _, err := store.Resume(execID, "same-hash")
	require.NoError(t, err)
	assert.Equal(t, execID, loadedExec.ID)
}

func TestAppendAuditAppendsLines(t *testing.T) {
	store := New(afero.NewMemMapFs(), "/workspace")
	execID := uuid.New()

	require.NoError(t, store.AppendAudit(execID, AuditRecord{Timestamp: time.Now(), TaskID: "approve", Operator: "human_approval", Detail: map[string]bool{"approved": true}}))
	require.NoError(t, store.AppendAudit(execID, AuditRecord{Timestamp: time.Now(), TaskID: "approve", Operator: "human_approval", Detail: map[string]bool{"approved": false}}))

	data, err := afero.ReadFile(store.fs, store.Dir(execID)+"/audit.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 2, countLines(string(data)))
}

func countLines(s string) int {
	n := 0
	for _, c := range s {
		if c == '\n' {
			n++
		}
	}
	return n
}
