// ABOUTME: Execution journal and scheduler state snapshot persistence
// ABOUTME: Atomic temp-file+rename writes under <workspace>/.newton/state/workflows/<execution_id>/

package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/sarlalian/newton/pkg/types"
)

const (
	executionFile  = "execution.json"
	checkpointFile = "checkpoint.json"
	auditFile      = "audit.jsonl"

	osAppendFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY
)

// Store persists and restores execution/checkpoint journals. Writes for a
// given execution are serialized through mu, matching the "checkpoint
// writer owned by the supervisor" contract (spec.md §5).
type Store struct {
	fs            afero.Fs
	workspacePath string

	mu sync.Mutex
}

// New builds a checkpoint Store rooted at workspacePath.
func New(fs afero.Fs, workspacePath string) *Store {
	return &Store{fs: fs, workspacePath: workspacePath}
}

// Dir returns the state directory for an execution id.
func (s *Store) Dir(executionID uuid.UUID) string {
	return filepath.Join(s.workspacePath, ".newton", "state", "workflows", executionID.String())
}

// WriteExecution atomically persists the execution record.
func (s *Store) WriteExecution(exec *types.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSONAtomic(filepath.Join(s.Dir(exec.ID), executionFile), exec)
}

// WriteCheckpoint atomically persists the scheduler state snapshot.
func (s *Store) WriteCheckpoint(executionID uuid.UUID, state *types.SchedulerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSONAtomic(filepath.Join(s.Dir(executionID), checkpointFile), state)
}

func (s *Store) writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: encoding %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: creating %s: %w", dir, err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: writing temp file for %s: %w", path, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("checkpoint: renaming into place %s: %w", path, err)
	}
	return nil
}

// LoadExecution reads the persisted execution record.
func (s *Store) LoadExecution(executionID uuid.UUID) (*types.Execution, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.Dir(executionID), executionFile))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: reading execution record: %w", err)
	}
	var exec types.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, fmt.Errorf("checkpoint: decoding execution record: %w", err)
	}
	return &exec, nil
}

// LoadCheckpoint reads the persisted scheduler state snapshot.
func (s *Store) LoadCheckpoint(executionID uuid.UUID) (*types.SchedulerState, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.Dir(executionID), checkpointFile))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: reading scheduler state: %w", err)
	}
	state := types.NewSchedulerState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("checkpoint: decoding scheduler state: %w", err)
	}
	return state, nil
}

// Resume loads the persisted execution and checkpoint for executionID,
// verifying the persisted workflow hash matches recomputedHash
// (spec.md §4.6). A mismatch fails WFG-CKPT-001.
func (s *Store) Resume(executionID uuid.UUID, recomputedHash string) (*types.Execution, *types.SchedulerState, error) {
	exec, err := s.LoadExecution(executionID)
	if err != nil {
		return nil, nil, err
	}
	if exec.WorkflowHash != recomputedHash {
		return nil, nil, types.NewError(types.ErrCheckpointHash,
			fmt.Sprintf("persisted workflow hash %s does not match recomputed hash %s", exec.WorkflowHash, recomputedHash), nil)
	}
	state, err := s.LoadCheckpoint(executionID)
	if err != nil {
		return nil, nil, err
	}
	if state.WorkflowHash != "" && state.WorkflowHash != recomputedHash {
		return nil, nil, types.NewError(types.ErrCheckpointHash,
			fmt.Sprintf("checkpoint workflow hash %s does not match recomputed hash %s", state.WorkflowHash, recomputedHash), nil)
	}
	return exec, state, nil
}

// AppendAudit appends one JSON line to this execution's audit.jsonl. Calls
// are serialized through mu, matching the "appended, never rewritten,
// serialized per execution" contract (spec.md §4.6).
func (s *Store) AppendAudit(executionID uuid.UUID, record interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("checkpoint: encoding audit record: %w", err)
	}

	dir := s.Dir(executionID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: creating %s: %w", dir, err)
	}

	path := filepath.Join(dir, auditFile)
	f, err := s.fs.OpenFile(path, osAppendFlags, 0o644)
	if err != nil {
		return fmt.Errorf("checkpoint: opening audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("checkpoint: appending audit record: %w", err)
	}
	return nil
}

// AuditRecord is one human-in-the-loop decision line in audit.jsonl.
type AuditRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	TaskID    string      `json:"task_id"`
	Operator  string      `json:"operator"`
	Detail    interface{} `json:"detail"`
}
