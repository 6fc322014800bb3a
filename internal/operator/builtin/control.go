// ABOUTME: ReadControlFile and AssertCompleted operators
// ABOUTME: Let a workflow branch on external signal files and on prior task outcomes

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/sarlalian/newton/pkg/types"
)

// ReadControlFileOperator reads a small JSON "control file" written by an
// external process into the execution workspace and returns its decoded
// contents as the task's output, so later `$expr`/`when` clauses can
// branch on it.
type ReadControlFileOperator struct {
	fs afero.Fs
}

// NewReadControlFileOperator constructs the control-file operator over fs.
func NewReadControlFileOperator(fs afero.Fs) *ReadControlFileOperator {
	return &ReadControlFileOperator{fs: fs}
}

func (o *ReadControlFileOperator) Name() string { return "read_control_file" }

func (o *ReadControlFileOperator) ValidateParams(raw map[string]interface{}, _ *types.Settings) error {
	path, ok := raw["path"].(string)
	if !ok || path == "" {
		return types.NewError(types.ErrControlFileInvalid, "read_control_file requires a non-empty 'path'", nil)
	}
	if strings.Contains(path, "..") {
		return types.NewError(types.ErrControlFileInvalid, "read_control_file 'path' may not contain '..'", nil)
	}
	return nil
}

func (o *ReadControlFileOperator) Execute(_ context.Context, raw map[string]interface{}, execCtx types.ExecutionContext) (interface{}, error) {
	relPath := raw["path"].(string)
	fullPath := filepath.Join(execCtx.WorkspacePath, relPath)

	data, err := afero.ReadFile(o.fs, fullPath)
	if err != nil {
		return nil, types.NewError(types.ErrControlFileInvalid, fmt.Sprintf("reading control file %q", relPath), err)
	}

	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, types.NewError(types.ErrControlFileInvalid, fmt.Sprintf("control file %q is not valid JSON", relPath), err)
	}

	return decoded, nil
}

// AssertCompletedOperator fails unless every task listed in `require` has
// a Success task run recorded in the state view, letting a workflow gate
// on fan-in completion without a bespoke join primitive.
type AssertCompletedOperator struct{}

// NewAssertCompletedOperator constructs the assert-completed operator.
func NewAssertCompletedOperator() *AssertCompletedOperator { return &AssertCompletedOperator{} }

func (o *AssertCompletedOperator) Name() string { return "assert_completed" }

func (o *AssertCompletedOperator) ValidateParams(raw map[string]interface{}, _ *types.Settings) error {
	list, ok := raw["require"].([]interface{})
	if !ok || len(list) == 0 {
		return fmt.Errorf("assert_completed requires a non-empty 'require' list of task ids")
	}
	for _, v := range list {
		if _, ok := v.(string); !ok {
			return fmt.Errorf("all 'require' entries must be task id strings")
		}
	}
	return nil
}

func (o *AssertCompletedOperator) Execute(_ context.Context, raw map[string]interface{}, execCtx types.ExecutionContext) (interface{}, error) {
	list := raw["require"].([]interface{})

	var missing []string
	for _, v := range list {
		id := v.(string)
		view, ok := execCtx.StateView.Tasks[id]
		if !ok || view.Status != types.TaskSuccess {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("assert_completed: tasks not successfully completed: %s", strings.Join(missing, ", "))
	}
	return map[string]interface{}{"satisfied": list}, nil
}
