// ABOUTME: NoOp operator, a pass-through task used for branch points and debug logging
// ABOUTME: Mirrors the teacher's debug task style: optional message, logged at info level

package builtin

import (
	"context"
	"fmt"

	"github.com/sarlalian/newton/pkg/types"
)

// NoOpOperator always succeeds; its optional `message` param is a
// debug-log convenience, not a side effect observable to other tasks.
type NoOpOperator struct {
	logger types.Logger
}

// NewNoOpOperator constructs the no-op operator.
func NewNoOpOperator(logger types.Logger) *NoOpOperator {
	return &NoOpOperator{logger: logger}
}

func (o *NoOpOperator) Name() string { return "noop" }

func (o *NoOpOperator) ValidateParams(raw map[string]interface{}, _ *types.Settings) error {
	if v, ok := raw["message"]; ok {
		if _, ok := v.(string); !ok {
			return fmt.Errorf("message must be a string")
		}
	}
	return nil
}

func (o *NoOpOperator) Execute(_ context.Context, raw map[string]interface{}, execCtx types.ExecutionContext) (interface{}, error) {
	message, _ := raw["message"].(string)
	if message != "" && o.logger != nil {
		o.logger.Info().Str("task_id", execCtx.TaskID).Msg(message)
	}
	return map[string]interface{}{"message": message}, nil
}
