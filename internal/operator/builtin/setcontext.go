// ABOUTME: SetContext operator, writes evaluated key/value pairs into a task's output
// ABOUTME: The scheduler folds this output into context for later $expr/template reads

package builtin

import (
	"fmt"

	"context"

	"github.com/sarlalian/newton/pkg/types"
)

// SetContextOperator's params are already template/$expr-evaluated by the
// scheduler before Execute runs, so this operator just echoes them back
// as its output; the scheduler is responsible for merging that output
// into the frozen read-model's `context` for subsequent tasks.
type SetContextOperator struct{}

// NewSetContextOperator constructs the set-context operator.
func NewSetContextOperator() *SetContextOperator { return &SetContextOperator{} }

func (o *SetContextOperator) Name() string { return "set_context" }

func (o *SetContextOperator) ValidateParams(raw map[string]interface{}, _ *types.Settings) error {
	if len(raw) == 0 {
		return fmt.Errorf("set_context operator requires at least one key/value pair")
	}
	return nil
}

func (o *SetContextOperator) Execute(_ context.Context, raw map[string]interface{}, _ types.ExecutionContext) (interface{}, error) {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out, nil
}
