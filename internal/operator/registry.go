// ABOUTME: Operator registry for registering and dispatching all built-in operators
// ABOUTME: Provides centralized lookup used by load-time param validation and the scheduler

package operator

import (
	"fmt"

	"github.com/sarlalian/newton/pkg/types"
)

// Registry manages all available operators, keyed by the string a task's
// `operator:` field names.
type Registry struct {
	operators map[string]types.Operator
}

// New creates an empty operator registry. Callers wire in built-ins via
// builtin.RegisterAll (internal/operator/builtin) to keep this package free
// of a hard dependency on every operator implementation.
func New() *Registry {
	return &Registry{operators: make(map[string]types.Operator)}
}

// Register adds an operator under the given name, overwriting any
// previous registration for that name.
func (r *Registry) Register(name string, op types.Operator) {
	r.operators[name] = op
}

// Get retrieves an operator by name.
func (r *Registry) Get(name string) (types.Operator, bool) {
	op, ok := r.operators[name]
	return op, ok
}

// AvailableNames returns all registered operator names.
func (r *Registry) AvailableNames() []string {
	names := make([]string, 0, len(r.operators))
	for name := range r.operators {
		names = append(names, name)
	}
	return names
}

// ValidateParams validates one task's static params against its declared
// operator, surfacing an unknown-operator error if none is registered.
func (r *Registry) ValidateParams(operatorName, taskID string, params map[string]interface{}, settings *types.Settings) error {
	op, ok := r.Get(operatorName)
	if !ok {
		return fmt.Errorf("operator: task %q references unknown operator %q", taskID, operatorName)
	}
	return op.ValidateParams(params, settings)
}
