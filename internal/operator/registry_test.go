package operator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarlalian/newton/pkg/types"
)

type stubOperator struct{}

func (stubOperator) Name() string { return "stub" }
func (stubOperator) ValidateParams(map[string]interface{}, *types.Settings) error { return nil }
func (stubOperator) Execute(context.Context, map[string]interface{}, types.ExecutionContext) (interface{}, error) {
	return nil, nil
}

func TestRegisterAndGet(t *testing.T) {
	reg := New()
	reg.Register("stub", stubOperator{})

	op, ok := reg.Get("stub")
	require.True(t, ok)
	assert.Equal(t, "stub", op.Name())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestAvailableNames(t *testing.T) {
	reg := New()
	reg.Register("a", stubOperator{})
	reg.Register("b", stubOperator{})

	assert.ElementsMatch(t, []string{"a", "b"}, reg.AvailableNames())
}

func TestValidateParamsUnknownOperator(t *testing.T) {
	reg := New()
	err := reg.ValidateParams("ghost", "task-1", nil, &types.Settings{})
	require.Error(t, err)
}

func TestValidateParamsDelegatesToOperator(t *testing.T) {
	reg := New()
	reg.Register("stub", stubOperator{})
	err := reg.ValidateParams("stub", "task-1", nil, &types.Settings{})
	require.NoError(t, err)
}
