package taskconfig

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dynTestTask struct{}

func (dynTestTask) Name() string     { return "t" }
func (dynTestTask) TypeName() string { return "base" }

func TestResolveRaw_Literal(t *testing.T) {
	v, err := resolveRaw(Val(42), nil, dynTestTask{})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestResolveRaw_CallableChainsIntoFuture(t *testing.T) {
	raw := Callable{Fn: func(bag map[string]any, task Task) (any, error) {
		return Future{Await: func() (any, error) { return "resolved", nil }}, nil
	}}
	v, err := resolveRaw(raw, nil, dynTestTask{})
	require.NoError(t, err)
	assert.Equal(t, "resolved", v)
}

func TestResolveRaw_CallableError(t *testing.T) {
	raw := Callable{Fn: func(bag map[string]any, task Task) (any, error) {
		return nil, errors.New("boom")
	}}
	_, err := resolveRaw(raw, nil, dynTestTask{})
	require.Error(t, err)
}

func TestResolveRaw_DepthGuardTripsOnSelfReference(t *testing.T) {
	var loop Dynamic
	loop = Callable{Fn: func(bag map[string]any, task Task) (any, error) {
		return loop, nil
	}}
	_, err := resolveRaw(loop, nil, dynTestTask{})
	require.Error(t, err)
}

func TestResolveTyped_NilUsesDefault(t *testing.T) {
	v, err := resolveTyped[bool](nil, nil, dynTestTask{}, true, asBool)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestResolveTyped_TypeMismatchFails(t *testing.T) {
	_, err := resolveTyped[bool](Val("not a bool"), nil, dynTestTask{}, false, asBool)
	require.Error(t, err)
}

func TestAsStringSlice_FromAnySlice(t *testing.T) {
	out, ok := asStringSlice([]any{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestAsStringSlice_RejectsNonStringElement(t *testing.T) {
	_, ok := asStringSlice([]any{"a", 1})
	assert.False(t, ok)
}
