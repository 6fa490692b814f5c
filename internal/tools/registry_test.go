package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"message"},
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
		},
	}
}

func TestRegistry_InvokeDispatchesToHandler(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("echo", "echoes its input", echoSchema(), func(ctx context.Context, args map[string]any) (any, error) {
		return args["message"], nil
	}))

	result, err := r.Invoke(context.Background(), "echo", map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestRegistry_InvokeUnknownToolIsNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
}

func TestRegistry_InvokeRejectsSchemaViolation(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("echo", "echoes its input", echoSchema(), func(ctx context.Context, args map[string]any) (any, error) {
		return args["message"], nil
	}))

	_, err := r.Invoke(context.Background(), "echo", map[string]any{})
	require.Error(t, err)
}

func TestRegistry_ListOmitsHandlers(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("noop", "does nothing", nil, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	}))

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "noop", list[0].Name)
}

func TestRegistry_RegisterRequiresHandler(t *testing.T) {
	r := NewRegistry()
	err := r.Register("bad", "", nil, nil)
	require.Error(t, err)
}

func TestRegistry_HasReflectsRegistration(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("echo"))
	require.NoError(t, r.Register("echo", "", nil, func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }))
	assert.True(t, r.Has("echo"))
}
