package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataflow/dataflow/internal/execctx"
)

func TestLiteralSourceScalarValue(t *testing.T) {
	src, err := newLiteralSource("s1", map[string]any{"value": "hello"})
	require.NoError(t, err)

	ctx := execctx.NewRoot(nil, nil, "", execctx.Normal)
	out, err := src.Execute(context.Background(), nil, ctx)
	require.NoError(t, err)

	assert.Equal(t, "hello", out["value"])
	assert.Equal(t, []any{"hello"}, out["items"])
	assert.Equal(t, 1, out["count"])
}

func TestLiteralSourceListValue(t *testing.T) {
	src, err := newLiteralSource("s1", map[string]any{"value": []any{1, 2, 3}})
	require.NoError(t, err)

	ctx := execctx.NewRoot(nil, nil, "", execctx.Normal)
	out, err := src.Execute(context.Background(), nil, ctx)
	require.NoError(t, err)

	assert.Equal(t, []any{1, 2, 3}, out["items"])
	assert.Equal(t, 3, out["count"])
}

func TestLiteralSourceRequiresValue(t *testing.T) {
	_, err := newLiteralSource("s1", map[string]any{})
	assert.Error(t, err)
}
