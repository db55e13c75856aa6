package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataflow/dataflow/internal/execctx"
)

func TestConsoleSinkReturnsEmptyOutputs(t *testing.T) {
	sink, err := newConsoleSink("k1", map[string]any{})
	require.NoError(t, err)

	ctx := execctx.NewRoot(nil, nil, "", execctx.Quiet)
	out, err := sink.Execute(context.Background(), map[string]any{"msg": "hi"}, ctx)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestConsoleSinkValidateAlwaysAccepts(t *testing.T) {
	sink, err := newConsoleSink("k1", map[string]any{})
	require.NoError(t, err)
	assert.True(t, sink.Validate(map[string]any{"anything": 1}).Valid)
}
