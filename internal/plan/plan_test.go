package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasicPlan(t *testing.T) {
	data := []byte(`{
		"name": "demo",
		"inputs": {"n": {"type": "integer", "required": true}},
		"components": {"s": {"type": "source/literal", "config": {"value": 1}}},
		"flow": [{"source": "s"}],
		"settings": {"model": "gpt"},
		"error_handling": {"default": "stop", "max_retries": 2}
	}`)

	p, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "demo", p.Name)
	assert.True(t, p.Inputs["n"].Required)
	assert.Equal(t, "source/literal", p.Components["s"].Type)
	assert.Equal(t, "source", p.Flow[0].Kind())
	assert.Equal(t, "gpt", p.Settings["model"])
	assert.Equal(t, "stop", p.ErrorHandling.Default)
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	assert.Error(t, err)
}
