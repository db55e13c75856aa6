package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataflow/dataflow/internal/builtin"
	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/execctx"
	"github.com/dataflow/dataflow/internal/plan"
	"github.com/dataflow/dataflow/internal/registry"
)

// --- test-local components grounding the scenarios in components the
// built-in library doesn't ship (a trivial echo transform and a sink that
// writes straight to the return destination under its own component id). ---

var echoManifest = component.Manifest{
	Type:     "transform/echo_test",
	Category: component.CategoryTransform,
	Inputs:   map[string]component.InputSpec{"x": {Type: "any"}},
	Outputs:  map[string]component.OutputSpec{"y": {Type: "any"}},
}

type echoTransform struct{ component.BaseComponent }

func newEchoTransform(id string, cfg map[string]any) (component.Component, error) {
	base, err := component.NewBaseComponent(id, cfg, echoManifest)
	if err != nil {
		return nil, err
	}
	return &echoTransform{BaseComponent: base}, nil
}
func (e *echoTransform) Describe() component.Manifest { return echoManifest }
func (e *echoTransform) Validate(inputs map[string]any) component.ValidationResult {
	return component.ValidateInputs(echoManifest, inputs)
}
func (e *echoTransform) Execute(_ context.Context, inputs map[string]any, _ *execctx.Context) (map[string]any, error) {
	return map[string]any{"y": inputs["x"]}, nil
}

var returnSinkManifest = component.Manifest{
	Type:     "sink/return_test",
	Category: component.CategorySink,
}

type returnSink struct{ component.BaseComponent }

func newReturnSink(id string, cfg map[string]any) (component.Component, error) {
	base, err := component.NewBaseComponent(id, cfg, returnSinkManifest)
	if err != nil {
		return nil, err
	}
	return &returnSink{BaseComponent: base}, nil
}
func (s *returnSink) Describe() component.Manifest { return returnSinkManifest }
func (s *returnSink) Validate(map[string]any) component.ValidationResult {
	return component.ValidationResult{Valid: true}
}
func (s *returnSink) Execute(_ context.Context, inputs map[string]any, execCtx *execctx.Context) (map[string]any, error) {
	payload := map[string]any{s.InstanceID: inputs}
	if err := execCtx.Write(payload, "return", nil); err != nil {
		return nil, err
	}
	return inputs, nil
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	builtin.Register(reg)
	require.NoError(t, reg.Register("transform/echo_test", newEchoTransform, echoManifest))
	require.NoError(t, reg.Register("sink/return_test", newReturnSink, returnSinkManifest))
	return reg
}

// Scenario 1: simple pipeline.
func TestSimplePipeline(t *testing.T) {
	p := &plan.Plan{
		Name: "simple",
		Components: map[string]plan.ComponentDef{
			"s": {Type: "source/literal", Config: map[string]any{"value": []any{"a", "b"}}},
			"t": {Type: "transform/echo_test"},
			"k": {Type: "sink/return_test"},
		},
		Flow: []plan.Step{
			{Source: "s"},
			{Call: "t", Inputs: map[string]any{"x": "{s.items}"}, Outputs: map[string]string{"y": "v"}},
			{Sink: "k", Inputs: map[string]any{"payload": "{v}"}},
		},
	}

	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))

	result, err := e.Execute(context.Background(), t.TempDir(), execctx.Quiet)
	require.NoError(t, err)
	require.True(t, result.Success)

	k := result.Returns["k"].(map[string]any)
	assert.Equal(t, []any{"a", "b"}, k["payload"])
}

// Scenario 2: loop with accumulator, finalized by an explicit sink step.
func TestLoopWithAccumulator(t *testing.T) {
	p := &plan.Plan{
		Name: "loopacc",
		Components: map[string]plan.ComponentDef{
			"s": {Type: "source/literal", Config: map[string]any{"value": []any{"x", "y", "z"}}},
			"k": {Type: "sink/collector"},
		},
		Flow: []plan.Step{
			{Source: "s"},
			{
				Loop: &plan.LoopSpec{
					Over: "s.items",
					As:   "it",
					Steps: []plan.Step{
						{Sink: "k", Inputs: map[string]any{"val": "{it}"}},
					},
				},
			},
			{Sink: "k"},
		},
	}

	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))

	result, err := e.Execute(context.Background(), t.TempDir(), execctx.Quiet)
	require.NoError(t, err)
	require.True(t, result.Success)

	items := result.Outputs["k"]["items"].([]any)
	require.Len(t, items, 3)
	assert.Equal(t, "x", items[0].(map[string]any)["val"])
	assert.Equal(t, "y", items[1].(map[string]any)["val"])
	assert.Equal(t, "z", items[2].(map[string]any)["val"])
}

// Scenario 3: plan input interpolation preserves type through {$inputs.X}.
func TestPlanInputInterpolationPreservesType(t *testing.T) {
	p := &plan.Plan{
		Name:   "thresholded",
		Inputs: map[string]plan.InputDef{"n": {Type: "integer"}},
		Components: map[string]plan.ComponentDef{
			"s": {Type: "source/literal", Config: map[string]any{"value": "{$inputs.n}"}},
		},
		Flow: []plan.Step{{Source: "s"}},
	}

	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))
	require.NoError(t, e.SetInputs(map[string]any{"n": 5}))

	result, err := e.Execute(context.Background(), t.TempDir(), execctx.Quiet)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, 5, result.Outputs["s"]["value"])
}

// Scenario 5 (nested loop keys) is exercised indirectly here: both
// iterations of the inner loop execute for both outer items, proving the
// engine descends the full cross product rather than conflating keys.
func TestNestedLoopsExecuteCrossProduct(t *testing.T) {
	p := &plan.Plan{
		Name: "nested",
		Components: map[string]plan.ComponentDef{
			"outer": {Type: "source/literal", Config: map[string]any{"value": []any{"A", "B"}}},
			"inner": {Type: "source/literal", Config: map[string]any{"value": []any{1, 2}}},
			"k":     {Type: "sink/collector"},
		},
		Flow: []plan.Step{
			{Source: "outer"},
			{Source: "inner"},
			{
				Loop: &plan.LoopSpec{
					Over: "outer.items",
					As:   "o",
					Steps: []plan.Step{
						{
							Loop: &plan.LoopSpec{
								Over: "inner.items",
								As:   "i",
								Steps: []plan.Step{
									{Sink: "k", Inputs: map[string]any{"o": "{o}", "i": "{i}"}},
								},
							},
						},
					},
				},
			},
		},
	}

	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))

	result, err := e.Execute(context.Background(), t.TempDir(), execctx.Quiet)
	require.NoError(t, err)
	require.True(t, result.Success)

	items := result.Outputs["k"]["items"].([]any)
	require.Len(t, items, 4)
	seen := map[string]bool{}
	for _, raw := range items {
		item := raw.(map[string]any)
		seen[fmt.Sprintf("%v/%v", item["o"], item["i"])] = true
	}
	assert.True(t, seen["A/1"])
	assert.True(t, seen["A/2"])
	assert.True(t, seen["B/1"])
	assert.True(t, seen["B/2"])
}

// Boundary: loop over an empty collection runs zero iterations.
func TestLoopOverEmptyCollectionRunsNothing(t *testing.T) {
	p := &plan.Plan{
		Name: "emptyloop",
		Components: map[string]plan.ComponentDef{
			"s": {Type: "source/literal", Config: map[string]any{"value": []any{}}},
			"k": {Type: "sink/collector"},
		},
		Flow: []plan.Step{
			{Source: "s"},
			{
				Loop: &plan.LoopSpec{
					Over: "s.items",
					As:   "it",
					Steps: []plan.Step{
						{Sink: "k", Inputs: map[string]any{"val": "{it}"}},
					},
				},
			},
			{Sink: "k"},
		},
	}

	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))

	result, err := e.Execute(context.Background(), t.TempDir(), execctx.Quiet)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 0, result.Outputs["k"]["count"])
}

// Boundary: loop over a nil/non-iterable target reports an execution error.
func TestLoopOverNonIterableFails(t *testing.T) {
	p := &plan.Plan{
		Name: "badloop",
		Components: map[string]plan.ComponentDef{
			"s": {Type: "source/literal", Config: map[string]any{"value": "not-a-list"}},
		},
		Flow: []plan.Step{
			{Source: "s"},
			{
				Loop: &plan.LoopSpec{
					Over:  "s.value",
					As:    "it",
					Steps: []plan.Step{},
				},
			},
		},
	}

	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))

	result, err := e.Execute(context.Background(), t.TempDir(), execctx.Quiet)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
}

// Boundary: unresolved template references are left verbatim in output.
func TestUnknownReferenceLeftVerbatim(t *testing.T) {
	p := &plan.Plan{
		Name: "unknownref",
		Components: map[string]plan.ComponentDef{
			"k": {Type: "sink/return_test"},
		},
		Flow: []plan.Step{
			{Sink: "k", Inputs: map[string]any{"payload": "value: {nope}"}},
		},
	}

	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))

	result, err := e.Execute(context.Background(), t.TempDir(), execctx.Quiet)
	require.NoError(t, err)
	require.True(t, result.Success)

	k := result.Returns["k"].(map[string]any)
	assert.Equal(t, "value: {nope}", k["payload"])
}

// An unresolvable conditional reference falls back to its own literal
// "{ref}" text, which is non-empty and therefore truthy under the
// string-truthy rule - the same outcome the reference engine produces.
func TestConditionalUnresolvableReferenceFallsBackToLiteral(t *testing.T) {
	p := &plan.Plan{
		Name: "cond",
		Components: map[string]plan.ComponentDef{
			"k": {Type: "sink/return_test"},
		},
		Flow: []plan.Step{
			{
				Conditional: &plan.ConditionalSpec{
					If:   "{nope}",
					Then: []plan.Step{{Sink: "k", Inputs: map[string]any{"payload": "then"}}},
					Else: []plan.Step{{Sink: "k", Inputs: map[string]any{"payload": "else"}}},
				},
			},
		},
	}

	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))

	result, err := e.Execute(context.Background(), t.TempDir(), execctx.Quiet)
	require.NoError(t, err)
	require.True(t, result.Success)

	k := result.Returns["k"].(map[string]any)
	assert.Equal(t, "then", k["payload"])
}

// An "if" condition that resolves to one of the designated falsy string
// literals takes the else branch.
func TestConditionalFalsyStringLiteral(t *testing.T) {
	p := &plan.Plan{
		Name: "cond3",
		Components: map[string]plan.ComponentDef{
			"s": {Type: "source/literal", Config: map[string]any{"value": "false"}},
			"k": {Type: "sink/return_test"},
		},
		Flow: []plan.Step{
			{Source: "s"},
			{
				Conditional: &plan.ConditionalSpec{
					If:   "{s.value}",
					Then: []plan.Step{{Sink: "k", Inputs: map[string]any{"payload": "then"}}},
					Else: []plan.Step{{Sink: "k", Inputs: map[string]any{"payload": "else"}}},
				},
			},
		},
	}

	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))

	result, err := e.Execute(context.Background(), t.TempDir(), execctx.Quiet)
	require.NoError(t, err)
	require.True(t, result.Success)

	k := result.Returns["k"].(map[string]any)
	assert.Equal(t, "else", k["payload"])
}

// Conditional truthiness: a non-empty resolved value runs the then branch.
func TestConditionalTruthyResolvedValue(t *testing.T) {
	p := &plan.Plan{
		Name: "cond2",
		Components: map[string]plan.ComponentDef{
			"s": {Type: "source/literal", Config: map[string]any{"value": true}},
			"k": {Type: "sink/return_test"},
		},
		Flow: []plan.Step{
			{Source: "s"},
			{
				Conditional: &plan.ConditionalSpec{
					If:   "{s.value}",
					Then: []plan.Step{{Sink: "k", Inputs: map[string]any{"payload": "then"}}},
					Else: []plan.Step{{Sink: "k", Inputs: map[string]any{"payload": "else"}}},
				},
			},
		},
	}

	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))

	result, err := e.Execute(context.Background(), t.TempDir(), execctx.Quiet)
	require.NoError(t, err)
	require.True(t, result.Success)

	k := result.Returns["k"].(map[string]any)
	assert.Equal(t, "then", k["payload"])
}

func TestProgressAndCurrentTrackExecution(t *testing.T) {
	p := &plan.Plan{
		Name: "progress",
		Components: map[string]plan.ComponentDef{
			"s": {Type: "source/literal", Config: map[string]any{"value": 1}},
		},
		Flow: []plan.Step{{Source: "s"}},
	}
	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))

	result, err := e.Execute(context.Background(), t.TempDir(), execctx.Quiet)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, int64(1), e.Progress())
	assert.Equal(t, "s", e.Current())
}

func TestGetMissingInputsReportsRequiredWithoutDefault(t *testing.T) {
	p := &plan.Plan{
		Name:       "missing",
		Inputs:     map[string]plan.InputDef{"n": {Type: "integer", Required: true}},
		Components: map[string]plan.ComponentDef{},
		Flow:       []plan.Step{},
	}
	e := New(testRegistry(t))
	require.NoError(t, e.LoadPlan(p))

	missing := e.GetMissingInputs()
	require.Len(t, missing, 1)
	assert.Equal(t, "n", missing[0].Name)

	require.NoError(t, e.SetInputs(map[string]any{"n": 1}))
	assert.Empty(t, e.GetMissingInputs())
}

func TestLoadPlanFailsForUnknownComponentType(t *testing.T) {
	p := &plan.Plan{
		Name: "invalid",
		Components: map[string]plan.ComponentDef{
			"s": {Type: "source/does_not_exist"},
		},
		Flow: []plan.Step{{Source: "s"}},
	}
	reg := registry.New()
	builtin.Register(reg)
	e := New(reg)
	err := e.LoadPlan(p)
	require.Error(t, err, "instantiation fails fast for an unknown component type")
}
