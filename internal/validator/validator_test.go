package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/plan"
	"github.com/dataflow/dataflow/internal/registry"
)

func dummyFactory(string, map[string]any) (component.Component, error) { return nil, nil }

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register("source/literal", dummyFactory, component.Manifest{
		Type:     "source/literal",
		Category: component.CategorySource,
		Outputs: map[string]component.OutputSpec{
			"value": {Type: "any"},
		},
	}))
	require.NoError(t, reg.Register("sink/collector", dummyFactory, component.Manifest{
		Type:     "sink/collector",
		Category: component.CategorySink,
	}))
	return reg
}

func TestValidateAcceptsWellFormedPlan(t *testing.T) {
	p := &plan.Plan{
		Name: "demo",
		Components: map[string]plan.ComponentDef{
			"s": {Type: "source/literal"},
			"k": {Type: "sink/collector"},
		},
		Flow: []plan.Step{
			{Source: "s"},
			{Sink: "k", Inputs: map[string]any{"payload": "{s.value}"}},
		},
	}

	report := New(testRegistry(t)).Validate(p)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors())
}

func TestValidateFlagsMissingNameAsWarning(t *testing.T) {
	p := &plan.Plan{
		Components: map[string]plan.ComponentDef{"s": {Type: "source/literal"}},
		Flow:       []plan.Step{{Source: "s"}},
	}
	report := New(testRegistry(t)).Validate(p)
	assert.True(t, report.Valid, "a missing name is a warning, not a failure")
	assert.NotEmpty(t, report.Warnings())
}

func TestValidateRejectsMissingComponentsAndFlow(t *testing.T) {
	p := &plan.Plan{Name: "demo"}
	report := New(testRegistry(t)).Validate(p)
	assert.False(t, report.Valid)
	assert.Len(t, report.Errors(), 2)
}

func TestValidateRejectsUnknownComponentType(t *testing.T) {
	p := &plan.Plan{
		Name:       "demo",
		Components: map[string]plan.ComponentDef{"s": {Type: "source/nonexistent"}},
		Flow:       []plan.Step{{Source: "s"}},
	}
	report := New(testRegistry(t)).Validate(p)
	assert.False(t, report.Valid)
	found := false
	for _, m := range report.Errors() {
		if m.Text == `unknown component type: "source/nonexistent"` {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateRejectsStepReferencingUnknownComponent(t *testing.T) {
	p := &plan.Plan{
		Name:       "demo",
		Components: map[string]plan.ComponentDef{"s": {Type: "source/literal"}},
		Flow:       []plan.Step{{Source: "ghost"}},
	}
	report := New(testRegistry(t)).Validate(p)
	assert.False(t, report.Valid)
}

func TestValidateWarnsOnUndefinedReference(t *testing.T) {
	p := &plan.Plan{
		Name:       "demo",
		Components: map[string]plan.ComponentDef{"k": {Type: "sink/collector"}},
		Flow: []plan.Step{
			{Sink: "k", Inputs: map[string]any{"payload": "{nope}"}},
		},
	}
	report := New(testRegistry(t)).Validate(p)
	assert.True(t, report.Valid, "undefined references are warnings")
	assert.NotEmpty(t, report.Warnings())
}

func TestValidateLoopIntroducesAndScopesLoopVariable(t *testing.T) {
	p := &plan.Plan{
		Name:       "demo",
		Components: map[string]plan.ComponentDef{"k": {Type: "sink/collector"}},
		Flow: []plan.Step{
			{
				Loop: &plan.LoopSpec{
					Over: "items",
					As:   "item",
					Steps: []plan.Step{
						{Sink: "k", Inputs: map[string]any{"payload": "{item}"}},
					},
				},
			},
		},
		Inputs: map[string]plan.InputDef{"items": {Type: "list"}},
	}
	report := New(testRegistry(t)).Validate(p)
	assert.True(t, report.Valid)
}

func TestValidateConditionalRequiresIfField(t *testing.T) {
	p := &plan.Plan{
		Name:       "demo",
		Components: map[string]plan.ComponentDef{},
		Flow: []plan.Step{
			{Conditional: &plan.ConditionalSpec{}},
		},
	}
	report := New(testRegistry(t)).Validate(p)
	assert.False(t, report.Valid)
}

func TestReportFormatIncludesCounts(t *testing.T) {
	report := Report{Valid: false, Messages: []Message{
		{Level: LevelError, Text: "bad"},
		{Level: LevelWarning, Text: "meh"},
	}}
	out := report.Format()
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "errors (1)")
	assert.Contains(t, out, "warnings (1)")
}

func TestReportFormatNoIssues(t *testing.T) {
	report := Report{Valid: true}
	assert.Equal(t, "validation passed with no issues", report.Format())
}
