package builtin

import (
	"context"

	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/execctx"
)

var literalManifest = component.Manifest{
	Type:        "source/literal",
	Description: "Provide inline literal values",
	Category:    component.CategorySource,
	Config: map[string]component.ConfigSpec{
		"value":   {Type: "any", Required: true, Description: "The literal value to output"},
		"as_list": {Type: "boolean", Default: false, Description: "If true, wrap value in a list"},
	},
	Outputs: map[string]component.OutputSpec{
		"value": {Type: "any", Description: "The literal value"},
		"items": {Type: "list", Description: "Value as a list (a non-list value is wrapped in a one-element list)"},
		"count": {Type: "integer", Description: "Number of entries in items"},
	},
}

type literalSource struct {
	component.BaseComponent
}

func newLiteralSource(instanceID string, config map[string]any) (component.Component, error) {
	base, err := component.NewBaseComponent(instanceID, config, literalManifest)
	if err != nil {
		return nil, err
	}
	return &literalSource{BaseComponent: base}, nil
}

func (s *literalSource) Describe() component.Manifest { return literalManifest }

func (s *literalSource) Validate(inputs map[string]any) component.ValidationResult {
	return component.ValidateInputs(literalManifest, inputs)
}

func (s *literalSource) Execute(_ context.Context, _ map[string]any, _ *execctx.Context) (map[string]any, error) {
	value := s.GetConfig("value", literalManifest, nil)
	asList, _ := s.GetConfig("as_list", literalManifest, false).(bool)

	var items []any
	if list, ok := value.([]any); ok {
		items = list
	} else if asList {
		items = []any{value}
	} else {
		items = []any{value}
	}

	return map[string]any{
		"value": value,
		"items": items,
		"count": len(items),
	}, nil
}
