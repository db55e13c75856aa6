package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/execctx"
)

var templateManifest = component.Manifest{
	Type:        "transform/template",
	Description: "String template interpolation",
	Category:    component.CategoryTransform,
	Config: map[string]component.ConfigSpec{
		"template": {Type: "string", Description: "Template string with {placeholders} (can also be provided via input)"},
	},
	Inputs: map[string]component.InputSpec{
		"template": {Type: "string", Description: "Template string (overrides config if provided)"},
		"values":   {Type: "dict", Description: "Values to substitute", Default: map[string]any{}},
	},
	Outputs: map[string]component.OutputSpec{
		"result": {Type: "string", Description: "Interpolated string"},
	},
}

type templateTransform struct {
	component.BaseComponent
}

func newTemplateTransform(instanceID string, config map[string]any) (component.Component, error) {
	base, err := component.NewBaseComponent(instanceID, config, templateManifest)
	if err != nil {
		return nil, err
	}
	return &templateTransform{BaseComponent: base}, nil
}

func (t *templateTransform) Describe() component.Manifest { return templateManifest }

func (t *templateTransform) Validate(inputs map[string]any) component.ValidationResult {
	return component.ValidateInputs(templateManifest, inputs)
}

// Execute substitutes {key} placeholders in the template against the
// values input merged with every other non-"values" input, falling back
// to the execution context for keys neither provides, and leaves an
// unresolved placeholder as literal text.
func (t *templateTransform) Execute(_ context.Context, inputs map[string]any, execCtx *execctx.Context) (map[string]any, error) {
	tmpl, _ := inputs["template"].(string)
	if tmpl == "" {
		tmpl, _ = t.GetConfig("template", templateManifest, "").(string)
	}
	if tmpl == "" {
		return nil, fmt.Errorf("transform/template: no template provided via input or config")
	}

	allValues := map[string]any{}
	if values, ok := inputs["values"].(map[string]any); ok {
		for k, v := range values {
			allValues[k] = v
		}
	}
	for k, v := range inputs {
		if k != "values" {
			allValues[k] = v
		}
	}

	var b strings.Builder
	i := 0
	for i < len(tmpl) {
		if tmpl[i] == '{' {
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				b.WriteString(tmpl[i:])
				break
			}
			key := tmpl[i+1 : i+end]
			if v, ok := allValues[key]; ok {
				fmt.Fprint(&b, v)
			} else if v := execCtx.Get(key); v != nil {
				fmt.Fprint(&b, v)
			} else {
				b.WriteString(tmpl[i : i+end+1])
			}
			i += end + 1
			continue
		}
		b.WriteByte(tmpl[i])
		i++
	}

	return map[string]any{"result": b.String()}, nil
}
