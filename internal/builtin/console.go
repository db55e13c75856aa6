package builtin

import (
	"context"
	"fmt"

	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/execctx"
)

var consoleManifest = component.Manifest{
	Type:        "sink/console",
	Description: "Print inputs to the console",
	Category:    component.CategorySink,
	Config: map[string]component.ConfigSpec{
		"label": {Type: "string", Description: "Optional label printed before each input"},
	},
}

type consoleSink struct {
	component.BaseComponent
}

func newConsoleSink(instanceID string, config map[string]any) (component.Component, error) {
	base, err := component.NewBaseComponent(instanceID, config, consoleManifest)
	if err != nil {
		return nil, err
	}
	return &consoleSink{BaseComponent: base}, nil
}

func (s *consoleSink) Describe() component.Manifest { return consoleManifest }

func (s *consoleSink) Validate(map[string]any) component.ValidationResult {
	return component.ValidationResult{Valid: true}
}

func (s *consoleSink) Execute(_ context.Context, inputs map[string]any, execCtx *execctx.Context) (map[string]any, error) {
	if execCtx.OutputMode() >= execctx.Normal {
		label, _ := s.GetConfig("label", consoleManifest, "").(string)
		if label != "" {
			fmt.Printf("[%s] %v\n", label, inputs)
		} else {
			fmt.Printf("%v\n", inputs)
		}
	}
	return map[string]any{}, nil
}
