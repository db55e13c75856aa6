package builtin

import (
	"context"

	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/execctx"
)

var collectorManifest = component.Manifest{
	Type:        "sink/collector",
	Description: "Collect data items during execution",
	Category:    component.CategorySink,
	Config: map[string]component.ConfigSpec{
		"fields": {Type: "list", Description: "Field names to collect (collects all inputs if unset)"},
	},
	Outputs: map[string]component.OutputSpec{
		"items": {Type: "list[dict]", Description: "All collected items"},
		"count": {Type: "integer", Description: "Number of items collected"},
	},
	DefaultsToReturn: true,
}

// collectorSink accumulates one item per Execute call across the whole
// plan run (e.g. called once per loop iteration), returning the running
// total every time it's called - each call step step re-reads the same
// instance rather than a fresh one.
type collectorSink struct {
	component.BaseComponent
	collected []map[string]any
}

func newCollectorSink(instanceID string, config map[string]any) (component.Component, error) {
	base, err := component.NewBaseComponent(instanceID, config, collectorManifest)
	if err != nil {
		return nil, err
	}
	return &collectorSink{BaseComponent: base}, nil
}

func (s *collectorSink) Describe() component.Manifest { return collectorManifest }

// Validate accepts any inputs - a collector's shape is driven entirely by
// what the plan feeds it.
func (s *collectorSink) Validate(map[string]any) component.ValidationResult {
	return component.ValidationResult{Valid: true}
}

func (s *collectorSink) Execute(_ context.Context, inputs map[string]any, _ *execctx.Context) (map[string]any, error) {
	fields := stringSlice(s.GetConfig("fields", collectorManifest, nil))

	var item map[string]any
	if len(fields) > 0 {
		item = map[string]any{}
		for _, f := range fields {
			if v, ok := inputs[f]; ok {
				item[f] = v
			}
		}
	} else {
		item = map[string]any{}
		for k, v := range inputs {
			item[k] = v
		}
	}

	if len(item) > 0 {
		s.collected = append(s.collected, item)
	}

	items := make([]any, len(s.collected))
	for i, it := range s.collected {
		items[i] = it
	}
	return map[string]any{"items": items, "count": len(s.collected)}, nil
}
