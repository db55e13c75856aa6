package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/execctx"
)

var fileWriterManifest = component.Manifest{
	Type:        "sink/file_writer",
	Description: "Write accumulated data to a JSON file",
	Category:    component.CategorySink,
	Config: map[string]component.ConfigSpec{
		"path":             {Type: "string", Required: true, Description: "Output file path"},
		"include_metadata": {Type: "boolean", Default: true, Description: "Include a timestamp/count metadata block"},
	},
	Outputs: map[string]component.OutputSpec{
		"path":  {Type: "string", Description: "Path written to"},
		"count": {Type: "integer", Description: "Number of items written"},
	},
}

// fileWriterSink accumulates one record per Execute call and rewrites the
// whole file on every call, so the file reflects the latest state even if
// execution stops before a plan's closing sink step.
type fileWriterSink struct {
	component.BaseComponent
	collected []map[string]any
}

func newFileWriterSink(instanceID string, config map[string]any) (component.Component, error) {
	base, err := component.NewBaseComponent(instanceID, config, fileWriterManifest)
	if err != nil {
		return nil, err
	}
	return &fileWriterSink{BaseComponent: base}, nil
}

func (s *fileWriterSink) Describe() component.Manifest { return fileWriterManifest }

func (s *fileWriterSink) Validate(map[string]any) component.ValidationResult {
	return component.ValidationResult{Valid: true}
}

func (s *fileWriterSink) Execute(_ context.Context, inputs map[string]any, execCtx *execctx.Context) (map[string]any, error) {
	if len(inputs) > 0 {
		item := make(map[string]any, len(inputs))
		for k, v := range inputs {
			item[k] = v
		}
		s.collected = append(s.collected, item)
	}

	path, _ := s.GetConfig("path", fileWriterManifest, "").(string)
	includeMetadata, _ := s.GetConfig("include_metadata", fileWriterManifest, true).(bool)

	results := make([]any, len(s.collected))
	for i, it := range s.collected {
		results[i] = it
	}
	payload := map[string]any{"results": results}
	if includeMetadata {
		payload["metadata"] = map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(s.collected),
		}
	}

	if err := execCtx.Write(payload, "file", map[string]any{"path": path}); err != nil {
		return nil, fmt.Errorf("sink/file_writer: %w", err)
	}

	return map[string]any{"path": path, "count": len(s.collected)}, nil
}
