package builtin

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/execctx"
)

var textListManifest = component.Manifest{
	Type:        "source/text_list",
	Description: "Load a text file as a list of lines",
	Category:    component.CategorySource,
	Config: map[string]component.ConfigSpec{
		"path":              {Type: "string", Required: true, Description: "Path to the text file"},
		"skip_empty":        {Type: "boolean", Default: true, Description: "Skip empty lines"},
		"skip_comments":     {Type: "boolean", Default: true, Description: "Skip comment lines"},
		"comment_prefixes":  {Type: "list", Default: []any{"#", "//", ";"}, Description: "Prefixes that indicate comment lines"},
		"strip":             {Type: "boolean", Default: true, Description: "Strip whitespace from lines"},
	},
	Outputs: map[string]component.OutputSpec{
		"items": {Type: "list[string]", Description: "List of lines from the file"},
		"count": {Type: "integer", Description: "Number of items loaded"},
	},
}

type textListSource struct {
	component.BaseComponent
}

func newTextListSource(instanceID string, config map[string]any) (component.Component, error) {
	base, err := component.NewBaseComponent(instanceID, config, textListManifest)
	if err != nil {
		return nil, err
	}
	return &textListSource{BaseComponent: base}, nil
}

func (s *textListSource) Describe() component.Manifest { return textListManifest }

func (s *textListSource) Validate(inputs map[string]any) component.ValidationResult {
	return component.ValidateInputs(textListManifest, inputs)
}

func (s *textListSource) Execute(_ context.Context, _ map[string]any, _ *execctx.Context) (map[string]any, error) {
	path, _ := s.GetConfig("path", textListManifest, "").(string)
	skipEmpty, _ := s.GetConfig("skip_empty", textListManifest, true).(bool)
	skipComments, _ := s.GetConfig("skip_comments", textListManifest, true).(bool)
	strip, _ := s.GetConfig("strip", textListManifest, true).(bool)
	prefixes := stringSlice(s.GetConfig("comment_prefixes", textListManifest, []any{"#", "//", ";"}))

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("text_list: %w", err)
	}
	defer f.Close()

	var items []any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strip {
			line = strings.TrimSpace(line)
		} else {
			line = strings.TrimRight(line, "\r\n")
		}
		if skipEmpty && line == "" {
			continue
		}
		if skipComments && hasAnyPrefix(line, prefixes) {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("text_list: %w", err)
	}

	return map[string]any{"items": items, "count": len(items)}, nil
}

func stringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return nil
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
