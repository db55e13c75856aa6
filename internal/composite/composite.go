// Package composite implements components defined declaratively as JSON:
// a composite runs a nested plan in its own sub-engine and projects
// values from that inner run's sink outputs and returns as its own outputs.
package composite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/engine"
	"github.com/dataflow/dataflow/internal/execctx"
	"github.com/dataflow/dataflow/internal/plan"
	"github.com/dataflow/dataflow/internal/registry"
)

// Internal is the nested plan a composite runs.
type Internal struct {
	Components     map[string]plan.ComponentDef `json:"components"`
	Flow           []plan.Step                   `json:"flow"`
	OutputMappings map[string]string              `json:"output_mappings"`
}

// Definition is a composite's declared surface, loaded from JSON.
type Definition struct {
	Name     string                          `json:"name"`
	Inputs   map[string]component.InputSpec  `json:"inputs"`
	Outputs  map[string]component.OutputSpec `json:"outputs"`
	Config   map[string]component.ConfigSpec `json:"config"`
	Internal Internal                        `json:"internal"`
}

// instance is the Component backing one composite instance.
type instance struct {
	component.BaseComponent
	def *Definition
	reg *registry.Registry
}

func (i *instance) Describe() component.Manifest {
	return component.Manifest{
		Type:        "composite/" + i.def.Name,
		Description: fmt.Sprintf("composite component %s", i.def.Name),
		Category:    component.CategoryTransform,
		Config:      i.def.Config,
		Inputs:      i.def.Inputs,
		Outputs:     i.def.Outputs,
	}
}

func (i *instance) Validate(inputs map[string]any) component.ValidationResult {
	return component.ValidateInputs(i.Describe(), inputs)
}

// Execute builds an inner plan from the definition, forwards non-
// underscored composite-config keys into matching internal component
// configs, runs a fresh sub-engine over it with this instance's resolved
// inputs as the inner plan's inputs, and projects output_mappings. Each
// mapping is resolved against a fresh context holding only the inner run's
// sink outputs (by sink id) and its returned values; the inner plan's
// variables and its source and call outputs are not visible to it.
func (i *instance) Execute(ctx context.Context, inputs map[string]any, execCtx *execctx.Context) (map[string]any, error) {
	innerPlan := &plan.Plan{
		Name:       i.InstanceID + "_internal",
		Components: forwardConfig(i.def.Internal.Components, i.Config),
		Flow:       i.def.Internal.Flow,
	}

	inner := engine.New(i.reg)
	if err := inner.LoadPlan(innerPlan); err != nil {
		return nil, fmt.Errorf("composite %s: load internal plan: %w", i.InstanceID, err)
	}
	if err := inner.SetInputs(inputs); err != nil {
		return nil, fmt.Errorf("composite %s: set inputs: %w", i.InstanceID, err)
	}

	result, err := inner.Execute(ctx, execCtx.OutputDir(), execCtx.OutputMode())
	if err != nil {
		return nil, fmt.Errorf("composite %s: %w", i.InstanceID, err)
	}
	if !result.Success {
		var messages []string
		for _, e := range result.Errors {
			if !e.Recovered {
				messages = append(messages, e.Message)
			}
		}
		return nil, fmt.Errorf("composite execution failed: %s", strings.Join(messages, "; "))
	}

	innerRoot := inner.Context("", execCtx.OutputMode())
	for id, outs := range result.Outputs {
		innerRoot.SetComponentOutput(id, outs)
	}
	for k, v := range result.Returns {
		innerRoot.Set(k, v)
	}

	outputs := make(map[string]any, len(i.def.Internal.OutputMappings))
	for outputName, mapping := range i.def.Internal.OutputMappings {
		outputs[outputName] = innerRoot.Resolve(mapping)
	}
	return outputs, nil
}

// forwardConfig applies the broad, non-namespaced composite-config
// forwarding described by the open question on composite config
// routing: every non-underscore-prefixed key in the composite instance's
// own config overrides any internal component config entry of the same
// key name. This can surprise two internal components that happen to
// share a config key name; kept as specified rather than redesigned into
// an explicit per-field routing scheme.
func forwardConfig(components map[string]plan.ComponentDef, composeConfig map[string]any) map[string]plan.ComponentDef {
	out := make(map[string]plan.ComponentDef, len(components))
	for id, def := range components {
		cfg := make(map[string]any, len(def.Config))
		for k, v := range def.Config {
			cfg[k] = v
		}
		for key, value := range composeConfig {
			if strings.HasPrefix(key, "_") {
				continue
			}
			if _, declared := cfg[key]; declared {
				cfg[key] = value
			}
		}
		out[id] = plan.ComponentDef{Type: def.Type, Config: cfg}
	}
	return out
}

// definitions holds every loaded composite definition, keyed by name, so
// factories can be re-created against the latest definition (mirrors the
// reference engine's class-level definitions registry).
var definitions = map[string]*Definition{}

// Load parses a composite definition from JSON bytes.
func Load(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	if def.Name == "" {
		return nil, fmt.Errorf("composite definition missing 'name'")
	}
	return &def, nil
}

// Register registers def's factory under "composite/<name>" in reg.
func Register(def *Definition, reg *registry.Registry) error {
	definitions[def.Name] = def
	manifest := component.Manifest{
		Type:        "composite/" + def.Name,
		Description: fmt.Sprintf("composite component %s", def.Name),
		Category:    component.CategoryTransform,
		Config:      def.Config,
		Inputs:      def.Inputs,
		Outputs:     def.Outputs,
	}
	factory := func(instanceID string, config map[string]any) (component.Component, error) {
		base, err := component.NewBaseComponent(instanceID, config, manifest)
		if err != nil {
			return nil, err
		}
		return &instance{BaseComponent: base, def: def, reg: reg}, nil
	}
	return reg.Register("composite/"+def.Name, factory, manifest)
}

// LoadAndRegister loads a composite definition from path and registers
// it against reg, returning its name. It implements
// registry.CompositeLoader so the registry's directory discovery helper
// can drive it without importing this package.
func LoadAndRegister(path string, reg *registry.Registry) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	def, err := Load(data)
	if err != nil {
		return "", err
	}
	if err := Register(def, reg); err != nil {
		return "", err
	}
	return def.Name, nil
}

// Loader adapts the package-level LoadAndRegister function to the
// registry.CompositeLoader interface.
type Loader struct{}

func (Loader) LoadAndRegister(path string, reg *registry.Registry) (string, error) {
	return LoadAndRegister(path, reg)
}
