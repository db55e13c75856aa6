// Package component defines the contract every dataflow component
// implements: describe its interface, validate inputs against it, and
// execute to produce outputs. The engine never hard-codes per-component
// knowledge - it asks the component via Describe and routes data
// accordingly.
package component

import (
	"context"
	"fmt"

	"github.com/dataflow/dataflow/internal/execctx"
)

// Category is the role a component plays in a plan's flow.
type Category string

const (
	CategorySource    Category = "source"
	CategoryTransform Category = "transform"
	CategoryControl   Category = "control"
	CategorySink      Category = "sink"
)

// ConfigSpec describes one entry of a component's configuration surface.
type ConfigSpec struct {
	Type        string
	Required    bool
	Default     any
	Description string
	Choices     []any
}

// InputSpec describes one entry of a component's input surface.
type InputSpec struct {
	Type        string
	Required    bool
	Description string
	Default     any
}

// OutputSpec describes one entry of a component's output surface.
type OutputSpec struct {
	Type        string
	Description string
}

// Manifest is a component's self-description. The registry and validator
// query it instead of assuming a component's shape.
type Manifest struct {
	Type        string
	Description string
	Category    Category
	Config      map[string]ConfigSpec
	Inputs      map[string]InputSpec
	Outputs     map[string]OutputSpec

	// DefaultsToReturn marks a sink whose outputs should be treated as
	// return-destination data by default when a driver can't otherwise
	// tell (resolves the has_returns asymmetry rather than special-casing
	// a type name in the HTTP driver).
	DefaultsToReturn bool
}

// ValidationResult is the outcome of validating a component's inputs.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ErrorProtocol describes how a failing component's errors should be
// handled by the engine's step executor.
type ErrorProtocol struct {
	OnError      string // "stop", "skip", "retry", "default"
	MaxRetries   int
	RetryDelayMS int
	DefaultValue any
}

// ShouldRetry reports whether another attempt should be made.
func (p ErrorProtocol) ShouldRetry(attempt int) bool {
	return p.OnError == "retry" && attempt < p.MaxRetries
}

// DefaultErrorProtocol is applied to components that don't override it.
var DefaultErrorProtocol = ErrorProtocol{OnError: "stop"}

// Component is the interface every source, transform, sink, and composite
// implements.
type Component interface {
	Describe() Manifest
	Validate(inputs map[string]any) ValidationResult
	Execute(ctx context.Context, inputs map[string]any, execCtx *execctx.Context) (map[string]any, error)
}

// ErrorProtocolProvider is implemented by components that override the
// default stop-on-error policy.
type ErrorProtocolProvider interface {
	ErrorProtocol() ErrorProtocol
}

// Factory constructs a component instance from its plan-declared config.
type Factory func(instanceID string, config map[string]any) (Component, error)

// BaseComponent holds the bookkeeping every concrete component needs:
// its instance id, resolved config, and a manifest-aware config lookup.
// Concrete components embed it and implement Describe/Validate/Execute.
type BaseComponent struct {
	InstanceID string
	Config     map[string]any
}

// NewBaseComponent validates config against the manifest (required keys
// present or defaulted, choices respected) and returns a BaseComponent, or
// an error describing the first violation found.
func NewBaseComponent(instanceID string, config map[string]any, manifest Manifest) (BaseComponent, error) {
	for name, spec := range manifest.Config {
		_, present := config[name]
		if spec.Required && !present && spec.Default == nil {
			return BaseComponent{}, fmt.Errorf("component %s: missing required config %q", instanceID, name)
		}
		if present && len(spec.Choices) > 0 {
			if !containsAny(spec.Choices, config[name]) {
				return BaseComponent{}, fmt.Errorf("component %s: config %q must be one of %v", instanceID, name, spec.Choices)
			}
		}
	}
	return BaseComponent{InstanceID: instanceID, Config: config}, nil
}

// GetConfig returns a config value, falling back to the manifest's
// declared default and then to fallback.
func (b BaseComponent) GetConfig(key string, manifest Manifest, fallback any) any {
	if v, ok := b.Config[key]; ok {
		return v
	}
	if spec, ok := manifest.Config[key]; ok && spec.Default != nil {
		return spec.Default
	}
	return fallback
}

// ValidateInputs applies the generic required/unexpected-input checks
// described by a manifest. Components with custom validation needs call
// this and then append their own checks.
func ValidateInputs(manifest Manifest, inputs map[string]any) ValidationResult {
	var errs, warns []string
	for name, spec := range manifest.Inputs {
		if spec.Required {
			if _, ok := inputs[name]; !ok {
				errs = append(errs, fmt.Sprintf("missing required input: %s", name))
			}
		}
	}
	for name := range inputs {
		if _, ok := manifest.Inputs[name]; !ok {
			warns = append(warns, fmt.Sprintf("unexpected input: %s", name))
		}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

func containsAny(choices []any, v any) bool {
	for _, c := range choices {
		if fmt.Sprint(c) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}
