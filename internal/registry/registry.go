// Package registry implements the process-wide Component Registry: a
// type-string to factory mapping that lets plans reference components by
// name (e.g. "source/text_list") and have the engine instantiate the
// right implementation, without either side knowing about the other's
// concrete Go type.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dataflow/dataflow/internal/component"
)

// Registry maps component type strings to factories. Writes are expected
// only at startup (built-in registration, composite discovery); reads
// happen throughout plan loading and execution, so lookups are guarded
// by an RWMutex rather than a plain Mutex.
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]component.Factory
	manifests  map[string]component.Manifest
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]component.Factory),
		manifests: make(map[string]component.Manifest),
	}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide singleton registry, matching the
// distilled spec's "process-wide singleton" requirement for built-in
// component self-registration via package init().
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = New()
	})
	return defaultReg
}

// Register adds a factory under a type string. It fails if the type is
// already registered - re-registration is almost always a bug (two
// components claiming the same type string), so it is treated as fatal
// rather than silently overwriting.
func (r *Registry) Register(componentType string, factory component.Factory, manifest component.Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[componentType]; exists {
		return fmt.Errorf("component type already registered: %s", componentType)
	}
	r.factories[componentType] = factory
	r.manifests[componentType] = manifest
	return nil
}

// Create instantiates a component of the given type.
func (r *Registry) Create(componentType, instanceID string, config map[string]any) (component.Component, error) {
	r.mu.RLock()
	factory, ok := r.factories[componentType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown component type: %s (available: %s)", componentType, strings.Join(r.suggest(componentType), ", "))
	}
	return factory(instanceID, config)
}

// GetManifest returns the manifest registered for a type, without instantiating.
func (r *Registry) GetManifest(componentType string) (component.Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manifests[componentType]
	return m, ok
}

// Has reports whether a type is registered.
func (r *Registry) Has(componentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[componentType]
	return ok
}

// ListTypes returns every registered type string, sorted.
func (r *Registry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ListByCategory returns every registered type whose prefix (before "/")
// matches category.
func (r *Registry) ListByCategory(category string) []string {
	prefix := category + "/"
	all := r.ListTypes()
	out := make([]string, 0, len(all))
	for _, t := range all {
		if strings.HasPrefix(t, prefix) {
			out = append(out, t)
		}
	}
	return out
}

// suggest returns every registered type that contains componentType's
// name segment, or the first 5 registered types when none does, for
// "did you mean" hints on unknown-type errors.
func (r *Registry) suggest(componentType string) []string {
	parts := strings.Split(componentType, "/")
	needle := parts[len(parts)-1]
	all := r.ListTypes()
	var similar []string
	for _, t := range all {
		if strings.Contains(t, needle) {
			similar = append(similar, t)
		}
	}
	if len(similar) > 0 {
		return similar
	}
	if len(all) > 5 {
		return all[:5]
	}
	return all
}
