package registry

import (
	"fmt"
	"os"
	"path/filepath"
)

// CompositeLoader is implemented by the composite package; kept as an
// interface here to avoid registry depending on composite (composite
// depends on registry to register what it loads).
type CompositeLoader interface {
	LoadAndRegister(path string, reg *Registry) (string, error)
}

// DiscoverComposites scans dir for *.json composite definitions and loads
// each via loader, mirroring the reference engine's tolerant directory
// scan: a failure on one file is logged and skipped, never fatal to the
// whole discovery pass.
func (r *Registry) DiscoverComposites(dir string, loader CompositeLoader) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var discovered []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		name, err := loader.LoadAndRegister(path, r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load composite %s: %v\n", path, err)
			continue
		}
		discovered = append(discovered, name)
	}
	return discovered
}
