// Package builtin provides the component library that ships with the
// engine: literal/file/git sources, a template transform, and
// collector/console/file sinks. Importing this package for its side
// effects registers every type into the process-wide registry.
package builtin

import (
	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/registry"
)

func init() {
	Register(registry.Default())
}

// Register registers every built-in component type into reg, so drivers
// that construct their own registry (tests, embedding) can opt in
// explicitly instead of relying on the process-wide default.
func Register(reg *registry.Registry) {
	mustRegister(reg, "source/literal", newLiteralSource, literalManifest)
	mustRegister(reg, "source/text_list", newTextListSource, textListManifest)
	mustRegister(reg, "source/git_file", newGitFileSource, gitFileManifest)
	mustRegister(reg, "transform/template", newTemplateTransform, templateManifest)
	mustRegister(reg, "sink/collector", newCollectorSink, collectorManifest)
	mustRegister(reg, "sink/console", newConsoleSink, consoleManifest)
	mustRegister(reg, "sink/file_writer", newFileWriterSink, fileWriterManifest)
}

func mustRegister(reg *registry.Registry, componentType string, factory component.Factory, manifest component.Manifest) {
	if reg.Has(componentType) {
		return
	}
	_ = reg.Register(componentType, factory, manifest)
}
