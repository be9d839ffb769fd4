package postprocessors

import (
	"fmt"
	"maps"
	"slices"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// BuilderFunc creates a PostProcessor from generic config.
// Config is a map of processor-specific settings parsed from user config.
type BuilderFunc func(cfg map[string]any) (driven.PostProcessor, error)

// Registry maps processor names to their builders.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates a new processor registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a processor builder to the registry.
// Name should be unique and match the processor's Name() return value.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates a processor by name with the given config.
func (r *Registry) Build(name string, cfg map[string]any) (driven.PostProcessor, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: processor %s", domain.ErrUnsupportedType, name)
	}
	return builder(cfg)
}

// BuildPipeline creates the configured pipeline. A processor may appear
// only once, and configuration for a processor that is not in the list
// is rejected so typos in config.toml do not go unnoticed.
func (r *Registry) BuildPipeline(cfg domain.PipelineConfig) (*Pipeline, error) {
	seen := make(map[string]bool, len(cfg.Processors))
	p := NewPipeline()
	for _, name := range cfg.Processors {
		if seen[name] {
			return nil, fmt.Errorf("%w: processor %s listed twice", domain.ErrInvalidInput, name)
		}
		seen[name] = true

		proc, err := r.Build(name, cfg.GetProcessorConfig(name))
		if err != nil {
			return nil, fmt.Errorf("build processor %s: %w", name, err)
		}
		p.Add(proc)
	}

	for name := range cfg.ProcessorConfigs {
		if !seen[name] {
			return nil, fmt.Errorf("%w: config for processor %s which is not enabled", domain.ErrInvalidInput, name)
		}
	}
	return p, nil
}

// Has returns true if a processor with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns all registered processor names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.builders))
}
