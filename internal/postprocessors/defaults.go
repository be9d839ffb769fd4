package postprocessors

import (
	"github.com/custodia-labs/passage/internal/core/ports/driven"
	"github.com/custodia-labs/passage/internal/postprocessors/sections"
)

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(sections.Name, buildSections)
}

// buildSections creates a section annotator from generic config.
// Supported config keys:
//   - max_level (int): deepest heading level to track (default: 6)
func buildSections(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []sections.Option
	if level := getIntFromConfig(cfg, "max_level"); level > 0 {
		opts = append(opts, sections.WithMaxLevel(level))
	}
	return sections.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
