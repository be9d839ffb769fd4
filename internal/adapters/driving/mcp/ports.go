package mcp

import (
	"net/http"

	"github.com/custodia-labs/passage/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers retrieve calls.
	Retrieval driving.RetrievalService

	// Corpus handles ingestion, deletion and the document resources.
	Corpus driving.CorpusService

	// Metrics is served on /metrics in HTTP mode. Optional.
	Metrics http.Handler
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	if p.Corpus == nil {
		return ErrMissingCorpusService
	}
	return nil
}
