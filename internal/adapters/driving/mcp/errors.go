// Package mcp provides an MCP (Model Context Protocol) server adapter for passage.
// It exposes ingestion and grounded retrieval to model-driven callers as tools,
// and the stored documents as resources.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// ErrMissingCorpusService is returned when the corpus service is not provided.
var ErrMissingCorpusService = errors.New("mcp: corpus service is required")
