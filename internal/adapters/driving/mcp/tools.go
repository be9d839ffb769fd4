package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/logger"
	"github.com/custodia-labs/passage/internal/postprocessors/sections"
)

// IngestDocumentInput is the input schema for the ingest_document tool.
type IngestDocumentInput struct {
	Identity string `json:"identity" jsonschema:"stable document id; ingesting the same id again replaces the document"`
	Text     string `json:"text" jsonschema:"the full plain-text content of the document"`
	Title    string `json:"title,omitempty" jsonschema:"human-readable title used in citations"`
	Origin   string `json:"origin,omitempty" jsonschema:"where the text came from, such as a path or URL"`
	Revision string `json:"revision,omitempty" jsonschema:"opaque revision marker of the source"`
}

// IngestDocumentOutput is the output schema for the ingest_document tool.
type IngestDocumentOutput struct {
	DocumentID    string          `json:"document_id"`
	Generation    uint64          `json:"generation"`
	ChunksTotal   int             `json:"chunks_total"`
	ChunksIndexed int             `json:"chunks_indexed"`
	Replaced      bool            `json:"replaced"`
	Failures      []FailureOutput `json:"failures"`
}

// FailureOutput reports a chunk that was stored but not indexed.
type FailureOutput struct {
	Ordinal int    `json:"ordinal"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query          string   `json:"query" jsonschema:"natural-language question or search text"`
	K              int      `json:"k,omitempty" jsonschema:"number of passages to return, 1 to 20 (default 5)"`
	ScoreFloor     *float64 `json:"score_floor,omitempty" jsonschema:"minimum cosine similarity, -1 to 1 (default from config)"`
	MaxPerDocument *int     `json:"max_per_document,omitempty" jsonschema:"cap on passages from one document, 0 means no cap (default from config)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Results []PassageOutput `json:"results"`
	Count   int             `json:"count"`
	Partial bool            `json:"partial"`
}

// PassageOutput is a single retrieved passage with its citation.
type PassageOutput struct {
	Text         string  `json:"text"`
	DocumentID   string  `json:"document_id"`
	ChunkOrdinal int     `json:"chunk_ordinal"`
	Citation     string  `json:"citation"`
	Score        float64 `json:"score"`
	Title        string  `json:"title,omitempty"`
	Origin       string  `json:"origin,omitempty"`
	Revision     string  `json:"revision,omitempty"`
	Section      string  `json:"section,omitempty"`
	Start        int     `json:"start"`
	End          int     `json:"end"`
}

// DeleteDocumentInput is the input schema for the delete_document tool.
type DeleteDocumentInput struct {
	Identity string `json:"identity" jsonschema:"id of the document to remove"`
}

// DeleteDocumentOutput is the output schema for the delete_document tool.
type DeleteDocumentOutput struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Add or replace a document in the retrieval corpus",
	}, s.handleIngestDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find the passages most relevant to a query, with citations",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document and all of its passages from the corpus",
	}, s.handleDeleteDocument)
}

// handleIngestDocument handles the ingest_document tool invocation.
func (s *Server) handleIngestDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestDocumentInput,
) (*mcp.CallToolResult, IngestDocumentOutput, error) {
	res, err := s.ports.Corpus.Ingest(ctx, &domain.Document{
		ID:       input.Identity,
		Title:    input.Title,
		Origin:   input.Origin,
		Revision: input.Revision,
		Content:  input.Text,
	})
	if err != nil {
		return nil, IngestDocumentOutput{}, err
	}

	output := IngestDocumentOutput{
		DocumentID:    res.DocumentID,
		Generation:    res.Generation,
		ChunksTotal:   res.ChunksTotal,
		ChunksIndexed: res.ChunksIndexed,
		Replaced:      res.Replaced,
		Failures:      make([]FailureOutput, len(res.Failures)),
	}
	for i, f := range res.Failures {
		output.Failures[i] = FailureOutput{Ordinal: f.Ordinal, Code: string(f.Code), Reason: f.Reason}
	}

	logger.Debug("mcp: ingested %s (%d/%d chunks)", res.DocumentID, res.ChunksIndexed, res.ChunksTotal)
	return nil, output, nil
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	result, err := s.ports.Retrieval.Retrieve(ctx, input.Query, domain.RetrieveOptions{
		K:              input.K,
		ScoreFloor:     input.ScoreFloor,
		MaxPerDocument: input.MaxPerDocument,
	})
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Results: make([]PassageOutput, len(result.Passages)),
		Count:   len(result.Passages),
		Partial: result.Partial,
	}
	for i := range result.Passages {
		output.Results[i] = passageOutput(&result.Passages[i])
	}

	return nil, output, nil
}

// handleDeleteDocument handles the delete_document tool invocation.
// Deleting an unknown document succeeds with Deleted false.
func (s *Server) handleDeleteDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteDocumentInput,
) (*mcp.CallToolResult, DeleteDocumentOutput, error) {
	if input.Identity == "" {
		return nil, DeleteDocumentOutput{}, domain.ErrInvalidInput
	}

	existed, err := s.ports.Corpus.Delete(ctx, input.Identity)
	if err != nil {
		return nil, DeleteDocumentOutput{}, err
	}
	return nil, DeleteDocumentOutput{DocumentID: input.Identity, Deleted: existed}, nil
}

func passageOutput(p *domain.Passage) PassageOutput {
	out := PassageOutput{
		Text:         p.Chunk.Content,
		DocumentID:   p.Chunk.DocumentID,
		ChunkOrdinal: p.Chunk.Ordinal,
		Citation:     p.Chunk.Ref().String(),
		Score:        p.Score,
		Title:        p.Title,
		Origin:       p.Origin,
		Revision:     p.Revision,
		Start:        p.Chunk.Start,
		End:          p.Chunk.End,
	}
	if section, ok := p.Chunk.Metadata[sections.MetadataKey].(string); ok {
		out.Section = section
	}
	return out
}
