package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/passage/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for passage resources.
	uriScheme = "passage://"

	documentsURI = uriScheme + "documents"
)

// DocumentURI returns the resource URI of a document. IDs are path-escaped
// because file-derived IDs contain slashes.
func DocumentURI(id string) string {
	return documentsURI + "/" + url.PathEscape(id)
}

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         documentsURI,
		Name:        "documents",
		Description: "Every document in the corpus with its generation and chunk counts",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: documentsURI + "/{documentId}",
		Name:        "document-content",
		Description: "Full text of a document, rebuilt from its chunks",
		MIMEType:    "text/plain",
	}, s.handleDocumentContentResource)
}

// documentInfo is the listing entry of the documents resource.
type documentInfo struct {
	ID         string `json:"id"`
	URI        string `json:"uri"`
	Title      string `json:"title,omitempty"`
	Origin     string `json:"origin,omitempty"`
	Revision   string `json:"revision,omitempty"`
	Generation uint64 `json:"generation"`
	Chunks     int    `json:"chunks"`
	Failed     int    `json:"failed"`
}

// handleDocumentsResource returns a list of all documents.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docs, err := s.ports.Corpus.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	infos := make([]documentInfo, len(docs))
	for i := range docs {
		infos[i] = documentInfo{
			ID:         docs[i].ID,
			URI:        DocumentURI(docs[i].ID),
			Title:      docs[i].Title,
			Origin:     docs[i].Origin,
			Revision:   docs[i].Revision,
			Generation: docs[i].Generation,
			Chunks:     docs[i].Chunks,
			Failed:     docs[i].Failed,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling documents: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleDocumentContentResource returns the content of a specific document.
func (s *Server) handleDocumentContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docID := extractDocumentID(req.Params.URI)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	rec, err := s.ports.Corpus.GetDocument(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     rec.Document.Content,
		}},
	}, nil
}

// extractDocumentID extracts the document ID from a URI like passage://documents/{documentId}.
func extractDocumentID(uri string) string {
	const prefix = documentsURI + "/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id, err := url.PathUnescape(strings.TrimPrefix(uri, prefix))
	if err != nil {
		return ""
	}
	return id
}
