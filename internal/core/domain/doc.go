// Package domain defines the core entities of the passage retrieval engine.
//
// This package is the hexagon's innermost layer. It has NO external
// dependencies and defines the fundamental types:
//
//   - Document: a normalised plain-text document with citation metadata
//   - Chunk: an immutable span of a document, the unit embedded and retrieved
//   - DocumentRecord: one generation of a document as owned by the corpus
//   - Passage: a scored chunk returned by retrieval
//   - Settings: chunking, embedding, index, corpus and retrieval configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
