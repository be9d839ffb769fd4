// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The Corpus is the single writer of the vector index; the Retriever and
// the Importer reach the index only through it.
package services
