// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: the model-inference boundary (OpenAI, Ollama, hash)
//   - VectorIndex: approximate nearest-neighbour search with exact re-ranking
//   - PostProcessor: chunk annotation pipeline stages
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - DocumentStore: durable snapshot of the corpus. Without it the corpus
//     lives only in memory and is lost on exit.
//   - ConfigStore: application configuration. Without it defaults apply.
//   - Normaliser, NormaliserRegistry: file-to-document conversion used by
//     the importer.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
