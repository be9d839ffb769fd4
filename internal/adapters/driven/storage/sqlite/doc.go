// Package sqlite provides the durable corpus snapshot.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. It implements driven.DocumentStore: every document
// generation is stored with its chunks, their byte offsets, vectors and
// index sequence numbers, so a restart can rebuild the vector index without
// calling the embedding model.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.passage/data/corpus.db
//
// # Thread Safety
//
// All operations are thread-safe. Writers are serialised by SQLite in WAL
// mode; a record is replaced in a single transaction.
package sqlite
