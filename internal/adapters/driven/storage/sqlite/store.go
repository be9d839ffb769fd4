package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/passage/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

// DBName is the database file inside the data directory.
const DBName = "corpus.db"

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// Store is a SQLite-backed document store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the given data directory.
// If dataDir is empty, defaults to ~/.passage/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".passage", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBName)

	// Pragmas in the DSN apply to every pooled connection.
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_corpus.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveRecord replaces a document generation and all its chunks.
func (s *Store) SaveRecord(ctx context.Context, rec *domain.DocumentRecord) error {
	if rec == nil || rec.Document.ID == "" {
		return domain.ErrInvalidInput
	}
	doc := &rec.Document

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	failures := rec.Failures
	if failures == nil {
		failures = []domain.ChunkFailure{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("marshalling failures: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, origin, revision, content, metadata, generation, failures, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			origin = excluded.origin,
			revision = excluded.revision,
			content = excluded.content,
			metadata = excluded.metadata,
			generation = excluded.generation,
			failures = excluded.failures,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Title, doc.Origin, doc.Revision, doc.Content, string(metadataJSON),
		int64(rec.Generation), string(failuresJSON), formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt)) //nolint:gosec // generations stay far below 2^63
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, ordinal, start_offset, end_offset, content, embedding, seq, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range rec.Chunks {
		chunk := &rec.Chunks[i]
		chunkMeta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, chunk.ID, doc.ID, chunk.Ordinal, chunk.Start, chunk.End,
			chunk.Content, float32SliceToBytes(chunk.Embedding), int64(chunk.Seq), string(chunkMeta)); err != nil { //nolint:gosec // seq fits
			return fmt.Errorf("saving chunk %d: %w", chunk.Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetRecord retrieves a document generation by ID.
func (s *Store) GetRecord(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, origin, revision, content, metadata, generation, failures, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunks(ctx, "WHERE document_id = ? ORDER BY ordinal", id)
	if err != nil {
		return nil, err
	}
	rec.Chunks = chunks[id]
	return rec, nil
}

// DeleteDocument removes a document; chunks go with it by cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ListDocuments returns a summary of every stored document ordered by ID.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.origin, d.revision, d.generation, d.updated_at,
			(SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id),
			json_array_length(d.failures)
		FROM documents d
		ORDER BY d.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []domain.DocumentSummary //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			sum        domain.DocumentSummary
			generation int64
			updatedAt  string
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Origin, &sum.Revision, &generation,
			&updatedAt, &sum.Chunks, &sum.Failed); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		sum.Generation = uint64(generation) //nolint:gosec // stored from a uint64
		if sum.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return out, nil
}

// LoadAll returns every stored generation ordered by document ID.
func (s *Store) LoadAll(ctx context.Context) ([]domain.DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, origin, revision, content, metadata, generation, failures, created_at, updated_at
		FROM documents ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}

	var records []domain.DocumentRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	rows.Close()

	chunks, err := s.chunks(ctx, "ORDER BY document_id, ordinal")
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Chunks = chunks[records[i].Document.ID]
	}
	return records, nil
}

// Purge removes every document and chunk.
func (s *Store) Purge(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("purging chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("purging documents: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// chunks loads chunk rows grouped by document ID.
func (s *Store) chunks(ctx context.Context, clause string, args ...any) (map[string][]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, ordinal, start_offset, end_offset, content, embedding, seq, metadata
		FROM chunks `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Chunk)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out[chunk.DocumentID] = append(out[chunk.DocumentID], *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return out, nil
}

// ==================== Helper Functions ====================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a document row. Chunks are loaded separately.
func scanRecord(row scanner) (*domain.DocumentRecord, error) {
	var (
		rec                  domain.DocumentRecord
		generation           int64
		metadataJSON         string
		failuresJSON         string
		createdAt, updatedAt string
	)
	doc := &rec.Document

	if err := row.Scan(&doc.ID, &doc.Title, &doc.Origin, &doc.Revision, &doc.Content,
		&metadataJSON, &generation, &failuresJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	rec.Generation = uint64(generation) //nolint:gosec // stored from a uint64

	if metadataJSON != "" && metadataJSON != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(failuresJSON), &rec.Failures); err != nil {
		return nil, fmt.Errorf("unmarshaling failures: %w", err)
	}
	if len(rec.Failures) == 0 {
		rec.Failures = nil
	}

	var err error
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// scanChunk scans a chunk from *sql.Rows.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var (
		chunk         domain.Chunk
		embeddingBlob []byte
		seq           int64
		metadataJSON  string
	)

	if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Ordinal, &chunk.Start, &chunk.End,
		&chunk.Content, &embeddingBlob, &seq, &metadataJSON); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	chunk.Seq = uint64(seq) //nolint:gosec // stored from a uint64

	if metadataJSON != "" && metadataJSON != jsonNull {
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
	}

	return &chunk, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// formatTime stores times as RFC 3339 text; the zero time is stored empty.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}
