package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/custodia-labs/passage/internal/connectors/filesystem"
	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driving"
)

// mockCorpusService is an in-memory driving.CorpusService.
type mockCorpusService struct {
	records map[string]*domain.DocumentRecord
	stats   domain.CorpusStats

	verifyErr error
	purged    bool
	rebuilt   bool
	compacted bool
	deleted   []string
}

func newMockCorpus() *mockCorpusService {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return &mockCorpusService{
		records: map[string]*domain.DocumentRecord{
			"doc-1": {
				Document: domain.Document{
					ID:        "doc-1",
					Title:     "Cats",
					Origin:    "/notes/cats.md",
					Revision:  "r3",
					Content:   "The cat sat.\n",
					Metadata:  map[string]any{"format": "markdown"},
					CreatedAt: created,
					UpdatedAt: created,
				},
				Generation: 2,
				Chunks: []domain.Chunk{
					{DocumentID: "doc-1", Ordinal: 0, Content: "The cat sat.\n", Embedding: []float32{1}},
					{DocumentID: "doc-1", Ordinal: 1, Content: ""},
				},
				Failures: []domain.ChunkFailure{{Ordinal: 1, Code: domain.FailureTransient, Reason: "timeout"}},
			},
		},
		stats: domain.CorpusStats{Documents: 1, Chunks: 2, IndexEntries: 1, FailedChunks: 1, Dimension: 3, LastSeq: 7, IndexKind: "hnsw"},
	}
}

func (m *mockCorpusService) Ingest(_ context.Context, doc *domain.Document) (*domain.IngestResult, error) {
	return &domain.IngestResult{DocumentID: doc.ID, Generation: 1}, nil
}

func (m *mockCorpusService) IngestMany(ctx context.Context, docs []*domain.Document) ([]domain.IngestResult, error) {
	out := make([]domain.IngestResult, len(docs))
	for i, d := range docs {
		res, _ := m.Ingest(ctx, d) //nolint:errcheck // never fails
		out[i] = *res
	}
	return out, nil
}

func (m *mockCorpusService) Delete(_ context.Context, id string) (bool, error) {
	m.deleted = append(m.deleted, id)
	_, existed := m.records[id]
	delete(m.records, id)
	return existed, nil
}

func (m *mockCorpusService) GetDocument(_ context.Context, id string) (*domain.DocumentRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (m *mockCorpusService) ListDocuments(context.Context) ([]domain.DocumentSummary, error) {
	out := make([]domain.DocumentSummary, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Summary())
	}
	return out, nil
}

func (m *mockCorpusService) Purge(context.Context) error {
	m.purged = true
	m.records = map[string]*domain.DocumentRecord{}
	return nil
}

func (m *mockCorpusService) Load(context.Context) error { return nil }

func (m *mockCorpusService) Search(context.Context, []float32, int, float64) ([]domain.Passage, error) {
	return nil, nil
}

func (m *mockCorpusService) Verify(context.Context) error { return m.verifyErr }

func (m *mockCorpusService) Rebuild(context.Context) error {
	m.rebuilt = true
	return nil
}

func (m *mockCorpusService) Compact(context.Context) error {
	m.compacted = true
	return nil
}

func (m *mockCorpusService) Stats(context.Context) (domain.CorpusStats, error) {
	return m.stats, nil
}

// mockRetrievalService returns a fixed result and records the request.
type mockRetrievalService struct {
	result   *domain.RetrievalResult
	err      error
	gotQuery string
	gotOpts  domain.RetrieveOptions
}

func (m *mockRetrievalService) Retrieve(_ context.Context, query string, opts domain.RetrieveOptions) (*domain.RetrievalResult, error) {
	m.gotQuery, m.gotOpts = query, opts
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockImportService records imports.
type mockImportService struct {
	files   []string
	opts    []domain.ImportOptions
	walked  [][]string
	walkErr error
}

func (m *mockImportService) ImportFile(_ context.Context, path string, opts domain.ImportOptions) (*domain.IngestResult, error) {
	m.files = append(m.files, path)
	m.opts = append(m.opts, opts)
	id := path
	if opts.ID != "" {
		id = opts.ID
	}
	return &domain.IngestResult{DocumentID: id, Generation: 1, ChunksTotal: 2, ChunksIndexed: 2}, nil
}

func (m *mockImportService) ImportPaths(_ context.Context, paths []string) ([]domain.IngestResult, error) {
	m.walked = append(m.walked, paths)
	results := make([]domain.IngestResult, len(paths))
	for i, p := range paths {
		results[i] = domain.IngestResult{
			DocumentID:    p,
			Generation:    2,
			ChunksTotal:   3,
			ChunksIndexed: 2,
			Replaced:      true,
			Failures:      []domain.ChunkFailure{{Ordinal: 2, Code: domain.FailureRejected, Reason: "too long"}},
		}
	}
	return results, m.walkErr
}

func (m *mockImportService) Forget(context.Context, string) error { return nil }

func (m *mockImportService) DocumentID(path string) string { return path }

// mockSettingsService serves fixed settings.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	pingErr     error

	setProvider domain.AIProvider
	setModel    string
	setKey      string
}

func newMockSettings() *mockSettingsService {
	s := domain.DefaultAppSettings()
	s.Embedding.APIKey = "sk-1234567890abcdef"
	return &mockSettingsService{settings: s}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, model, key string) error {
	m.setProvider, m.setModel, m.setKey = p, model, key
	return nil
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateEmbeddingConfig(context.Context) error { return m.pingErr }

func (m *mockSettingsService) GetPipelineConfig() domain.PipelineConfig {
	return domain.DefaultPipelineConfig()
}

var (
	_ driving.CorpusService    = (*mockCorpusService)(nil)
	_ driving.RetrievalService = (*mockRetrievalService)(nil)
	_ driving.ImportService    = (*mockImportService)(nil)
	_ driving.SettingsService  = (*mockSettingsService)(nil)
)

// testServices are the mocks installed by setupTestServices.
type testServices struct {
	corpus    *mockCorpusService
	retrieval *mockRetrievalService
	importer  *mockImportService
	settings  *mockSettingsService
}

// setupTestServices installs mock services and returns a cleanup function.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		corpus:    newMockCorpus(),
		retrieval: &mockRetrievalService{result: &domain.RetrievalResult{}},
		importer:  &mockImportService{},
		settings:  newMockSettings(),
	}
	SetServices(&Services{
		Corpus:    ts.corpus,
		Retrieval: ts.retrieval,
		Importer:  ts.importer,
		Settings:  ts.settings,
	})
	return ts, func() {
		SetServices(nil)
		resetFlags()
	}
}

// resetFlags restores flag variables that persist between executions.
func resetFlags() {
	ingestID, ingestTitle, ingestRevision = "", "", ""
	retrieveK, retrieveFloor, retrievePerDoc, retrieveJSON = 0, 0, 0, false
	for _, name := range []string{"k", "floor", "per-doc", "json"} {
		retrieveCmd.Flags().Lookup(name).Changed = false
	}
	documentJSON, purgeYes, indexStatsJSON = false, false, false
	watchDebounce, watchNoSync = filesystem.DefaultDebounce, false
	mcpPort, mcpHost = 0, "127.0.0.1"
	opts = Options{}
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(args ...string) (string, error) {
	return executeCommandWithInput("", args...)
}

func executeCommandWithInput(input string, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

var errBoom = errors.New("boom")
