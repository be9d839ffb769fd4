// Command passage is a document-grounded retrieval engine for AI assistants.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/custodia-labs/passage/internal/adapters/driven/ai"
	"github.com/custodia-labs/passage/internal/adapters/driven/config/file"
	"github.com/custodia-labs/passage/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/passage/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/passage/internal/adapters/driving/cli"
	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driven"
	"github.com/custodia-labs/passage/internal/core/services"
	"github.com/custodia-labs/passage/internal/logger"
	"github.com/custodia-labs/passage/internal/metrics"
	"github.com/custodia-labs/passage/internal/normalisers"
	"github.com/custodia-labs/passage/internal/postprocessors"
	"github.com/custodia-labs/passage/internal/postprocessors/chunker"
)

// memoryDataDir selects the in-memory document store.
const memoryDataDir = ":memory:"

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

// bootstrap wires the application from configuration. Every resource opened
// here is released by the returned Services.Close.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	configDir := opts.ConfigDir
	if configDir == "" {
		dir, err := file.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("resolving config dir: %w", err)
		}
		configDir = dir
	}
	file.LoadEnv(configDir)

	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.ValidateEmbeddingConfig)

	if opts.SettingsOnly {
		return &cli.Services{Settings: settingsService}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if err := settingsService.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", configStore.Path(), err)
	}

	logger.Section("bootstrap")
	logger.Debug("config: %s", configStore.Path())

	m := metrics.New(prometheus.NewRegistry())

	chunks, err := chunker.FromSettings(settings.Chunker)
	if err != nil {
		return nil, fmt.Errorf("configuring chunker: %w", err)
	}

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := registry.BuildPipeline(settingsService.GetPipelineConfig())
	if err != nil {
		return nil, fmt.Errorf("configuring pipeline: %w", err)
	}

	embeddingService, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if embeddingService == nil {
		return nil, fmt.Errorf("%w: set [embedding] in %s", domain.ErrEmbeddingUnavailable, configStore.Path())
	}
	embedder := services.NewEmbedder(embeddingService, settings.Embedding)
	embedder.SetMetrics(m)

	index, err := ai.CreateVectorIndex(settings.Index, embeddingService.Dimensions())
	if err != nil {
		embeddingService.Close()
		return nil, fmt.Errorf("creating vector index: %w", err)
	}

	store, err := openStore(opts.DataDir, configDir)
	if err != nil {
		index.Close()
		embeddingService.Close()
		return nil, err
	}

	closeAll := func() error {
		return errors.Join(store.Close(), index.Close(), embeddingService.Close())
	}

	corpus := services.NewCorpus(chunks, embedder, index, store, settings.Corpus)
	corpus.SetPipeline(pipeline)
	corpus.SetMetrics(m)
	if err := corpus.Load(ctx); err != nil {
		closeAll() //nolint:errcheck // already failing
		return nil, fmt.Errorf("loading corpus: %w", err)
	}

	retriever := services.NewRetriever(embedder, corpus, settings.Retrieval)
	retriever.SetMetrics(m)

	importer := services.NewImporter(corpus, normalisers.NewDefaultRegistry(), services.DefaultMaxFileSize)

	return &cli.Services{
		Corpus:    corpus,
		Retrieval: retriever,
		Importer:  importer,
		Settings:  settingsService,
		Scheduler: services.NewScheduler(settings.Corpus, corpus),
		Metrics:   m.Handler(),
		Close:     closeAll,
	}, nil
}

// openStore opens the SQLite corpus store. A data dir of ":memory:" keeps
// the corpus in process memory only.
func openStore(dataDir, configDir string) (driven.DocumentStore, error) {
	if dataDir == memoryDataDir {
		logger.Debug("store: in memory")
		return memory.NewDocumentStore(), nil
	}
	if dataDir == "" {
		dataDir = filepath.Join(configDir, "data")
	}
	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	logger.Debug("store: %s", store.Path())
	return store, nil
}
