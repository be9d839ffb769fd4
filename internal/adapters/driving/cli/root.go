// Package cli implements the passage command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/passage/internal/core/ports/driving"
	"github.com/custodia-labs/passage/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Options are the global flags handed to the bootstrap function.
type Options struct {
	Verbose   bool
	ConfigDir string
	DataDir   string

	// SettingsOnly asks for the settings service alone, so configuration
	// can be repaired when the embedding provider is unreachable.
	SettingsOnly bool
}

// Services holds the application services the commands run against.
type Services struct {
	Corpus    driving.CorpusService
	Retrieval driving.RetrievalService
	Importer  driving.ImportService
	Settings  driving.SettingsService
	Scheduler driving.Scheduler
	Metrics   http.Handler

	// Close releases stores and model clients. May be nil.
	Close func() error
}

// BootstrapFunc builds the services once flags are parsed.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, error)

var (
	opts      Options
	bootstrap BootstrapFunc

	corpusService    driving.CorpusService
	retrievalService driving.RetrievalService
	importService    driving.ImportService
	settingsService  driving.SettingsService
	scheduler        driving.Scheduler
	metricsHandler   http.Handler
	closeServices    func() error
)

// bootstrapMode is the command annotation selecting which services a
// command needs.
const (
	bootstrapMode     = "bootstrap"
	bootstrapNone     = "none"
	bootstrapSettings = "settings"
)

var rootCmd = &cobra.Command{
	Use:   "passage",
	Short: "Document-grounded retrieval for AI assistants",
	Long: `passage chunks, embeds and indexes documents so that questions can be
answered with citable passages.

Documents are added with 'passage ingest' or kept in sync with
'passage watch'. Assistants query the corpus through 'passage mcp serve'.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "", "configuration directory (default ~/.passage)")
	rootCmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "data directory (default ~/.passage/data, \":memory:\" for no persistence)")
}

// SetBootstrap sets the function that builds services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices installs already-built services, bypassing bootstrap.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	corpusService = s.Corpus
	retrievalService = s.Retrieval
	importService = s.Importer
	settingsService = s.Settings
	scheduler = s.Scheduler
	metricsHandler = s.Metrics
	closeServices = s.Close
}

// Execute runs the root command and releases the services it started.
// Command output goes to stdout; logs stay on stderr.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	err := rootCmd.ExecuteContext(ctx)
	return errors.Join(err, teardown())
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(opts.Verbose)

	mode := cmd.Annotations[bootstrapMode]
	switch {
	case mode == bootstrapNone, bootstrap == nil, corpusService != nil:
		return nil
	case mode == bootstrapSettings && settingsService != nil:
		return nil
	}

	o := opts
	o.SettingsOnly = mode == bootstrapSettings
	s, err := bootstrap(cmd.Context(), o)
	if err != nil {
		return fmt.Errorf("starting passage: %w", err)
	}
	SetServices(s)
	return nil
}

func teardown() error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	closeServices = nil
	return err
}

// requireCorpus returns an error when the corpus service is not configured.
func requireCorpus() error {
	if corpusService == nil {
		return errors.New("corpus service not configured")
	}
	return nil
}
