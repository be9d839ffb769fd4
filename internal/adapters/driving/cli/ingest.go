package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/passage/internal/core/domain"
)

var (
	ingestID       string
	ingestTitle    string
	ingestRevision string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Add files to the corpus",
	Long: `Normalises, chunks, embeds and indexes files. Directories are walked
recursively; hidden entries and binary files are skipped.

A file is stored under its absolute path, so ingesting it again replaces
the previous version. --id, --title and --revision override the defaults
and need exactly one file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "document ID (default: absolute path)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title")
	ingestCmd.Flags().StringVar(&ingestRevision, "revision", "", "document revision marker")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if importService == nil {
		return errors.New("import service not configured")
	}
	ctx := cmd.Context()

	overrides := domain.ImportOptions{ID: ingestID, Title: ingestTitle, Revision: ingestRevision}
	if overrides != (domain.ImportOptions{}) {
		if len(args) != 1 {
			return errors.New("--id, --title and --revision need exactly one file")
		}
		res, err := importService.ImportFile(ctx, args[0], overrides)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", args[0], err)
		}
		printIngestResult(cmd, res)
		return nil
	}

	results, err := importService.ImportPaths(ctx, args)
	for i := range results {
		printIngestResult(cmd, &results[i])
	}
	cmd.Printf("Ingested %d documents\n", len(results))
	if err != nil {
		return fmt.Errorf("some files failed: %w", err)
	}
	return nil
}

func printIngestResult(cmd *cobra.Command, res *domain.IngestResult) {
	verb := "Added"
	if res.Replaced {
		verb = "Replaced"
	}
	cmd.Printf("%s %s (generation %d, %d/%d chunks indexed)\n",
		verb, res.DocumentID, res.Generation, res.ChunksIndexed, res.ChunksTotal)
	for _, f := range res.Failures {
		cmd.Printf("  chunk %d %s: %s\n", f.Ordinal, f.Code, f.Reason)
	}
}
