package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain the vector index",
}

var indexVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the index matches the corpus",
	Args:  cobra.NoArgs,
	RunE:  runIndexVerify,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recreate the index from stored vectors",
	Args:  cobra.NoArgs,
	RunE:  runIndexRebuild,
}

var indexCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Drop deleted entries from the index",
	Args:  cobra.NoArgs,
	RunE:  runIndexCompact,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus and index counters",
	Args:  cobra.NoArgs,
	RunE:  runIndexStats,
}

var indexStatsJSON bool

func init() {
	indexStatsCmd.Flags().BoolVar(&indexStatsJSON, "json", false, "output as JSON")

	indexCmd.AddCommand(indexVerifyCmd)
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexCompactCmd)
	indexCmd.AddCommand(indexStatsCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexVerify(cmd *cobra.Command, _ []string) error {
	if err := requireCorpus(); err != nil {
		return err
	}
	if err := corpusService.Verify(cmd.Context()); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	cmd.Println("Index is consistent with the corpus.")
	return nil
}

func runIndexRebuild(cmd *cobra.Command, _ []string) error {
	if err := requireCorpus(); err != nil {
		return err
	}
	if err := corpusService.Rebuild(cmd.Context()); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	cmd.Println("Index rebuilt.")
	return nil
}

func runIndexCompact(cmd *cobra.Command, _ []string) error {
	if err := requireCorpus(); err != nil {
		return err
	}
	if err := corpusService.Compact(cmd.Context()); err != nil {
		return fmt.Errorf("compaction failed: %w", err)
	}
	cmd.Println("Index compacted.")
	return nil
}

func runIndexStats(cmd *cobra.Command, _ []string) error {
	if err := requireCorpus(); err != nil {
		return err
	}

	stats, err := corpusService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	if wantJSON(cmd, indexStatsJSON) {
		return printJSON(cmd, stats)
	}

	cmd.Printf("Documents:     %d\n", stats.Documents)
	cmd.Printf("Chunks:        %d\n", stats.Chunks)
	cmd.Printf("Index entries: %d\n", stats.IndexEntries)
	cmd.Printf("Failed chunks: %d\n", stats.FailedChunks)
	cmd.Printf("Tombstones:    %d\n", stats.Tombstones)
	cmd.Printf("Dimension:     %d\n", stats.Dimension)
	cmd.Printf("Last seq:      %d\n", stats.LastSeq)
	cmd.Printf("Index kind:    %s\n", stats.IndexKind)
	return nil
}
