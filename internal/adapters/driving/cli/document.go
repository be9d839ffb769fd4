package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage stored documents",
	Long:  `List, view, or remove documents in the corpus.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info and chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Remove a document and its passages",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var documentPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every document",
	Long:  `Deletes all documents, chunks and index entries. Requires --yes.`,
	Args:  cobra.NoArgs,
	RunE:  runDocumentPurge,
}

var (
	documentJSON bool
	purgeYes     bool
)

func init() {
	documentListCmd.Flags().BoolVar(&documentJSON, "json", false, "output as JSON")
	documentPurgeCmd.Flags().BoolVar(&purgeYes, "yes", false, "confirm removal of every document")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentPurgeCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if err := requireCorpus(); err != nil {
		return err
	}

	docs, err := corpusService.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if wantJSON(cmd, documentJSON) {
		return printJSON(cmd, docs)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		if docs[i].Title != "" {
			cmd.Printf("    Title:      %s\n", docs[i].Title)
		}
		cmd.Printf("    Generation: %d\n", docs[i].Generation)
		cmd.Printf("    Chunks:     %d (%d failed)\n", docs[i].Chunks, docs[i].Failed)
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if err := requireCorpus(); err != nil {
		return err
	}

	rec, err := corpusService.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	doc := &rec.Document

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:      %s\n", doc.Title)
	cmd.Printf("  Origin:     %s\n", doc.Origin)
	cmd.Printf("  Revision:   %s\n", doc.Revision)
	cmd.Printf("  Generation: %d\n", rec.Generation)
	cmd.Printf("  Chunks:     %d (%d indexed)\n", len(rec.Chunks), rec.IndexedChunks())
	cmd.Printf("  Created:    %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:    %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for _, k := range slices.Sorted(maps.Keys(doc.Metadata)) {
			cmd.Printf("    %s: %v\n", k, doc.Metadata[k])
		}
	}

	if len(rec.Failures) > 0 {
		cmd.Println("\n  Failed chunks:")
		for _, f := range rec.Failures {
			cmd.Printf("    #%d %s: %s\n", f.Ordinal, f.Code, f.Reason)
		}
	}

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if err := requireCorpus(); err != nil {
		return err
	}

	rec, err := corpusService.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Print(rec.Document.Content)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if err := requireCorpus(); err != nil {
		return err
	}

	existed, err := corpusService.Delete(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if !existed {
		cmd.Printf("Document %s not found, nothing deleted.\n", args[0])
		return nil
	}
	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}

func runDocumentPurge(cmd *cobra.Command, _ []string) error {
	if err := requireCorpus(); err != nil {
		return err
	}
	if !purgeYes {
		return errors.New("refusing to purge without --yes")
	}

	if err := corpusService.Purge(cmd.Context()); err != nil {
		return fmt.Errorf("failed to purge corpus: %w", err)
	}

	cmd.Println("All documents removed.")
	return nil
}
