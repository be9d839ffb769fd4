package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/passage/internal/core/domain"
)

var (
	retrieveK      int
	retrieveFloor  float64
	retrievePerDoc int
	retrieveJSON   bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Find passages relevant to a query",
	Long: `Embeds the query and returns the most similar passages with their
citations, ordered by cosine similarity.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveK, "k", "k", 0, "number of passages (default from config)")
	retrieveCmd.Flags().Float64Var(&retrieveFloor, "floor", 0, "minimum similarity score (default from config)")
	retrieveCmd.Flags().IntVar(&retrievePerDoc, "per-doc", 0, "maximum passages per document, 0 for no cap (default from config)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

// passageJSON is the JSON form of a passage.
type passageJSON struct {
	Citation   string  `json:"citation"`
	DocumentID string  `json:"document_id"`
	Ordinal    int     `json:"chunk_ordinal"`
	Score      float64 `json:"score"`
	Title      string  `json:"title,omitempty"`
	Origin     string  `json:"origin,omitempty"`
	Revision   string  `json:"revision,omitempty"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Text       string  `json:"text"`
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	// Unset flags defer to the configured values; an explicit 0 is passed on.
	opts := domain.RetrieveOptions{K: retrieveK}
	if cmd.Flags().Changed("floor") {
		opts.ScoreFloor = domain.Ptr(retrieveFloor)
	}
	if cmd.Flags().Changed("per-doc") {
		opts.MaxPerDocument = domain.Ptr(retrievePerDoc)
	}

	query := strings.Join(args, " ")
	result, err := retrievalService.Retrieve(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if wantJSON(cmd, retrieveJSON) {
		out := struct {
			Query   string        `json:"query"`
			Partial bool          `json:"partial"`
			Results []passageJSON `json:"results"`
		}{Query: result.Query, Partial: result.Partial, Results: make([]passageJSON, len(result.Passages))}
		for i := range result.Passages {
			p := &result.Passages[i]
			out.Results[i] = passageJSON{
				Citation:   p.Chunk.Ref().String(),
				DocumentID: p.Chunk.DocumentID,
				Ordinal:    p.Chunk.Ordinal,
				Score:      p.Score,
				Title:      p.Title,
				Origin:     p.Origin,
				Revision:   p.Revision,
				Start:      p.Chunk.Start,
				End:        p.Chunk.End,
				Text:       p.Chunk.Content,
			}
		}
		return printJSON(cmd, out)
	}

	return outputPassages(cmd, result)
}

func outputPassages(cmd *cobra.Command, result *domain.RetrievalResult) error {
	if len(result.Passages) == 0 {
		cmd.Println("No passages found.")
		return nil
	}

	for i := range result.Passages {
		p := &result.Passages[i]
		title := p.Title
		if title == "" {
			title = p.Chunk.DocumentID
		}
		// Format: [N] Title (score) citation
		cmd.Printf("  [%d] %s (%.3f) %s\n", i+1, title, p.Score, p.Chunk.Ref())
		cmd.Printf("      %s\n\n", snippet(p.Chunk.Content, 240))
	}

	if result.Partial {
		cmd.Println("Query timed out; results are partial.")
	}
	return nil
}

// snippet flattens whitespace and truncates text to at most n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
