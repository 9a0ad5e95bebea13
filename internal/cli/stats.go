package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store totals",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}
	st, err := a.Documents.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	cmd.Printf("Documents:        %d (%d pending, %d failed)\n", st.Documents, st.PendingDocuments, st.FailedDocuments)
	cmd.Printf("Chunks:           %d\n", st.TotalChunks)
	cmd.Printf("Tokens:           %d\n", st.TotalTokens)
	cmd.Printf("Chunks/document:  %.2f\n", st.AvgChunksPerDoc)
	cmd.Printf("Vectors stored:   %d\n", st.VectorsStored)
	cmd.Printf("Embedding model:  %s (%d dims)\n", st.EmbeddingModel, st.EmbeddingDimension)
	return nil
}
