package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/chunkenizer/internal/services"
)

var (
	ingestContentType string
	ingestMetadata    string
	ingestForce       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a file",
	Long: `Extracts, chunks and embeds a file. Content that is already stored
is reported and skipped unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestContentType, "content-type", "", "content type (guessed from the file when empty)")
	ingestCmd.Flags().StringVar(&ingestMetadata, "metadata", "", "JSON object stored with every chunk")
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "replace an existing document with the same content")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	opts := services.UploadOptions{
		Name:         filepath.Base(args[0]),
		ContentType:  ingestContentType,
		ForceReindex: ingestForce,
	}
	if ingestMetadata != "" {
		opts.Metadata = json.RawMessage(ingestMetadata)
	}

	res, err := a.Ingest.IngestReader(cmd.Context(), f, opts)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", opts.Name, err)
	}

	if res.AlreadyExisted {
		cmd.Printf("Already stored as %s\n", res.DocumentID)
	} else {
		cmd.Printf("Ingested %s\n", res.DocumentID)
	}
	cmd.Printf("  Chunks:      %d\n", res.ChunkCount)
	cmd.Printf("  Tokens:      %d\n", res.TotalTokens)
	cmd.Printf("  Fingerprint: %s\n", res.Fingerprint)
	return nil
}
