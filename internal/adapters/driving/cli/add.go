package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var addIndex bool

var addCmd = &cobra.Command{
	Use:   "add [file]",
	Short: "Add a document to the project",
	Long: `Stores a PDF, Markdown or DOCX file and registers it as a document.
With --index the document is queued for indexing straight away.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().BoolVar(&addIndex, "index", false, "start indexing after adding")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	ctx := cmd.Context()
	result, err := documentService.Add(ctx, ownerFlag, projectFlag, filepath.Base(path), data)
	if err != nil {
		return fmt.Errorf("adding document: %w", err)
	}

	cmd.Printf("Added %s\n", filepath.Base(path))
	cmd.Printf("  Document ID: %s\n", result.DocumentID)
	cmd.Printf("  Size:        %d bytes\n", result.SizeBytes)

	if !addIndex {
		cmd.Printf("\nRun 'docquery index %s' to make it searchable.\n", result.DocumentID)
		return nil
	}

	status, err := indexingService.Start(ctx, ownerFlag, projectFlag, result.DocumentID, cfg.EmbedConfig())
	if err != nil {
		return fmt.Errorf("starting index run: %w", err)
	}
	cmd.Printf("  Index run:   %s (%s)\n", status.IndexID, status.Status)
	return waitForIndex(cmd, status.IndexID)
}
