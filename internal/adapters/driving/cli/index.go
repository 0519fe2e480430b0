package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// pollInterval is how often --wait refreshes the run status.
const pollInterval = 300 * time.Millisecond

var indexWait bool

var indexCmd = &cobra.Command{
	Use:   "index [document-id]",
	Short: "Index a document for retrieval",
	Long: `Starts a background indexing run: block extraction, structural
chunking and batched embedding. Starting again while a run for the same
document and embedding config is active returns the existing run.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexWait, "wait", "w", true, "wait for the run to finish")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	status, err := indexingService.Start(cmd.Context(), ownerFlag, projectFlag, args[0], cfg.EmbedConfig())
	if err != nil {
		return fmt.Errorf("starting index run: %w", err)
	}
	cmd.Printf("Index run %s (%s)\n", status.IndexID, status.Status)

	if !indexWait {
		return nil
	}
	return waitForIndex(cmd, status.IndexID)
}

// waitForIndex polls a run until it reaches a terminal state, echoing
// progress along the way.
func waitForIndex(cmd *cobra.Command, indexID string) error {
	lastMessage := ""
	for {
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(pollInterval):
		}

		status, err := indexingService.Status(cmd.Context(), indexID)
		if err != nil {
			return fmt.Errorf("polling index run: %w", err)
		}

		if status.Message != lastMessage {
			cmd.Printf("  [%3d%%] %s\n", status.Progress, status.Message)
			lastMessage = status.Message
		}

		if status.Status.Terminal() {
			if status.Error != "" {
				return fmt.Errorf("indexing failed: %s", status.Error)
			}
			cmd.Printf("Run %s finished: %s\n", indexID, status.Status)
			return nil
		}
	}
}
