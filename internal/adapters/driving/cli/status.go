package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docquery/internal/core/ports/driving"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [index-id]",
	Short: "Show the state of an index run",
	Long: `Shows the lifecycle state, progress and message of an index run.
Without an id the most recent run for the project is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [index-id]",
	Short: "Cancel a running index run",
	Long: `Requests cooperative cancellation. The worker stops at its next
checkpoint and removes any chunks and vectors it already wrote.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	var (
		status *driving.IndexStatus
		err    error
	)
	if len(args) == 1 {
		status, err = indexingService.Status(cmd.Context(), args[0])
	} else {
		status, err = indexingService.LatestStatus(cmd.Context(), projectFlag)
	}
	if err != nil {
		return fmt.Errorf("fetching status: %w", err)
	}

	return printStatus(cmd, status)
}

func runCancel(cmd *cobra.Command, args []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	status, err := indexingService.Cancel(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("cancelling index run: %w", err)
	}
	if status.Status.Terminal() {
		cmd.Printf("Run %s is already %s\n", status.IndexID, status.Status)
		return nil
	}
	cmd.Printf("Cancellation requested for run %s\n", status.IndexID)
	return nil
}

func printStatus(cmd *cobra.Command, status *driving.IndexStatus) error {
	if statusJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Run:      %s\n", status.IndexID)
	cmd.Printf("Status:   %s\n", status.Status)
	cmd.Printf("Progress: %d%%\n", status.Progress)
	if status.Message != "" {
		cmd.Printf("Message:  %s\n", status.Message)
	}
	if status.ChunkCount > 0 {
		cmd.Printf("Chunks:   %d\n", status.ChunkCount)
	}
	if status.Error != "" {
		cmd.Printf("Error:    %s\n", status.Error)
	}
	if status.CancelRequested {
		cmd.Println("Cancellation requested")
	}
	return nil
}
