package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var askShowContext bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from indexed documents",
	Long: `Retrieves ranked context for the question and asks the configured
chat model to answer from those passages only, citing them by number.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&searchIndexID, "index-id", "i", "", "index to search (required)")
	askCmd.Flags().IntVarP(&askTopN, "top-n", "n", 0, "context chunks to supply (default from config)")
	askCmd.Flags().BoolVar(&askShowContext, "show-context", false, "print the supporting passages")
	_ = askCmd.MarkFlagRequired("index-id")
	rootCmd.AddCommand(askCmd)
}

var askTopN int

func runAsk(cmd *cobra.Command, args []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	req := buildRequest(args[0])
	if askTopN > 0 {
		req.TopN = askTopN
	}

	answer, err := answerService.Ask(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(answer.Text)

	if askShowContext && answer.Pack != nil && len(answer.Pack.Chunks) > 0 {
		cmd.Println("\nSources:")
		for i, chunk := range answer.Pack.Chunks {
			cmd.Printf("  [%d] %s\n", i+1, chunk.Citation)
		}
	}
	return nil
}
