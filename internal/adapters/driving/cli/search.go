package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docquery/internal/core/domain"
	"github.com/custodia-labs/docquery/internal/core/ports/driving"
)

var (
	searchIndexID string
	searchTopK    int
	searchTopN    int
	searchJSON    bool
	searchRerank  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve ranked context for a question",
	Long: `Runs the retrieval pipeline against one index: query expansion,
vector search per sub-query, max-score merging and optional reranking.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchIndexID, "index-id", "i", "", "index to search (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "candidates per sub-query (default from config)")
	searchCmd.Flags().IntVarP(&searchTopN, "top-n", "n", 0, "chunks in the final context (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output the context pack as JSON")
	searchCmd.Flags().BoolVar(&searchRerank, "rerank", true, "rerank candidates with the chat model")
	_ = searchCmd.MarkFlagRequired("index-id")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	pack, err := retrievalService.BuildContext(cmd.Context(), buildRequest(args[0]))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(pack, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling context pack: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	return printPack(cmd, pack)
}

// buildRequest assembles the retrieval request from flags and config.
func buildRequest(query string) driving.BuildRequest {
	req := driving.BuildRequest{
		OwnerID:   ownerFlag,
		ProjectID: projectFlag,
		IndexID:   searchIndexID,
		Query:     query,
		TopK:      searchTopK,
		TopN:      searchTopN,
	}
	if req.TopK == 0 {
		req.TopK = cfg.Retrieval.TopK
	}
	if req.TopN == 0 {
		req.TopN = cfg.Retrieval.TopN
	}
	if searchRerank && cfg.LLM.Rerank {
		req.RerankTimeout = time.Duration(cfg.LLM.RerankTimeoutMS) * time.Millisecond
	}
	return req
}

func printPack(cmd *cobra.Command, pack *domain.ContextPack) error {
	if len(pack.Chunks) == 0 {
		cmd.Println("No matching chunks found.")
		return nil
	}

	cmd.Printf("Context for %q:\n\n", pack.Query)
	for i, chunk := range pack.Chunks {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, chunk.Citation, chunk.Score)
		cmd.Printf("      %s\n\n", snippet(chunk.Text, 200))
	}
	return nil
}

// snippet trims text to a single display line.
func snippet(text string, max int) string {
	clean := make([]rune, 0, len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' {
			r = ' '
		}
		clean = append(clean, r)
	}
	if len(clean) > max {
		return string(clean[:max]) + "..."
	}
	return string(clean)
}
