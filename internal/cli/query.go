package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	queryText string
	queryK    int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve the most relevant chunks for a query",
	Long: `Embed the query and return the top-k most similar chunks from the
vector index, ordered by relevance.

Examples:
  docrag query -q "rate limits"        # Top 5 chunks
  docrag query -q "rate limits" -k 10  # Top 10 chunks
  docrag query -q "rate limits" --json # Raw response envelope`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "query text (required)")
	queryCmd.Flags().IntVarP(&queryK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "emit the raw JSON envelope")
	_ = queryCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	uc, err := newRetrieveUseCase(cfg)
	if err != nil {
		return err
	}
	k := queryK
	if k == 0 {
		k = uc.DefaultK()
	}

	resp, errResp := uc.Envelope(cmd.Context(), queryText, k)
	if errResp != nil {
		return emitError(errResp)
	}

	if queryJSON {
		return emitJSON(resp)
	}

	fmt.Printf("Found %d results for %q\n\n", resp.TotalResults, resp.Query)
	for i, r := range resp.Results {
		fmt.Printf("%d. [%.3f] %s\n", i+1, r.RelevanceScore, r.URL)
		fmt.Printf("   %s\n\n", snippet(r.ChunkText, 200))
	}
	return nil
}

// emitError prints the error envelope as JSON and fails the command without
// cobra's usage text: the input was understood, the pipeline refused it.
func emitError(errResp any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(errResp)
	os.Exit(1)
	return nil
}

func emitJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
