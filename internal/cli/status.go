package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/adapter/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ingestion ledger statistics",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := config.LedgerPath(rootDir)
	if _, err := os.Stat(path); err != nil {
		fmt.Println("No ingestion ledger found. Run 'docrag ingest' first.")
		return nil
	}

	led, err := ledger.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open ingestion ledger: %w", err)
	}
	defer led.Close()

	stats, err := led.GetStats()
	if err != nil {
		return err
	}
	gen, err := led.Generation()
	if err != nil {
		return err
	}

	fmt.Printf("Collection:   %s\n", cfg.Index.Collection)
	fmt.Printf("Pages:        %d\n", stats.TotalPages)
	fmt.Printf("Chunks:       %d\n", stats.TotalChunks)
	fmt.Printf("Generation:   %d\n", gen)
	if stats.LastIngestAt != "" {
		fmt.Printf("Last ingest:  %s\n", stats.LastIngestAt)
	}
	return nil
}
