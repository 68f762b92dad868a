package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/ledger"
	"docrag/internal/adapter/pagesource"
	"docrag/internal/usecase"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Chunk, embed and index page files",
	Long: `Ingest documentation page files from the given directory into the
vector index. Pages whose content is unchanged since the last run are
skipped; pass --force to re-embed everything.

Examples:
  docrag ingest ./pages          # Ingest page files from ./pages
  docrag ingest ./pages --force  # Re-embed even unchanged pages`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-embed pages even if unchanged")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := rootDir
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	ck, err := chunker.NewWindowChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	index, err := newIndex(cfg)
	if err != nil {
		return err
	}

	if err := config.EnsureStateDir(rootDir); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	led, err := ledger.Open(config.LedgerPath(rootDir))
	if err != nil {
		return fmt.Errorf("failed to open ingestion ledger: %w", err)
	}
	defer led.Close()

	uc := usecase.NewIngestUseCase(ck, embedder, index, usecase.IngestOptions{
		Collection: cfg.Index.Collection,
		Ledger:     led,
		Force:      ingestForce,
		Logger:     log,
	})

	source := pagesource.NewFileSource(path, cfg.Ingest.Includes, cfg.Ingest.Excludes, log)

	var bar *progressbar.ProgressBar
	uc.Progress = func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Ingesting pages"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(30),
			)
		}
		_ = bar.Set(done)
	}

	result, err := uc.Ingest(cmd.Context(), source)
	if err != nil {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	fmt.Printf("Ingested %d pages (%d chunks), skipped %d unchanged, %d failed\n",
		result.PagesIngested, result.ChunksUpserted, result.PagesSkipped, result.PagesFailed)
	for _, pageErr := range result.Errors {
		fmt.Fprintf(os.Stderr, "  failed: %v\n", pageErr)
	}
	if result.PagesFailed > 0 {
		return fmt.Errorf("%d pages failed to ingest", result.PagesFailed)
	}
	return nil
}
