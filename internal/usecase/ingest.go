package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"docrag/internal/adapter/ledger"
	"docrag/internal/domain"
	"docrag/internal/port"
)

// IngestUseCase runs the indexing pipeline: chunk each page, embed the
// chunks in document mode, upsert them into the vector index. Chunk IDs are
// content-addressed, so re-ingesting the same corpus converges instead of
// duplicating points.
type IngestUseCase struct {
	chunker  port.Chunker
	embedder port.Embedder
	index    port.VectorIndex
	ledger   *ledger.Ledger

	collection string
	force      bool
	log        *logrus.Logger

	// Progress, when set, is called after each page with (done, total).
	Progress func(done, total int)
}

// IngestOptions configures the ingestion pipeline. Ledger is optional; with
// no ledger every page is re-embedded on every run.
type IngestOptions struct {
	Collection string
	Ledger     *ledger.Ledger
	// Force re-embeds pages even when the ledger says they are unchanged.
	Force  bool
	Logger *logrus.Logger
}

// IngestResult summarizes one ingestion run. Errors holds per-page failures;
// a failed page never aborts the run.
type IngestResult struct {
	PagesIngested  int
	PagesSkipped   int
	PagesFailed    int
	ChunksUpserted int
	Errors         []error
}

func NewIngestUseCase(chunker port.Chunker, embedder port.Embedder, index port.VectorIndex, opts IngestOptions) *IngestUseCase {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &IngestUseCase{
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		ledger:     opts.Ledger,
		collection: opts.Collection,
		force:      opts.Force,
		log:        opts.Logger,
	}
}

// Ingest indexes all pages from the source. The collection is created on
// first run; per-page failures are recorded and skipped so one bad page
// cannot poison the rest of the corpus.
func (u *IngestUseCase) Ingest(ctx context.Context, source port.PageSource) (*IngestResult, error) {
	pages, err := source.Pages()
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}

	created, err := u.index.EnsureCollection(ctx, u.collection, u.embedder.Dimension())
	if err != nil {
		return nil, err
	}
	if created {
		u.log.WithField("collection", u.collection).Info("created collection")
	}

	result := &IngestResult{}
	for i, page := range pages {
		if err := u.ingestPage(ctx, page, result); err != nil {
			result.PagesFailed++
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", page.URL, err))
			u.log.WithError(err).WithField("url", page.URL).Warn("page ingestion failed, skipping")
		}
		if u.Progress != nil {
			u.Progress(i+1, len(pages))
		}
	}

	if u.ledger != nil && result.PagesIngested > 0 {
		// Derive totals from the page records: re-ingesting a changed page
		// overwrites its record, so counts never drift.
		pages, chunks, err := u.ledger.Totals()
		if err == nil {
			stats := ledger.Stats{
				TotalPages:   pages,
				TotalChunks:  chunks,
				LastIngestAt: domain.Timestamp(),
			}
			if err := u.ledger.UpdateStats(stats); err != nil {
				u.log.WithError(err).Warn("failed to update ledger stats")
			}
		}
	}

	u.log.WithFields(logrus.Fields{
		"ingested": result.PagesIngested,
		"skipped":  result.PagesSkipped,
		"failed":   result.PagesFailed,
		"chunks":   result.ChunksUpserted,
	}).Info("ingestion complete")

	return result, nil
}

func (u *IngestUseCase) ingestPage(ctx context.Context, page domain.Page, result *IngestResult) error {
	hash := ledger.ContentHash(page.Text)

	if u.ledger != nil && !u.force {
		unchanged, err := u.ledger.Unchanged(page.URL, hash)
		if err != nil {
			return fmt.Errorf("ledger lookup: %w", err)
		}
		if unchanged {
			result.PagesSkipped++
			u.log.WithField("url", page.URL).Debug("content unchanged, skipping")
			return nil
		}
	}

	if strings.TrimSpace(page.Text) == "" {
		result.PagesSkipped++
		u.log.WithField("url", page.URL).Debug("no text to index, skipping")
		return nil
	}

	chunks := u.chunker.ChunkPage(page)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := u.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}

	for i, chunk := range chunks {
		chunk.Metadata = chunkMetadata(page, chunk)
		if err := u.index.Upsert(ctx, chunk, vectors[i]); err != nil {
			return err
		}
		result.ChunksUpserted++
	}

	if u.ledger != nil {
		if err := u.ledger.Put(page.URL, hash, len(chunks)); err != nil {
			return fmt.Errorf("ledger record: %w", err)
		}
	}

	result.PagesIngested++
	return nil
}

// chunkMetadata carries page metadata onto each chunk, plus derived fields.
func chunkMetadata(page domain.Page, chunk domain.Chunk) map[string]string {
	meta := map[string]string{
		"word_count":   strconv.Itoa(len(strings.Fields(chunk.Text))),
		"content_type": "documentation",
	}
	for k, v := range page.Metadata {
		meta[k] = v
	}
	return meta
}
