// Package chunker splits page text into fixed-size overlapping windows for
// embedding.
package chunker

import (
	"fmt"

	"github.com/google/uuid"

	"docrag/internal/domain"
)

// chunkNamespace seeds the deterministic chunk IDs. Fixed forever: changing
// it would re-key every stored point and turn re-ingestion into duplication.
var chunkNamespace = uuid.MustParse("8c1f95d4-7a20-4b83-9f4e-3d2a6f0c51e7")

// WindowChunker slides a window of chunkSize runes across the text,
// advancing chunkSize-overlap runes per step. The final window is truncated
// at the end of the text, so every rune of the input is covered by at least
// one window.
type WindowChunker struct {
	chunkSize int
	overlap   int
}

// NewWindowChunker rejects overlap >= chunkSize: the advance step would be
// zero or negative and the window loop would never terminate.
func NewWindowChunker(chunkSize, overlap int) (*WindowChunker, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be at least 1, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must satisfy 0 <= overlap < chunk size, got overlap=%d chunk_size=%d",
			overlap, chunkSize)
	}
	return &WindowChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split returns the text windows in order. Text at most one window wide is
// returned unchanged as a single element.
func (c *WindowChunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	step := c.chunkSize - c.overlap
	var chunks []string

	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks
}

// ChunkPage splits a page and assigns each window its ordinal and
// content-addressed ID.
func (c *WindowChunker) ChunkPage(page domain.Page) []domain.Chunk {
	texts := c.Split(page.Text)
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:        ChunkID(page.URL, text),
			Text:      text,
			SourceURL: page.URL,
			Title:     page.Title,
			Index:     i,
		})
	}
	return chunks
}

// ChunkID derives the deterministic chunk identifier from (sourceURL, text).
// It is a name-based UUID, stable across processes and implementations, and
// directly usable as a vector index point ID.
func ChunkID(sourceURL, text string) string {
	data := make([]byte, 0, len(sourceURL)+len(text)+1)
	data = append(data, sourceURL...)
	data = append(data, 0)
	data = append(data, text...)
	return uuid.NewSHA1(chunkNamespace, data).String()
}
