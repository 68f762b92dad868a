package port

import "docrag/internal/domain"

// Chunker splits page text into embedding-sized windows.
type Chunker interface {
	// Split returns the raw text windows for a single text.
	Split(text string) []string

	// ChunkPage splits a page and assigns each window its content-addressed
	// chunk ID and ordinal index.
	ChunkPage(page domain.Page) []domain.Chunk
}
