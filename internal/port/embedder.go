package port

import "context"

// Embedder generates fixed-dimension vector embeddings for text.
//
// Document and query embeddings use distinct modes: some providers produce
// asymmetric embeddings where a query vector is only comparable against
// document vectors. Documents must always go through EmbedDocuments and
// queries through EmbedQuery or similarity scores are meaningless.
type Embedder interface {
	// EmbedDocuments embeds the given texts in document mode, preserving
	// input order. Rejects an empty slice and blank elements.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query in query mode. Oversized queries are
	// truncated, not rejected.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int
}
