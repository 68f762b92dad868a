package domain

import "time"

// Page is a unit of ingestion: the extracted text of one documentation page.
type Page struct {
	URL      string            `json:"url"`
	Title    string            `json:"title"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Chunk is a contiguous, possibly overlapping window of a page sized for
// embedding. ID is content-addressed: derived from (SourceURL, Text), so
// re-ingesting identical content yields the same ID and upserts are
// idempotent.
type Chunk struct {
	ID        string
	Text      string
	SourceURL string
	Title     string
	Index     int
	Metadata  map[string]string
}

// SearchResult is one ranked hit from the vector index. RelevanceScore is
// cosine similarity normalized to [0,1]; results are always ordered by it
// descending.
type SearchResult struct {
	ChunkText      string  `json:"chunk_text"`
	URL            string  `json:"url"`
	ChunkID        string  `json:"chunk_id"`
	RelevanceScore float64 `json:"relevance_score"`
}

// QueryResponse is the success envelope of a retrieval.
// TotalResults == len(Results) <= K.
type QueryResponse struct {
	Query        string         `json:"query"`
	K            int            `json:"k"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	Timestamp    string         `json:"timestamp"`
}

// ErrorResponse is the failure envelope. A retrieval produces either a
// QueryResponse or an ErrorResponse, never both.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

// MatchedChunk is a retrieved chunk as surfaced in an AnswerEnvelope.
type MatchedChunk struct {
	ChunkID        string  `json:"chunk_id"`
	Text           string  `json:"text"`
	RelevanceScore float64 `json:"relevance_score"`
}

// AnswerEnvelope is the result of answer synthesis: the generated answer,
// the deduplicated source URLs in first-seen order, and the chunks the
// answer was grounded in.
type AnswerEnvelope struct {
	Answer        string         `json:"answer"`
	Sources       []string       `json:"sources"`
	MatchedChunks []MatchedChunk `json:"matched_chunks"`
}

// Timestamp returns the envelope timestamp shared by success and error
// responses.
func Timestamp() string {
	return time.Now().Format(time.RFC3339)
}
