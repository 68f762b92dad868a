package port

import "docrag/internal/domain"

// PageSource supplies pages for ingestion. Crawling and HTML extraction live
// behind this boundary; the pipeline only sees extracted text.
type PageSource interface {
	Pages() ([]domain.Page, error)
}
