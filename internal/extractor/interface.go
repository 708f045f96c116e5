package extractor

import "context"

// Backend runs crawl requests.
type Backend interface {
	// Name returns the unique identifier for this backend
	Name() string

	// Crawl runs req and returns one result per URL, in request order
	Crawl(ctx context.Context, req *CrawlRequest) ([]CrawlResult, error)

	// IsAvailable checks if the backend is properly configured
	IsAvailable() bool
}
