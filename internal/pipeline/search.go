package pipeline

import (
	"context"
	"fmt"

	"github.com/codesift/codesift/internal/vector"
)

// Searcher answers similarity queries against the vector index using
// the same embedder the pipeline indexed with.
type Searcher struct {
	embedder   Embedder
	index      VectorIndex
	maxResults int
}

// NewSearcher creates a Searcher. maxResults caps the limit a caller
// may request; 0 means no cap.
func NewSearcher(embedder Embedder, index VectorIndex, maxResults int) *Searcher {
	return &Searcher{
		embedder:   embedder,
		index:      index,
		maxResults: maxResults,
	}
}

// Search embeds the query and returns up to limit nearest chunks in
// descending score order, exactly as the index ranks them. A non-empty
// projectID restricts results to that project. No reranking,
// deduplication, or threshold filtering is applied.
func (s *Searcher) Search(ctx context.Context, query string, limit int, projectID string) ([]vector.Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if limit <= 0 {
		limit = 10
	}
	if s.maxResults > 0 && limit > s.maxResults {
		limit = s.maxResults
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return s.index.Search(queryVec, limit, projectID)
}
