package storage

import (
	"context"

	"github.com/blevesearch/bleve/v2"
)

// Searcher is a short-lived read handle on one index. Open one per query so
// results reflect the latest committed writes.
type Searcher struct {
	dir     string
	index   bleve.Index
	handles *handleRegistry
	closed  bool
}

// Dir returns the timestamp directory being searched.
func (s *Searcher) Dir() string {
	return s.dir
}

// Search executes a search request.
func (s *Searcher) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	if s.closed {
		return nil, bleve.ErrorIndexClosed
	}
	return s.index.SearchInContext(ctx, req)
}

// DocCount returns the number of documents in the index.
func (s *Searcher) DocCount() (uint64, error) {
	if s.closed {
		return 0, bleve.ErrorIndexClosed
	}
	return s.index.DocCount()
}

// Close releases the searcher's reference to the index.
func (s *Searcher) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.handles.release(s.dir)
}
