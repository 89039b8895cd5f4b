package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// openTimeout bounds how long opening an index waits for another process
// holding the same index open.
const openTimeout = "5s"

// handle is one open Bleve index shared by every writer and searcher of a
// directory in this process. Bleve allows a single open instance per path.
type handle struct {
	index bleve.Index
	refs  int
}

// handleRegistry reference-counts open indexes by timestamp directory and
// defers directory removal until the last reference is released.
type handleRegistry struct {
	mu      sync.Mutex
	handles map[string]*handle
	doomed  map[string]bool
}

func newHandleRegistry() *handleRegistry {
	return &handleRegistry{
		handles: make(map[string]*handle),
		doomed:  make(map[string]bool),
	}
}

// acquire returns the open index of dir, opening or creating it as needed.
func (r *handleRegistry) acquire(dir string, m mapping.IndexMapping) (bleve.Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[dir]; ok {
		h.refs++
		return h.index, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	idx, err := openOrCreate(indexPath(dir), m)
	if err != nil {
		return nil, err
	}

	r.handles[dir] = &handle{index: idx, refs: 1}
	return idx, nil
}

// release drops one reference to dir. The last release closes the index and
// removes the directory if it was superseded while open.
func (r *handleRegistry) release(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[dir]
	if !ok {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}

	delete(r.handles, dir)
	err := h.index.Close()
	if err != nil {
		err = fmt.Errorf("failed to close index %s: %w", dir, err)
	}

	if r.doomed[dir] {
		delete(r.doomed, dir)
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			slog.Warn("Failed to remove superseded index directory", "dir", dir, "error", rmErr)
		} else {
			slog.Info("Removed superseded index directory", "dir", dir)
		}
	}

	return err
}

// remove deletes dir now, or at its last release if it is open.
func (r *handleRegistry) remove(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, open := r.handles[dir]; open {
		r.doomed[dir] = true
		slog.Info("Deferring removal of index directory still in use", "dir", dir)
		return nil
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	return nil
}

// inUse reports whether any handle is open on dir.
func (r *handleRegistry) inUse(dir string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, open := r.handles[dir]
	return open
}

// superseded reports whether dir awaits removal at its last release.
func (r *handleRegistry) superseded(dir string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.doomed[dir]
}

// openCount returns the number of open indexes.
func (r *handleRegistry) openCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.handles)
}

func openOrCreate(path string, m mapping.IndexMapping) (bleve.Index, error) {
	idx, err := bleve.OpenUsing(path, map[string]interface{}{
		"bolt_timeout": openTimeout,
	})
	if err == nil {
		return idx, nil
	}
	if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) && !errors.Is(err, bleve.ErrorIndexMetaMissing) {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}

	idx, err = bleve.New(path, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create index %s: %w", path, err)
	}
	return idx, nil
}
