package storage

import (
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/sha1n/policy-search-server/internal/index"
)

// Writer buffers document writes to one index and flushes them in batches.
// A writer holds the directory's write lock until Close.
type Writer struct {
	dir       string
	index     bleve.Index
	batch     *bleve.Batch
	batchSize int
	lock      *FileLock
	handles   *handleRegistry
	closed    bool
}

func newWriter(dir string, idx bleve.Index, lock *FileLock, batchSize int, handles *handleRegistry) *Writer {
	return &Writer{
		dir:       dir,
		index:     idx,
		batch:     idx.NewBatch(),
		batchSize: batchSize,
		lock:      lock,
		handles:   handles,
	}
}

// Dir returns the timestamp directory the writer writes to.
func (w *Writer) Dir() string {
	return w.dir
}

// Upsert queues doc, replacing any document with the same id.
func (w *Writer) Upsert(doc *index.Document) error {
	if w.closed {
		return bleve.ErrorIndexClosed
	}
	if err := w.batch.Index(doc.ID(), doc.Data()); err != nil {
		return err
	}
	if w.batch.Size() >= w.batchSize {
		return w.Flush()
	}
	return nil
}

// Delete queues the removal of the documents with the given ids.
func (w *Writer) Delete(ids ...string) error {
	if w.closed {
		return bleve.ErrorIndexClosed
	}
	for _, id := range ids {
		w.batch.Delete(id)
		if w.batch.Size() >= w.batchSize {
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush writes the pending batch to the index.
func (w *Writer) Flush() error {
	if w.batch.Size() == 0 {
		return nil
	}
	err := w.index.Batch(w.batch)
	w.batch.Reset()
	if err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

// Discard drops pending writes that have not been flushed.
func (w *Writer) Discard() {
	w.batch.Reset()
}

// Pending returns the number of queued operations.
func (w *Writer) Pending() int {
	return w.batch.Size()
}

// Close flushes pending writes, releases the index and the write lock.
// Writes flushed before a failure stay committed.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.Flush()
	releaseErr := w.handles.release(w.dir)
	unlockErr := w.lock.Unlock()

	return errors.Join(flushErr, releaseErr, unlockErr)
}
