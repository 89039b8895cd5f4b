package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/sha1n/policy-search-server/internal/domain"
)

const (
	// DefaultBatchSize is the number of documents buffered before a writer flushes
	DefaultBatchSize = 100

	// DefaultLockTimeout is how long a writer waits for another writer of the same directory
	DefaultLockTimeout = 30 * time.Second
)

var (
	// ErrNilDirectory indicates a writer or searcher was requested without a directory
	ErrNilDirectory = errors.New("index directory is required")

	// ErrIndexInUse indicates a directory cannot be moved while an index on it is open
	ErrIndexInUse = errors.New("index directory is in use")
)

// Config configures a Facade.
type Config struct {
	// BaseDir holds the Live and Regeneration trees
	BaseDir string

	// BatchSize is the writer flush threshold
	BatchSize int

	// LockTimeout bounds how long a writer waits for the directory's write lock
	LockTimeout time.Duration
}

// Facade owns the on-disk layout of every index:
//
//	{base}/Live/{tenant}/{environment}/{Quote|Policy}/{yyyyMMdd-HHmmss}
//	{base}/Regeneration/{tenant}/{environment}/{Quote|Policy}/{yyyyMMdd-HHmmss}
//
// The newest Live directory is authoritative. A Regeneration directory is
// built from scratch and then promoted to Live.
type Facade struct {
	baseDir     string
	batchSize   int
	lockTimeout time.Duration
	clock       domain.Clock
	handles     *handleRegistry
}

// NewFacade creates a storage facade rooted at cfg.BaseDir.
func NewFacade(cfg Config, clock domain.Clock) *Facade {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}

	return &Facade{
		baseDir:     cfg.BaseDir,
		batchSize:   cfg.BatchSize,
		lockTimeout: cfg.LockTimeout,
		clock:       clock,
		handles:     newHandleRegistry(),
	}
}

// BaseDir returns the root of all index trees.
func (f *Facade) BaseDir() string {
	return f.baseDir
}

// GetLatestLiveIndexDirectory returns the authoritative live directory of a
// location. The boolean is false when nothing has been indexed yet.
// Directories superseded by a promotion but still open are never returned.
func (f *Facade) GetLatestLiveIndexDirectory(loc Location) (string, bool, error) {
	if err := loc.Validate(); err != nil {
		return "", false, err
	}
	return f.latestLiveDir(loc)
}

// latestLiveDir returns the newest live directory not awaiting removal.
func (f *Facade) latestLiveDir(loc Location) (string, bool, error) {
	root := f.liveRoot(loc)
	names, err := listTimestampDirs(root)
	if err != nil {
		return "", false, err
	}
	for i := len(names) - 1; i >= 0; i-- {
		dir := filepath.Join(root, names[i])
		if !f.handles.superseded(dir) {
			return dir, true, nil
		}
	}
	return "", false, nil
}

// CreateNewLiveDirectory creates an empty timestamp directory under Live.
// It is used when a location is indexed for the first time.
func (f *Facade) CreateNewLiveDirectory(loc Location) (string, error) {
	if err := loc.Validate(); err != nil {
		return "", err
	}
	return f.createTimestampDir(loc, f.liveRoot(loc))
}

// GetOrCreateLiveIndexDirectory returns the latest live directory, creating
// the first one if the location has never been indexed.
func (f *Facade) GetOrCreateLiveIndexDirectory(loc Location) (string, error) {
	dir, ok, err := f.GetLatestLiveIndexDirectory(loc)
	if err != nil {
		return "", err
	}
	if ok {
		return dir, nil
	}
	return f.CreateNewLiveDirectory(loc)
}

// GetOrCreateRegenerationIndexDirectory returns the regeneration directory
// in progress, or starts a new one.
func (f *Facade) GetOrCreateRegenerationIndexDirectory(loc Location) (string, error) {
	if err := loc.Validate(); err != nil {
		return "", err
	}

	dir, ok, err := latestTimestampDir(f.regenerationRoot(loc))
	if err != nil {
		return "", err
	}
	if ok {
		return dir, nil
	}
	return f.CreateRegenerationIndexDirectory(loc)
}

// CreateRegenerationIndexDirectory creates a new timestamp directory under Regeneration.
func (f *Facade) CreateRegenerationIndexDirectory(loc Location) (string, error) {
	if err := loc.Validate(); err != nil {
		return "", err
	}
	return f.createTimestampDir(loc, f.regenerationRoot(loc))
}

// GetLatestRegenerationIndexDirectory returns the regeneration directory in
// progress, if any.
func (f *Facade) GetLatestRegenerationIndexDirectory(loc Location) (string, bool, error) {
	if err := loc.Validate(); err != nil {
		return "", false, err
	}
	return latestTimestampDir(f.regenerationRoot(loc))
}

// ClearRegeneration deletes the whole regeneration subtree of a location.
func (f *Facade) ClearRegeneration(loc Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}

	root := f.regenerationRoot(loc)
	names, err := listTimestampDirs(root)
	if err != nil {
		return err
	}
	for _, name := range names {
		if f.handles.inUse(filepath.Join(root, name)) {
			return fmt.Errorf("cannot clear regeneration of %s: %w", loc, ErrIndexInUse)
		}
	}

	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("failed to clear regeneration of %s: %w", loc, err)
	}
	return nil
}

// MakeRegenerationIndexTheLiveIndex promotes the newest regeneration
// directory to Live. The move is skipped if Live already holds a directory of
// that name, so a retried promotion converges on the same state. Every other
// live directory is removed afterwards, once no index on it is open, and the
// regeneration subtree is deleted.
func (f *Facade) MakeRegenerationIndexTheLiveIndex(loc Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}

	liveRoot := f.liveRoot(loc)
	regenDir, ok, err := latestTimestampDir(f.regenerationRoot(loc))
	if err != nil {
		return err
	}

	var promoted string
	if ok {
		if f.handles.inUse(regenDir) {
			return fmt.Errorf("cannot promote %s: %w", regenDir, ErrIndexInUse)
		}

		promoted = filepath.Join(liveRoot, filepath.Base(regenDir))
		if _, statErr := os.Stat(promoted); os.IsNotExist(statErr) {
			if err := os.MkdirAll(liveRoot, 0755); err != nil {
				return fmt.Errorf("failed to create live root: %w", err)
			}
			if err := os.Rename(regenDir, promoted); err != nil {
				return fmt.Errorf("failed to move regeneration index to live: %w", err)
			}
			slog.Info("Promoted regeneration index", "location", loc.String(), "dir", promoted)
		} else if statErr != nil {
			return fmt.Errorf("failed to stat %s: %w", promoted, statErr)
		}
	} else {
		latest, found, err := f.latestLiveDir(loc)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		promoted = latest
	}

	names, err := listTimestampDirs(liveRoot)
	if err != nil {
		return err
	}
	for _, name := range names {
		dir := filepath.Join(liveRoot, name)
		if dir == promoted {
			continue
		}
		if err := f.handles.remove(dir); err != nil {
			return err
		}
	}

	return f.ClearRegeneration(loc)
}

// CreateIndexWriter opens a writer on the index in dir, taking the
// directory's write lock. A lock left by a crashed writer is taken over.
func (f *Facade) CreateIndexWriter(ctx context.Context, dir string, m mapping.IndexMapping) (*Writer, error) {
	if dir == "" {
		return nil, ErrNilDirectory
	}

	lock := NewFileLock(filepath.Join(dir, WriteLockName))
	if err := lock.Lock(ctx, f.lockTimeout); err != nil {
		return nil, fmt.Errorf("failed to lock index %s: %w", dir, err)
	}
	if stale := lock.StaleOwner(); stale != nil {
		slog.Warn("Recovered stale index write lock",
			"dir", dir,
			"pid", stale.PID,
			"acquired_at", stale.AcquiredAt)
	}

	idx, err := f.handles.acquire(dir, m)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return newWriter(dir, idx, lock, f.batchSize, f.handles), nil
}

// CreateIndexSearcher opens a searcher on the index in dir, creating an
// empty index if none exists yet.
func (f *Facade) CreateIndexSearcher(dir string, m mapping.IndexMapping) (*Searcher, error) {
	if dir == "" {
		return nil, ErrNilDirectory
	}

	idx, err := f.handles.acquire(dir, m)
	if err != nil {
		return nil, err
	}

	return &Searcher{dir: dir, index: idx, handles: f.handles}, nil
}

func (f *Facade) createTimestampDir(loc Location, root string) (string, error) {
	name, err := f.nextDirectoryName(loc)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create index directory: %w", err)
	}
	return dir, nil
}

func indexPath(dir string) string {
	return filepath.Join(dir, IndexDirName)
}
