package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sha1n/policy-search-server/internal/domain"
)

const (
	// LiveDirName is the root of authoritative indexes
	LiveDirName = "Live"

	// RegenerationDirName is the root of indexes being rebuilt
	RegenerationDirName = "Regeneration"

	// DirectoryTimeFormat names index directories. It sorts lexicographically
	// in chronological order.
	DirectoryTimeFormat = "20060102-150405"

	// IndexDirName is the Bleve index inside a timestamp directory
	IndexDirName = "index"

	// WriteLockName is the writer lock file inside a timestamp directory
	WriteLockName = "write.lock"
)

// Location identifies the indexes of one entity type for one tenant and environment.
type Location struct {
	TenantAlias string
	Environment domain.Environment
	Entity      domain.EntityType
}

// String returns the location as a relative path.
func (l Location) String() string {
	return filepath.Join(l.TenantAlias, l.Environment.String(), string(l.Entity))
}

// Validate checks that the location can be mapped to a directory.
func (l Location) Validate() error {
	if l.TenantAlias == "" {
		return fmt.Errorf("tenant alias is required")
	}
	if filepath.Base(l.TenantAlias) != l.TenantAlias || l.TenantAlias == "." || l.TenantAlias == ".." {
		return fmt.Errorf("invalid tenant alias %q", l.TenantAlias)
	}
	if !l.Environment.Valid() {
		return &domain.InvalidEnvironmentError{Value: l.Environment.String()}
	}
	if _, err := domain.ParseEntityType(string(l.Entity)); err != nil {
		return err
	}
	return nil
}

func (f *Facade) liveRoot(loc Location) string {
	return filepath.Join(f.baseDir, LiveDirName, loc.String())
}

func (f *Facade) regenerationRoot(loc Location) string {
	return filepath.Join(f.baseDir, RegenerationDirName, loc.String())
}

// listTimestampDirs returns the timestamp-named subdirectories of root in
// ascending order. A missing root yields no entries.
func listTimestampDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := time.Parse(DirectoryTimeFormat, entry.Name()); err != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// latestTimestampDir returns the newest timestamp directory under root.
func latestTimestampDir(root string) (string, bool, error) {
	names, err := listTimestampDirs(root)
	if err != nil {
		return "", false, err
	}
	if len(names) == 0 {
		return "", false, nil
	}
	return filepath.Join(root, names[len(names)-1]), true, nil
}

// nextDirectoryName returns a timestamp name for a new directory that sorts
// after every existing directory of the location, live or regenerating.
func (f *Facade) nextDirectoryName(loc Location) (string, error) {
	now := f.clock.Now().UTC().Truncate(time.Second)

	for _, root := range []string{f.liveRoot(loc), f.regenerationRoot(loc)} {
		latest, ok, err := latestTimestampDir(root)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		latestTime, err := time.Parse(DirectoryTimeFormat, filepath.Base(latest))
		if err != nil {
			continue
		}
		if !now.After(latestTime) {
			now = latestTime.Add(time.Second)
		}
	}

	return now.Format(DirectoryTimeFormat), nil
}
