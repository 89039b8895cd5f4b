package indexing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	// ManifestVersion is the current schema version
	ManifestVersion = 1

	// ManifestFilename is the manifest file name under the index base directory
	ManifestFilename = "sync-manifest.json"
)

// Manifest records the outcome of the latest sync of every tenant environment.
type Manifest struct {
	Version   int                      `json:"version"`
	LastSync  time.Time                `json:"last_sync"`
	Locations map[string]LocationState `json:"locations"`
	mu        sync.RWMutex             `json:"-"`
}

// LocationState is the sync state of one tenant environment.
type LocationState struct {
	LastSync        time.Time `json:"last_sync"`
	QuotesIndexed   int       `json:"quotes_indexed"`
	PoliciesIndexed int       `json:"policies_indexed"`
	Error           string    `json:"error,omitempty"`
}

// NewManifest creates a new empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version:   ManifestVersion,
		Locations: make(map[string]LocationState),
	}
}

// LoadManifest reads a manifest from disk, or creates a new one if it doesn't exist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if manifest.Locations == nil {
		manifest.Locations = make(map[string]LocationState)
	}

	return &manifest, nil
}

// Save writes the manifest to disk through a temporary file and a rename.
func (m *Manifest) Save(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}

	return nil
}

// State returns the state of a location and whether it has been synced.
func (m *Manifest) State(key string) (LocationState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.Locations[key]
	return state, ok
}

// Record stores the outcome of syncing a location. A nil err clears any
// previous error.
func (m *Manifest) Record(key string, at time.Time, quotes, policies int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := LocationState{LastSync: at, QuotesIndexed: quotes, PoliciesIndexed: policies}
	if err != nil {
		state.Error = err.Error()
	}
	m.Locations[key] = state
}

// UpdateLastSync sets the time of the latest completed sync.
func (m *Manifest) UpdateLastSync(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastSync = at
}

// LastSyncTime returns the time of the latest completed sync.
func (m *Manifest) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastSync
}

// Errors returns the locations whose latest sync failed.
func (m *Manifest) Errors() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]string)
	for key, state := range m.Locations {
		if state.Error != "" {
			result[key] = state.Error
		}
	}
	return result
}

// Keys returns the recorded locations in order.
func (m *Manifest) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.Locations))
	for key := range m.Locations {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
