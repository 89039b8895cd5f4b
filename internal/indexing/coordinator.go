// Package indexing keeps the search indexes in step with the entity source.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/search"
	"github.com/sha1n/policy-search-server/internal/storage"
)

const (
	// LockFilename is the name of the sync leader lock file
	LockFilename = "sync.lock"

	// MaxParallelSyncs is the maximum number of tenant environments synced at once
	MaxParallelSyncs = 4
)

// Source supplies the write models indexes are built from.
type Source interface {
	Tenants(ctx context.Context) ([]domain.Tenant, error)
	Environments(ctx context.Context, tenantID uuid.UUID) ([]domain.Environment, error)
	QuotesModifiedSince(ctx context.Context, tenantID uuid.UUID, env domain.Environment, sinceTicks *int64) ([]domain.QuoteWriteModel, error)
	PoliciesModifiedSince(ctx context.Context, tenantID uuid.UUID, env domain.Environment, sinceTicks *int64) ([]domain.PolicyWriteModel, error)
}

// entityIndex is the part of a repository the coordinator writes through.
type entityIndex[W any] interface {
	GetIndexLastUpdatedTicksSinceEpoch(ctx context.Context, tenant domain.Tenant, env domain.Environment) (*int64, error)
	AddItemsToIndex(ctx context.Context, tenant domain.Tenant, env domain.Environment, items []W) error
	AddItemsToRegenerationIndex(ctx context.Context, tenant domain.Tenant, env domain.Environment, items []W) error
	MakeSureRegenerationFolderIsEmptyBeforeRegeneration(tenant domain.Tenant, env domain.Environment) error
	MakeRegenerationIndexTheLiveIndex(tenant domain.Tenant, env domain.Environment) error
}

// loader reads the write models of one tenant environment modified after sinceTicks.
type loader[W any] func(ctx context.Context, tenantID uuid.UUID, env domain.Environment, sinceTicks *int64) ([]W, error)

// Coordinator syncs and regenerates the quote and policy indexes of every tenant.
type Coordinator struct {
	source       Source
	quotes       *search.QuoteRepository
	policies     *search.PolicyRepository
	clock        domain.Clock
	lock         *storage.FileLock
	manifest     *Manifest
	manifestPath string
	mu           sync.Mutex
}

// NewCoordinator creates a coordinator that keeps its leader lock and
// manifest under baseDir.
func NewCoordinator(source Source, quotes *search.QuoteRepository, policies *search.PolicyRepository, baseDir string) (*Coordinator, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if quotes == nil || policies == nil {
		return nil, fmt.Errorf("repositories cannot be nil")
	}

	manifestPath := filepath.Join(baseDir, ManifestFilename)
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	return &Coordinator{
		source:       source,
		quotes:       quotes,
		policies:     policies,
		clock:        quotes.Clock(),
		lock:         storage.NewFileLock(filepath.Join(baseDir, LockFilename)),
		manifest:     manifest,
		manifestPath: manifestPath,
	}, nil
}

// Manifest returns the sync manifest.
func (c *Coordinator) Manifest() *Manifest {
	return c.manifest
}

// Sync indexes, for every tenant environment in the source, the entities
// modified after the newest modification already in its index.
func (c *Coordinator) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tenants, err := c.source.Tenants(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	sem := make(chan struct{}, MaxParallelSyncs)
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var errs []error

	for _, tenant := range tenants {
		envs, err := c.source.Environments(ctx, tenant.ID)
		if err != nil {
			errMu.Lock()
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenant.Alias, err))
			errMu.Unlock()
			continue
		}

		for _, env := range envs {
			wg.Add(1)
			go func(tenant domain.Tenant, env domain.Environment) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				if err := c.syncLocation(ctx, tenant, env); err != nil {
					slog.Error("Failed to sync index", "tenant", tenant.Alias, "environment", env, "error", err)
					errMu.Lock()
					errs = append(errs, fmt.Errorf("sync %s/%s: %w", tenant.Alias, env, err))
					errMu.Unlock()
				}
			}(tenant, env)
		}
	}

	wg.Wait()

	c.manifest.UpdateLastSync(c.clock.Now())
	if err := c.manifest.Save(c.manifestPath); err != nil {
		slog.Error("Failed to save sync manifest", "error", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d index sync(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (c *Coordinator) syncLocation(ctx context.Context, tenant domain.Tenant, env domain.Environment) error {
	quotes, err := syncEntity[domain.QuoteWriteModel](ctx, c.quotes, c.source.QuotesModifiedSince, tenant, env)
	var policies int
	if err == nil {
		policies, err = syncEntity[domain.PolicyWriteModel](ctx, c.policies, c.source.PoliciesModifiedSince, tenant, env)
	}
	c.manifest.Record(LocationKey(tenant.Alias, env), c.clock.Now(), quotes, policies, err)
	if err != nil {
		return err
	}

	slog.Info("Index sync complete", "tenant", tenant.Alias, "environment", env, "quotes", quotes, "policies", policies)
	return nil
}

func syncEntity[W any](ctx context.Context, idx entityIndex[W], load loader[W], tenant domain.Tenant, env domain.Environment) (int, error) {
	since, err := idx.GetIndexLastUpdatedTicksSinceEpoch(ctx, tenant, env)
	if err != nil {
		return 0, fmt.Errorf("failed to read index watermark: %w", err)
	}

	items, err := load(ctx, tenant.ID, env, since)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	if err := idx.AddItemsToIndex(ctx, tenant, env, items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// Regenerate rebuilds one index of a tenant environment from scratch and
// makes it live. It returns the number of entities indexed.
func (c *Coordinator) Regenerate(ctx context.Context, tenant domain.Tenant, env domain.Environment, entity domain.EntityType) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slog.Info("Regenerating index", "tenant", tenant.Alias, "environment", env, "entity", entity)

	var count int
	var err error
	switch entity {
	case domain.EntityTypeQuote:
		count, err = regenerate[domain.QuoteWriteModel](ctx, c.quotes, c.source.QuotesModifiedSince, tenant, env)
	case domain.EntityTypePolicy:
		count, err = regenerate[domain.PolicyWriteModel](ctx, c.policies, c.source.PoliciesModifiedSince, tenant, env)
	default:
		return 0, &domain.UnknownEntityTypeError{Value: string(entity)}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to regenerate %s index of %s/%s: %w", entity, tenant.Alias, env, err)
	}

	slog.Info("Regenerated index", "tenant", tenant.Alias, "environment", env, "entity", entity, "count", count)
	return count, nil
}

func regenerate[W any](ctx context.Context, idx entityIndex[W], load loader[W], tenant domain.Tenant, env domain.Environment) (int, error) {
	if err := idx.MakeSureRegenerationFolderIsEmptyBeforeRegeneration(tenant, env); err != nil {
		return 0, err
	}

	items, err := load(ctx, tenant.ID, env, nil)
	if err != nil {
		return 0, err
	}
	// An empty batch still creates the regeneration index, so the promoted
	// index is empty rather than missing.
	if err := idx.AddItemsToRegenerationIndex(ctx, tenant, env, items); err != nil {
		return 0, err
	}
	if err := idx.MakeRegenerationIndexTheLiveIndex(tenant, env); err != nil {
		return 0, err
	}
	return len(items), nil
}

// SyncIfLeader syncs only if no other process holds the sync leader lock.
// It reports whether this process ran the sync.
func (c *Coordinator) SyncIfLeader(ctx context.Context) (bool, error) {
	acquired, err := c.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		slog.Info("Another instance is syncing, skipping")
		return false, nil
	}
	defer func() {
		if err := c.lock.Unlock(); err != nil {
			slog.Error("Failed to unlock", "error", err)
		}
	}()

	slog.Info("Acquired sync leader lock, starting sync")
	return true, c.Sync(ctx)
}

// Run syncs immediately and then every interval until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := c.SyncIfLeader(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Sync failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// LocationKey is the manifest key of a tenant environment.
func LocationKey(tenantAlias string, env domain.Environment) string {
	return tenantAlias + "/" + env.String()
}
