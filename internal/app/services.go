package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sha1n/policy-search-server/internal/config"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/indexing"
	mcputil "github.com/sha1n/policy-search-server/internal/mcp"
	"github.com/sha1n/policy-search-server/internal/search"
	"github.com/sha1n/policy-search-server/internal/source"
	"github.com/sha1n/policy-search-server/internal/storage"
)

// Services are the long-lived components shared by the server and the
// maintenance commands.
type Services struct {
	Facade   *storage.Facade
	Quotes   *search.QuoteRepository
	Policies *search.PolicyRepository

	// Source and Coordinator are nil when no source database is configured
	Source      *source.Store
	Coordinator *indexing.Coordinator
}

// NewServices builds the storage facade, the repositories and, when a source
// database is configured, the source store and sync coordinator.
func NewServices(settings *config.Settings) (*Services, error) {
	clock := domain.SystemClock{}
	facade := storage.NewFacade(storage.Config{
		BaseDir:     settings.Index.BaseDir,
		BatchSize:   settings.Index.BatchSize,
		LockTimeout: settings.Index.LockTimeout,
	}, clock)
	cache := search.NewTimestampCache(settings.Index.CacheSize, settings.Index.CacheTTL)

	quotes, err := search.NewQuoteRepository(facade, cache, clock, settings.Index.DefaultPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote repository: %w", err)
	}
	policies, err := search.NewPolicyRepository(facade, cache, clock, settings.Index.DefaultPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy repository: %w", err)
	}

	services := &Services{
		Facade:   facade,
		Quotes:   quotes,
		Policies: policies,
	}

	if settings.Source.Path == "" {
		return services, nil
	}

	store, err := source.NewStore(settings.Source.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}
	coordinator, err := indexing.NewCoordinator(store, quotes, policies, settings.Index.BaseDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create sync coordinator: %w", err)
	}

	services.Source = store
	services.Coordinator = coordinator
	return services, nil
}

// TenantResolver returns the source store as a resolver, or nil so that
// tools address indexes by alias alone.
func (s *Services) TenantResolver() mcputil.TenantResolver {
	if s.Source == nil {
		return nil
	}
	return s.Source
}

// Manifest returns the sync manifest, or nil without a coordinator.
func (s *Services) Manifest() *indexing.Manifest {
	if s.Coordinator == nil {
		return nil
	}
	return s.Coordinator.Manifest()
}

// Close releases the source database.
func (s *Services) Close() error {
	if s.Source == nil {
		return nil
	}
	return s.Source.Close()
}

// requireCoordinator fails when no source database is configured.
func (s *Services) requireCoordinator() (*indexing.Coordinator, error) {
	if s.Coordinator == nil {
		return nil, fmt.Errorf("a source database is required (--source-path)")
	}
	return s.Coordinator, nil
}

// SyncOnce runs a single sync of every tenant environment in the source.
func SyncOnce(ctx context.Context, settings *config.Settings) error {
	services, err := NewServices(settings)
	if err != nil {
		return err
	}
	defer closeServices(services)

	coordinator, err := services.requireCoordinator()
	if err != nil {
		return err
	}

	ran, err := coordinator.SyncIfLeader(ctx)
	if err != nil {
		return err
	}
	if !ran {
		return fmt.Errorf("another process is syncing %s", settings.Index.BaseDir)
	}
	return nil
}

// Regenerate rebuilds one index of a tenant environment from the source and
// returns the number of entities indexed.
func Regenerate(ctx context.Context, settings *config.Settings, tenantAlias, environment, entity string) (int, error) {
	env, err := domain.ParseEnvironment(environment)
	if err != nil {
		return 0, err
	}
	entityType, err := domain.ParseEntityType(entity)
	if err != nil {
		return 0, err
	}

	services, err := NewServices(settings)
	if err != nil {
		return 0, err
	}
	defer closeServices(services)

	coordinator, err := services.requireCoordinator()
	if err != nil {
		return 0, err
	}
	tenant, err := services.Source.TenantByAlias(ctx, tenantAlias)
	if err != nil {
		return 0, err
	}

	return coordinator.Regenerate(ctx, tenant, env, entityType)
}

func closeServices(s *Services) {
	if err := s.Close(); err != nil {
		slog.Error("Failed to close services", "error", err)
	}
}
