// Package source reads and writes the entity records indexes are built from.
package source

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/source/migrations"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrTenantNotFound indicates no tenant has the requested alias
var ErrTenantNotFound = errors.New("tenant not found")

// Store is the SQLite database of tenants, quotes and policies.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens the database at path, creating it and applying migrations as needed.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies the embedded migrations newer than the recorded version.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveTenant stores or updates a tenant.
func (s *Store) SaveTenant(ctx context.Context, tenant domain.Tenant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, alias) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET alias = excluded.alias
	`, tenant.ID.String(), tenant.Alias)
	if err != nil {
		return fmt.Errorf("saving tenant: %w", err)
	}
	return nil
}

// Tenants returns every tenant ordered by alias.
func (s *Store) Tenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, alias FROM tenants ORDER BY alias")
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tenants []domain.Tenant
	for rows.Next() {
		var id, alias string
		if err := rows.Scan(&id, &alias); err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: %w", alias, err)
		}
		tenants = append(tenants, domain.Tenant{ID: parsed, Alias: alias})
	}
	return tenants, rows.Err()
}

// TenantByAlias returns the tenant with the given alias.
func (s *Store) TenantByAlias(ctx context.Context, alias string) (domain.Tenant, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM tenants WHERE alias = ?", alias).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tenant{}, fmt.Errorf("%w: %s", ErrTenantNotFound, alias)
		}
		return domain.Tenant{}, fmt.Errorf("querying tenant: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("tenant %s: %w", alias, err)
	}
	return domain.Tenant{ID: parsed, Alias: alias}, nil
}

// Environments returns the environments a tenant has quotes or policies in.
func (s *Store) Environments(ctx context.Context, tenantID uuid.UUID) ([]domain.Environment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT environment FROM quotes WHERE tenant_id = ?
		UNION
		SELECT environment FROM policies WHERE tenant_id = ?
	`, tenantID.String(), tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("querying environments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[domain.Environment]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning environment: %w", err)
		}
		env, err := domain.ParseEnvironment(name)
		if err != nil {
			return nil, err
		}
		found[env] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var envs []domain.Environment
	for _, env := range domain.Environments() {
		if found[env] {
			envs = append(envs, env)
		}
	}
	return envs, nil
}
