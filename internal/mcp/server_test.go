package mcp

import (
	"testing"
	"time"

	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/indexing"
	"github.com/sha1n/policy-search-server/internal/search"
	"github.com/sha1n/policy-search-server/internal/storage"
)

func newTestRepositories(t *testing.T) (*search.QuoteRepository, *search.PolicyRepository) {
	t.Helper()
	clock := domain.FixedClock{Instant: testNow}
	facade := storage.NewFacade(storage.Config{BaseDir: t.TempDir(), LockTimeout: time.Second}, clock)
	cache := search.NewTimestampCache(16, time.Minute)

	quotes, err := search.NewQuoteRepository(facade, cache, clock, 0)
	if err != nil {
		t.Fatalf("Failed to create quote repository: %v", err)
	}
	policies, err := search.NewPolicyRepository(facade, cache, clock, 0)
	if err != nil {
		t.Fatalf("Failed to create policy repository: %v", err)
	}
	return quotes, policies
}

func TestCreateServer(t *testing.T) {
	cfg := ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
	}

	server := CreateServer(cfg)
	if server == nil {
		t.Fatal("Expected server to be created")
	}
}

func TestCreateServer_EmptyConfig(t *testing.T) {
	server := CreateServer(ServerConfig{})
	if server == nil {
		t.Fatal("Expected server to be created even with empty config")
	}
}

func TestCreateServer_WithoutRepositories(t *testing.T) {
	quotes, _ := newTestRepositories(t)

	// Tools need both repositories; a partial config registers none.
	server := CreateServer(ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
		Quotes:  quotes,
	})
	if server == nil {
		t.Fatal("Expected server to be created without policy repository")
	}
}

func TestCreateServer_WithRepositories(t *testing.T) {
	quotes, policies := newTestRepositories(t)

	server := CreateServer(ServerConfig{
		Name:     "policy-search",
		Version:  "2.0.0",
		Quotes:   quotes,
		Policies: policies,
		Manifest: indexing.NewManifest(),
	})
	if server == nil {
		t.Fatal("Expected server to be created with repositories")
	}
}
