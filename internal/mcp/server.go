package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/policy-search-server/internal/indexing"
	"github.com/sha1n/policy-search-server/internal/search"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name     string
	Version  string
	Quotes   *search.QuoteRepository
	Policies *search.PolicyRepository

	// Tenants resolves tenant aliases; nil addresses indexes by alias alone.
	Tenants TenantResolver

	// Manifest is the background sync manifest, if sync runs.
	Manifest *indexing.Manifest
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Quotes != nil && cfg.Policies != nil {
		RegisterSearchTools(s, cfg.Quotes, cfg.Policies, cfg.Tenants)
		RegisterStatusTool(s, cfg.Quotes, cfg.Policies, cfg.Tenants, cfg.Manifest)
	}

	return s
}
