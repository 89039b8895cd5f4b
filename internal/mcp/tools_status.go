package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/indexing"
	"github.com/sha1n/policy-search-server/internal/search"
)

// DefaultStatusWindow is the creation window counted when none is given.
const DefaultStatusWindow = 30 * 24 * time.Hour

// StatusArgument defines index status parameters.
type StatusArgument struct {
	TenantAlias string `json:"tenant_alias" jsonschema:"Tenant alias the index belongs to"`
	Environment string `json:"environment" jsonschema:"Deployment environment: Development, Staging or Production"`
	From        string `json:"from,omitempty" jsonschema:"Start of the creation window, inclusive, RFC 3339; defaults to 30 days before to"`
	To          string `json:"to,omitempty" jsonschema:"End of the creation window, exclusive, RFC 3339; defaults to now"`
}

// statusSource is the part of a repository the status tool reads.
type statusSource interface {
	Entity() domain.EntityType
	DocCount(tenant domain.Tenant, env domain.Environment) (uint64, error)
	GetIndexLastUpdatedTicksSinceEpoch(ctx context.Context, tenant domain.Tenant, env domain.Environment) (*int64, error)
	GetEntityIndexCountBetweenDates(ctx context.Context, tenant domain.Tenant, env domain.Environment, fromTicks, toTicks int64) (int, error)
}

// IndexStatusHandler handles the index_status MCP tool.
type IndexStatusHandler struct {
	indexes  []statusSource
	tenants  TenantResolver
	manifest *indexing.Manifest
	clock    domain.Clock
}

// NewIndexStatusHandler creates a new index status handler. The manifest is
// optional and only present when background sync runs.
func NewIndexStatusHandler(quotes *search.QuoteRepository, policies *search.PolicyRepository, tenants TenantResolver, manifest *indexing.Manifest) *IndexStatusHandler {
	return &IndexStatusHandler{
		indexes:  []statusSource{quotes, policies},
		tenants:  tenants,
		manifest: manifest,
		clock:    quotes.Clock(),
	}
}

// Handle reports the state of a tenant environment's quote and policy indexes.
func (h *IndexStatusHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatusArgument) (*mcp.CallToolResult, any, error) {
	tenant, env, err := location(ctx, h.tenants, args.TenantAlias, args.Environment)
	if err != nil {
		return errorResult("Invalid request: %s", err), nil, nil
	}

	to, err := parseInstant("to", args.To)
	if err != nil {
		return errorResult("Invalid request: %s", err), nil, nil
	}
	if to == nil {
		to = domain.Ticks(domain.NowTicks(h.clock))
	}
	from, err := parseInstant("from", args.From)
	if err != nil {
		return errorResult("Invalid request: %s", err), nil, nil
	}
	if from == nil {
		from = domain.Ticks(*to - int64(DefaultStatusWindow/100))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Index status for %s/%s:\n\n", tenant.Alias, env)
	for _, idx := range h.indexes {
		docs, err := idx.DocCount(tenant, env)
		if err != nil {
			return errorResult("Failed to read %s index: %s", idx.Entity(), err), nil, nil
		}
		lastUpdated, err := idx.GetIndexLastUpdatedTicksSinceEpoch(ctx, tenant, env)
		if err != nil {
			return errorResult("Failed to read %s index: %s", idx.Entity(), err), nil, nil
		}
		created, err := idx.GetEntityIndexCountBetweenDates(ctx, tenant, env, *from, *to)
		if err != nil {
			return errorResult("Failed to read %s index: %s", idx.Entity(), err), nil, nil
		}

		fmt.Fprintf(&sb, "### %s\n", idx.Entity())
		fmt.Fprintf(&sb, "- **Documents**: %d\n", docs)
		if lastUpdated == nil {
			sb.WriteString("- **Last updated**: never\n")
		} else {
			fmt.Fprintf(&sb, "- **Last updated**: %s\n", formatTicks(*lastUpdated))
		}
		fmt.Fprintf(&sb, "- **Created from %s to %s**: %d\n\n", formatTicks(*from), formatTicks(*to), created)
	}

	if h.manifest != nil {
		if state, ok := h.manifest.State(indexing.LocationKey(tenant.Alias, env)); ok {
			fmt.Fprintf(&sb, "Last sync: %s\n", state.LastSync.UTC().Format(time.RFC3339))
			if state.Error != "" {
				fmt.Fprintf(&sb, "Last sync error: %s\n", state.Error)
			}
		}
	}

	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *IndexStatusHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "index_status",
		Description: "Report document counts, last update time and recent creations of a tenant's quote and policy indexes",
	}
}

// RegisterStatusTool registers the index status tool with an MCP server.
func RegisterStatusTool(server *mcp.Server, quotes *search.QuoteRepository, policies *search.PolicyRepository, tenants TenantResolver, manifest *indexing.Manifest) {
	handler := NewIndexStatusHandler(quotes, policies, tenants, manifest)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
