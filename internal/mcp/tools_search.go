package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/search"
)

// SearchQuotesHandler handles the search_quotes MCP tool.
type SearchQuotesHandler struct {
	quotes  *search.QuoteRepository
	tenants TenantResolver
}

// NewSearchQuotesHandler creates a new quote search handler.
func NewSearchQuotesHandler(quotes *search.QuoteRepository, tenants TenantResolver) *SearchQuotesHandler {
	return &SearchQuotesHandler{quotes: quotes, tenants: tenants}
}

// Handle runs the search and returns one formatted page of quotes.
func (h *SearchQuotesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	tenant, env, filters, result := prepareSearch(ctx, h.tenants, args)
	if result != nil {
		return result, nil, nil
	}

	quotes, err := h.quotes.Search(ctx, tenant, env, filters)
	if err != nil {
		return searchFailed(domain.EntityTypeQuote, err), nil, nil
	}
	if len(quotes) == 0 {
		return textResult(fmt.Sprintf("No quotes found for %s/%s", tenant.Alias, env)), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d quotes for %s/%s (page %d):\n\n", len(quotes), tenant.Alias, env, max(filters.Page, 1))
	for i, q := range quotes {
		fmt.Fprintf(&sb, "### %d. %s (%s)\n", i+1, valueOr(q.QuoteNumber, q.ID.String()), q.QuoteState)
		fmt.Fprintf(&sb, "- **ID**: %s\n", q.ID)
		writeOptional(&sb, "Title", q.QuoteTitle)
		writeOptional(&sb, "Type", q.QuoteType)
		writeOptional(&sb, "Customer", q.Customer.FullName)
		writeOptional(&sb, "Owner", q.OwnerFullName)
		fmt.Fprintf(&sb, "- **Created**: %s\n", formatTicks(q.CreatedTicks))
		fmt.Fprintf(&sb, "- **Last modified**: %s\n", formatTicks(q.LastModifiedTicks))
		fmt.Fprintf(&sb, "- **Expires**: %s\n", formatOptionalTicks(q.ExpiryTicks))
		sb.WriteString("\n")
	}
	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchQuotesHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_quotes",
		Description: "Search a tenant's quotes by status, search terms, organisation, product, customer, owner, flags and dates",
	}
}

// SearchPoliciesHandler handles the search_policies MCP tool.
type SearchPoliciesHandler struct {
	policies *search.PolicyRepository
	tenants  TenantResolver
}

// NewSearchPoliciesHandler creates a new policy search handler.
func NewSearchPoliciesHandler(policies *search.PolicyRepository, tenants TenantResolver) *SearchPoliciesHandler {
	return &SearchPoliciesHandler{policies: policies, tenants: tenants}
}

// Handle runs the search and returns one formatted page of policies.
func (h *SearchPoliciesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	tenant, env, filters, result := prepareSearch(ctx, h.tenants, args)
	if result != nil {
		return result, nil, nil
	}

	policies, err := h.policies.Search(ctx, tenant, env, filters)
	if err != nil {
		return searchFailed(domain.EntityTypePolicy, err), nil, nil
	}
	if len(policies) == 0 {
		return textResult(fmt.Sprintf("No policies found for %s/%s", tenant.Alias, env)), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d policies for %s/%s (page %d):\n\n", len(policies), tenant.Alias, env, max(filters.Page, 1))
	for i, p := range policies {
		fmt.Fprintf(&sb, "### %d. %s (%s)\n", i+1, valueOr(p.PolicyNumber, p.ID.String()), p.PolicyState)
		fmt.Fprintf(&sb, "- **ID**: %s\n", p.ID)
		writeOptional(&sb, "Title", p.PolicyTitle)
		writeOptional(&sb, "Customer", p.Customer.FullName)
		writeOptional(&sb, "Owner", p.OwnerFullName)
		fmt.Fprintf(&sb, "- **Created**: %s\n", formatTicks(p.CreatedTicks))
		fmt.Fprintf(&sb, "- **Inception**: %s\n", formatOptionalTicks(p.InceptionTicks))
		fmt.Fprintf(&sb, "- **Expires**: %s\n", formatOptionalTicks(p.ExpiryTicks))
		if p.CancellationEffectiveTicks != nil {
			fmt.Fprintf(&sb, "- **Cancelled from**: %s\n", formatTicks(*p.CancellationEffectiveTicks))
		}
		sb.WriteString("\n")
	}
	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchPoliciesHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_policies",
		Description: "Search a tenant's policies by status, search terms, organisation, product, customer, owner, flags and dates",
	}
}

// prepareSearch resolves the tenant and criteria of a search. A non-nil
// result is the error to return to the caller.
func prepareSearch(ctx context.Context, tenants TenantResolver, args SearchArgument) (domain.Tenant, domain.Environment, domain.EntityFilters, *mcp.CallToolResult) {
	tenant, env, err := location(ctx, tenants, args.TenantAlias, args.Environment)
	if err != nil {
		return tenant, env, domain.EntityFilters{}, errorResult("Invalid request: %s", err)
	}
	filters, err := args.filters()
	if err != nil {
		return tenant, env, filters, errorResult("Invalid request: %s", err)
	}
	return tenant, env, filters, nil
}

func searchFailed(entity domain.EntityType, err error) *mcp.CallToolResult {
	if errors.Is(err, domain.ErrValidation) {
		return errorResult("Invalid request: %s", err)
	}
	slog.Error("Search failed", "entity", entity, "error", err)
	return errorResult("Search failed: %s", err)
}

func writeOptional(sb *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(sb, "- **%s**: %s\n", label, value)
	}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// RegisterSearchTools registers the quote and policy search tools with an MCP server.
func RegisterSearchTools(server *mcp.Server, quotes *search.QuoteRepository, policies *search.PolicyRepository, tenants TenantResolver) {
	quoteHandler := NewSearchQuotesHandler(quotes, tenants)
	mcp.AddTool(server, quoteHandler.GetToolDefinition(), quoteHandler.Handle)

	policyHandler := NewSearchPoliciesHandler(policies, tenants)
	mcp.AddTool(server, policyHandler.GetToolDefinition(), policyHandler.Handle)
}
