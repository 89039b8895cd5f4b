package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/policy-search-server/internal/domain"
)

// SearchArgument defines the criteria of a quote or policy search.
type SearchArgument struct {
	TenantAlias                 string   `json:"tenant_alias" jsonschema:"Tenant alias the index belongs to"`
	Environment                 string   `json:"environment" jsonschema:"Deployment environment: Development, Staging or Production"`
	Statuses                    []string `json:"statuses,omitempty" jsonschema:"Logical statuses to include; empty means every status"`
	SearchTerms                 []string `json:"search_terms,omitempty" jsonschema:"Terms that must each prefix-match a searchable field"`
	ProductIDs                  []string `json:"product_ids,omitempty" jsonschema:"Restrict to these product ids"`
	OrganisationIDs             []string `json:"organisation_ids,omitempty" jsonschema:"Restrict to these organisation ids"`
	CrossOrganisationProductIDs []string `json:"cross_organisation_product_ids,omitempty" jsonschema:"Products whose entities are also visible outside organisation_ids"`
	CustomerID                  string   `json:"customer_id,omitempty" jsonschema:"Restrict to one customer"`
	OwnerUserID                 string   `json:"owner_user_id,omitempty" jsonschema:"Restrict to one owner"`
	IsTestData                  *bool    `json:"is_test_data,omitempty" jsonschema:"Filter on the test data flag"`
	IsDiscarded                 *bool    `json:"is_discarded,omitempty" jsonschema:"Filter on the discarded flag"`
	DateProperty                string   `json:"date_property,omitempty" jsonschema:"Date the after/before bounds apply to, e.g. CreatedDate"`
	After                       string   `json:"after,omitempty" jsonschema:"Exclusive lower bound, RFC 3339"`
	Before                      string   `json:"before,omitempty" jsonschema:"Exclusive upper bound, RFC 3339"`
	SortBy                      string   `json:"sort_by,omitempty" jsonschema:"Property to sort by, e.g. CreatedDate or QuoteNumber"`
	SortDescending              bool     `json:"sort_descending,omitempty" jsonschema:"Sort in descending order"`
	Page                        int      `json:"page,omitempty" jsonschema:"1-based page number"`
	PageSize                    int      `json:"page_size,omitempty" jsonschema:"Results per page"`
}

// TenantResolver looks tenants up by alias.
type TenantResolver interface {
	TenantByAlias(ctx context.Context, alias string) (domain.Tenant, error)
}

// location resolves the tenant and environment a tool call addresses.
// Without a resolver the alias alone identifies the tenant's indexes.
func location(ctx context.Context, tenants TenantResolver, alias, environment string) (domain.Tenant, domain.Environment, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return domain.Tenant{}, domain.EnvironmentNone, fmt.Errorf("tenant_alias cannot be empty")
	}
	env, err := domain.ParseEnvironment(environment)
	if err != nil {
		return domain.Tenant{}, domain.EnvironmentNone, err
	}

	if tenants == nil {
		return domain.Tenant{Alias: alias}, env, nil
	}
	tenant, err := tenants.TenantByAlias(ctx, alias)
	if err != nil {
		return domain.Tenant{}, domain.EnvironmentNone, err
	}
	return tenant, env, nil
}

// filters converts tool arguments into search criteria.
func (a SearchArgument) filters() (domain.EntityFilters, error) {
	f := domain.EntityFilters{
		Statuses:                  a.Statuses,
		SearchTerms:               a.SearchTerms,
		IsTestData:                a.IsTestData,
		IsDiscarded:               a.IsDiscarded,
		DateFilteringPropertyName: a.DateProperty,
		SortBy:                    a.SortBy,
		SortDescending:            a.SortDescending,
		Page:                      a.Page,
		PageSize:                  a.PageSize,
	}

	var err error
	if f.ProductIDs, err = parseUUIDs("product_ids", a.ProductIDs); err != nil {
		return f, err
	}
	if f.OrganisationIDs, err = parseUUIDs("organisation_ids", a.OrganisationIDs); err != nil {
		return f, err
	}
	if f.CrossOrganisationProductIDs, err = parseUUIDs("cross_organisation_product_ids", a.CrossOrganisationProductIDs); err != nil {
		return f, err
	}
	if f.CustomerID, err = parseUUID("customer_id", a.CustomerID); err != nil {
		return f, err
	}
	if f.OwnerUserID, err = parseUUID("owner_user_id", a.OwnerUserID); err != nil {
		return f, err
	}
	if f.AfterTicks, err = parseInstant("after", a.After); err != nil {
		return f, err
	}
	if f.BeforeTicks, err = parseInstant("before", a.Before); err != nil {
		return f, err
	}
	return f, nil
}

func parseUUID(name, value string) (uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return id, nil
}

func parseUUIDs(name string, values []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range values {
		id, err := parseUUID(name, v)
		if err != nil {
			return nil, err
		}
		if id != uuid.Nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// parseInstant converts an RFC 3339 instant into ticks. Empty means unset.
func parseInstant(name, value string) (*int64, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return domain.Ticks(domain.TicksFromTime(t)), nil
}

func formatTicks(ticks int64) string {
	return domain.TimeFromTicks(ticks).Format(time.RFC3339)
}

func formatOptionalTicks(ticks *int64) string {
	if ticks == nil {
		return "none"
	}
	return formatTicks(*ticks)
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
