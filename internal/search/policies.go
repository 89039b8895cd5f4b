package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/index"
	"github.com/sha1n/policy-search-server/internal/storage"
)

// PolicyConfig is the query vocabulary of policy indexes.
var PolicyConfig = EntityConfig{
	Schema: index.PolicySchema,
	DateFields: map[string]string{
		"CreatedDate":                index.FieldCreatedTimestamp,
		"LastModifiedDate":           index.FieldLastUpdatedTimestamp,
		"LastModifiedByUserDate":     index.FieldLastUpdatedByUserTimestamp,
		"ExpiryDate":                 index.FieldExpiryTimestamp,
		"IssuedDate":                 index.FieldIssuedTimestamp,
		"InceptionDate":              index.FieldInceptionTimestamp,
		"CancellationEffectiveDate":  index.FieldCancellationEffectiveTimestamp,
		"LatestRenewalEffectiveDate": index.FieldLatestRenewalEffectiveTimestamp,
	},
	SortFields: map[string]SortField{
		"CreatedDate":                {Field: index.FieldCreatedTimestamp, Type: SortInt64},
		"LastModifiedDate":           {Field: index.FieldLastUpdatedTimestamp, Type: SortInt64},
		"LastModifiedByUserDate":     {Field: index.FieldLastUpdatedByUserTimestamp, Type: SortInt64},
		"ExpiryDate":                 {Field: index.FieldExpiryTimestamp, Type: SortInt64},
		"IssuedDate":                 {Field: index.FieldIssuedTimestamp, Type: SortInt64},
		"InceptionDate":              {Field: index.FieldInceptionTimestamp, Type: SortInt64},
		"CancellationEffectiveDate":  {Field: index.FieldCancellationEffectiveTimestamp, Type: SortInt64},
		"LatestRenewalEffectiveDate": {Field: index.FieldLatestRenewalEffectiveTimestamp, Type: SortInt64},
		"PolicyNumber":               {Field: index.FieldPolicyNumber, Type: SortString},
		"CustomerFullName":           {Field: index.FieldCustomerFullName, Type: SortString},
		"PolicyState":                {Field: index.FieldPolicyState, Type: SortString},
	},
	SearchFields: append([]string{
		index.FieldPolicyNumber,
		index.FieldPolicyTitle,
	}, partySearchFields...),
	LastUpdatedFields: []string{
		index.FieldLastUpdatedTimestamp,
		index.FieldLastUpdatedByUserTimestamp,
	},
}

// PolicyRepository indexes and searches policies.
type PolicyRepository struct {
	*Engine[domain.PolicyWriteModel]
}

// NewPolicyRepository creates a policy repository over facade.
func NewPolicyRepository(facade *storage.Facade, cache *TimestampCache, clock domain.Clock, pageSize int) (*PolicyRepository, error) {
	engine, err := NewEngine(PolicyConfig, index.BuildPolicyDocument, facade, cache, clock, pageSize)
	if err != nil {
		return nil, err
	}
	return &PolicyRepository{Engine: engine}, nil
}

// Search returns one page of the policies matching filters. Policy status is
// the stored state; expiry does not reclassify it.
func (r *PolicyRepository) Search(ctx context.Context, tenant domain.Tenant, env domain.Environment, filters domain.EntityFilters) ([]domain.PolicyReadModel, error) {
	statuses, err := parsePolicyStatuses(filters.Statuses, filters.HasCriteria())
	if err != nil {
		return nil, err
	}
	sortField, sorted, err := r.ResolveSort(filters.SortBy)
	if err != nil {
		return nil, err
	}
	base, err := r.CommonFilter(filters)
	if err != nil {
		return nil, err
	}

	terms := r.SearchTermQuery(filters.SearchTerms)
	order := SortOrder(sortField, sorted, filters.SortDescending)
	loc := r.Location(tenant, env)

	var hits []Hit
	seen := make(map[string]bool)
	for _, visibility := range organisationVisibility(base, filters) {
		for _, status := range statuses {
			f := visibility.With(Must, policyStatusQuery(status))
			found, err := r.Engine.Search(ctx, loc, And(f.Build(), terms), order)
			if err != nil {
				return nil, err
			}
			hits = DedupeHits(hits, seen, found)
		}
	}

	if sorted {
		SortHits(hits, sortField, filters.SortDescending)
	}
	page := Paginate(hits, filters.Page, r.PageSize(filters.PageSize))

	policies := make([]domain.PolicyReadModel, 0, len(page))
	for _, h := range page {
		p, err := PolicyFromFields(h.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy %s: %w", h.ID, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

func parsePolicyStatuses(names []string, narrowed bool) ([]domain.PolicyStatus, error) {
	var statuses []domain.PolicyStatus
	seen := make(map[domain.PolicyStatus]bool)
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		status, err := domain.ParsePolicyStatus(name)
		if err != nil {
			return nil, err
		}
		if !seen[status] {
			seen[status] = true
			statuses = append(statuses, status)
		}
	}
	if len(statuses) == 0 {
		if narrowed {
			return domain.PolicyStatuses(), nil
		}
		return []domain.PolicyStatus{""}, nil
	}
	return statuses, nil
}

func policyStatusQuery(status domain.PolicyStatus) query.Query {
	if status == "" {
		return nil
	}
	return stateQuery(index.FieldPolicyState, string(status))
}

// PolicyFromFields rebuilds a policy from its stored fields. Transactions
// are searchable but not rebuilt.
func PolicyFromFields(f index.StoredFields) (domain.PolicyReadModel, error) {
	ids, err := parseIDs(f,
		index.FieldID,
		index.FieldTenantID,
		index.FieldOrganisationID,
		index.FieldProductID,
		index.FieldCustomerID,
		index.FieldOwnerUserID,
		index.FieldQuoteID,
	)
	if err != nil {
		return domain.PolicyReadModel{}, err
	}

	created, _ := f.Int64(index.FieldCreatedTimestamp)
	modified, _ := f.Int64(index.FieldLastUpdatedTimestamp)

	return domain.PolicyReadModel{
		ID:                          ids[index.FieldID],
		TenantID:                    ids[index.FieldTenantID],
		OrganisationID:              ids[index.FieldOrganisationID],
		ProductID:                   ids[index.FieldProductID],
		CustomerID:                  ids[index.FieldCustomerID],
		OwnerUserID:                 ids[index.FieldOwnerUserID],
		QuoteID:                     ids[index.FieldQuoteID],
		PolicyNumber:                f.String(index.FieldPolicyNumber),
		PolicyTitle:                 f.String(index.FieldPolicyTitle),
		PolicyState:                 f.String(index.FieldPolicyState),
		CreatedTicks:                created,
		LastModifiedTicks:           modified,
		LastModifiedByUserTicks:     f.OptionalInt64(index.FieldLastUpdatedByUserTimestamp),
		IssuedTicks:                 f.OptionalInt64(index.FieldIssuedTimestamp),
		InceptionTicks:              f.OptionalInt64(index.FieldInceptionTimestamp),
		ExpiryTicks:                 f.OptionalInt64(index.FieldExpiryTimestamp),
		CancellationEffectiveTicks:  f.OptionalInt64(index.FieldCancellationEffectiveTimestamp),
		LatestRenewalEffectiveTicks: f.OptionalInt64(index.FieldLatestRenewalEffectiveTimestamp),
		RetroactiveTicks:            f.OptionalInt64(index.FieldRetroactiveTimestamp),
		Customer:                    customerFromFields(f),
		OwnerFullName:               f.String(index.FieldOwnerFullName),
		SerializedCalculationResult: f.String(index.FieldCalculationResult),
		SerializedFormData:          f.String(index.FieldFormData),
		IsTestData:                  f.Bool(index.FieldIsTestData),
		IsDiscarded:                 f.Bool(index.FieldIsDiscarded),
	}, nil
}
