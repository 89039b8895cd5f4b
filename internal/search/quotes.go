package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/index"
	"github.com/sha1n/policy-search-server/internal/storage"
)

// quoteCategory decides how expiry affects membership in a quote status.
type quoteCategory int

const (
	// categoryNonExpired matches quotes that have not expired yet or never expire
	categoryNonExpired quoteCategory = iota
	// categoryAll matches on state alone
	categoryAll
	// categoryExpired matches open quotes whose expiry has passed
	categoryExpired
)

var quoteStatusCategories = map[domain.QuoteStatus]quoteCategory{
	domain.QuoteStatusIncomplete:  categoryNonExpired,
	domain.QuoteStatusReview:      categoryNonExpired,
	domain.QuoteStatusEndorsement: categoryNonExpired,
	domain.QuoteStatusApproved:    categoryNonExpired,
	domain.QuoteStatusComplete:    categoryAll,
	domain.QuoteStatusDeclined:    categoryAll,
	domain.QuoteStatusExpired:     categoryExpired,
}

// QuoteConfig is the query vocabulary of quote indexes.
var QuoteConfig = EntityConfig{
	Schema: index.QuoteSchema,
	DateFields: map[string]string{
		"CreatedDate":            index.FieldCreatedTimestamp,
		"LastModifiedDate":       index.FieldLastUpdatedTimestamp,
		"LastModifiedByUserDate": index.FieldLastUpdatedByUserTimestamp,
		"ExpiryDate":             index.FieldExpiryTimestamp,
	},
	SortFields: map[string]SortField{
		"CreatedDate":            {Field: index.FieldCreatedTimestamp, Type: SortInt64},
		"LastModifiedDate":       {Field: index.FieldLastUpdatedTimestamp, Type: SortInt64},
		"LastModifiedByUserDate": {Field: index.FieldLastUpdatedByUserTimestamp, Type: SortInt64},
		"ExpiryDate":             {Field: index.FieldExpiryTimestamp, Type: SortInt64},
		"QuoteNumber":            {Field: index.FieldQuoteNumber, Type: SortString},
		"CustomerFullName":       {Field: index.FieldCustomerFullName, Type: SortString},
		"QuoteState":             {Field: index.FieldQuoteState, Type: SortString},
	},
	SearchFields: append([]string{
		index.FieldQuoteNumber,
		index.FieldQuoteTitle,
	}, partySearchFields...),
	LastUpdatedFields: []string{
		index.FieldLastUpdatedTimestamp,
		index.FieldLastUpdatedByUserTimestamp,
	},
}

// partySearchFields are the customer, owner and payload fields searched for every entity.
var partySearchFields = []string{
	index.FieldCustomerFullName,
	index.FieldCustomerPreferredName,
	index.FieldCustomerEmail,
	index.FieldCustomerAlternativeEmail,
	index.FieldCustomerHomePhone,
	index.FieldCustomerWorkPhone,
	index.FieldCustomerMobilePhone,
	index.FieldOwnerFullName,
	index.FieldCalculationResult,
	index.FieldFormData,
}

// QuoteRepository indexes and searches quotes.
type QuoteRepository struct {
	*Engine[domain.QuoteWriteModel]
}

// NewQuoteRepository creates a quote repository over facade.
func NewQuoteRepository(facade *storage.Facade, cache *TimestampCache, clock domain.Clock, pageSize int) (*QuoteRepository, error) {
	engine, err := NewEngine(QuoteConfig, index.BuildQuoteDocument, facade, cache, clock, pageSize)
	if err != nil {
		return nil, err
	}
	return &QuoteRepository{Engine: engine}, nil
}

// Search returns one page of the quotes matching filters.
func (r *QuoteRepository) Search(ctx context.Context, tenant domain.Tenant, env domain.Environment, filters domain.EntityFilters) ([]domain.QuoteReadModel, error) {
	statuses, err := parseQuoteStatuses(filters.Statuses, filters.HasCriteria())
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

	nowTicks := domain.NowTicks(r.Clock())
	terms := r.SearchTermQuery(filters.SearchTerms)
	order := SortOrder(sortField, sorted, filters.SortDescending)
	loc := r.Location(tenant, env)

	var hits []Hit
	seen := make(map[string]bool)
	for _, visibility := range organisationVisibility(base, filters) {
		// Every status starts again from the visibility filter.
		for _, status := range statuses {
			f := visibility.With(Must, quoteStatusQuery(status, nowTicks))
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

	quotes := make([]domain.QuoteReadModel, 0, len(page))
	for _, h := range page {
		q, err := QuoteFromFields(h.Fields)
		if err != nil {
			return nil, fmt.Errorf("failed to read quote %s: %w", h.ID, err)
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// parseQuoteStatuses returns the requested statuses. With none requested,
// narrowed searches span every known status while an unfiltered search gets
// a single empty status, which leaves status unrestricted.
func parseQuoteStatuses(names []string, narrowed bool) ([]domain.QuoteStatus, error) {
	var statuses []domain.QuoteStatus
	seen := make(map[domain.QuoteStatus]bool)
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		status, err := domain.ParseQuoteStatus(name)
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
			return domain.QuoteStatuses(), nil
		}
		return []domain.QuoteStatus{""}, nil
	}
	return statuses, nil
}

// quoteStatusQuery matches the quotes in a logical status as of nowTicks.
func quoteStatusQuery(status domain.QuoteStatus, nowTicks int64) query.Query {
	if status == "" {
		return nil
	}

	switch quoteStatusCategories[status] {
	case categoryNonExpired:
		notExpired := bleve.NewDisjunctionQuery(
			TicksAfterQuery(index.FieldExpiryTimestamp, nowTicks),
			MissingValueQuery(index.FieldExpiryTimestamp),
		)
		return And(stateQuery(index.FieldQuoteState, string(status)), notExpired)
	case categoryExpired:
		var open []string
		for s, category := range quoteStatusCategories {
			if category == categoryNonExpired || category == categoryExpired {
				open = append(open, strings.ToLower(string(s)))
			}
		}
		return And(
			TermsQuery(index.FieldQuoteState, sortedStrings(open)),
			TicksAtOrBeforeQuery(index.FieldExpiryTimestamp, nowTicks),
		)
	default:
		return stateQuery(index.FieldQuoteState, string(status))
	}
}

// stateQuery matches a state field regardless of case.
func stateQuery(field, state string) query.Query {
	return TermQuery(field, strings.ToLower(state))
}

// organisationVisibility returns the filters whose union is visible to the
// caller: entities of the requested organisations, plus entities of
// cross-organisation products owned by any other organisation.
func organisationVisibility(base Filter, filters domain.EntityFilters) []Filter {
	orgs := IDsQuery(index.FieldOrganisationID, filters.OrganisationIDs)
	visible := []Filter{base.With(Must, orgs)}

	crossProducts := IDsQuery(index.FieldProductID, filters.CrossOrganisationProductIDs)
	if orgs != nil && crossProducts != nil {
		visible = append(visible, base.With(Must, crossProducts).With(MustNot, orgs))
	}
	return visible
}

// QuoteFromFields rebuilds a quote from its stored fields. Chunked payloads
// only carry their first chunk.
func QuoteFromFields(f index.StoredFields) (domain.QuoteReadModel, error) {
	ids, err := parseIDs(f,
		index.FieldID,
		index.FieldTenantID,
		index.FieldOrganisationID,
		index.FieldProductID,
		index.FieldCustomerID,
		index.FieldOwnerUserID,
		index.FieldPolicyID,
	)
	if err != nil {
		return domain.QuoteReadModel{}, err
	}

	created, _ := f.Int64(index.FieldCreatedTimestamp)
	modified, _ := f.Int64(index.FieldLastUpdatedTimestamp)

	return domain.QuoteReadModel{
		ID:                          ids[index.FieldID],
		TenantID:                    ids[index.FieldTenantID],
		OrganisationID:              ids[index.FieldOrganisationID],
		ProductID:                   ids[index.FieldProductID],
		CustomerID:                  ids[index.FieldCustomerID],
		OwnerUserID:                 ids[index.FieldOwnerUserID],
		PolicyID:                    ids[index.FieldPolicyID],
		QuoteNumber:                 f.String(index.FieldQuoteNumber),
		QuoteTitle:                  f.String(index.FieldQuoteTitle),
		QuoteState:                  f.String(index.FieldQuoteState),
		QuoteType:                   f.String(index.FieldQuoteType),
		CreatedTicks:                created,
		LastModifiedTicks:           modified,
		LastModifiedByUserTicks:     f.OptionalInt64(index.FieldLastUpdatedByUserTimestamp),
		ExpiryTicks:                 f.OptionalInt64(index.FieldExpiryTimestamp),
		Customer:                    customerFromFields(f),
		OwnerFullName:               f.String(index.FieldOwnerFullName),
		SerializedCalculationResult: f.String(index.FieldCalculationResult),
		SerializedFormData:          f.String(index.FieldFormData),
		IsTestData:                  f.Bool(index.FieldIsTestData),
		IsDiscarded:                 f.Bool(index.FieldIsDiscarded),
	}, nil
}
