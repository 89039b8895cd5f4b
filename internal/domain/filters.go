package domain

import (
	"strings"

	"github.com/google/uuid"
)

// EntityFilters are the caller-supplied criteria of a search.
// Every unset criterion leaves results unrestricted.
type EntityFilters struct {
	// Statuses are logical status names. Empty means every known status, or
	// no status restriction at all when no other criterion is set.
	Statuses []string

	// SearchTerms must each match, as a prefix, at least one searchable field.
	SearchTerms []string

	ProductIDs      []uuid.UUID
	OrganisationIDs []uuid.UUID
	CustomerID      uuid.UUID
	OwnerUserID     uuid.UUID

	IsTestData  *bool
	IsDiscarded *bool

	// DateFilteringPropertyName selects the date the Before/After bounds apply to.
	DateFilteringPropertyName string
	BeforeTicks               *int64
	AfterTicks                *int64

	SortBy         string
	SortDescending bool

	// Page is 1-based.
	Page     int
	PageSize int

	// CrossOrganisationProductIDs lists products whose entities are visible
	// outside OrganisationIDs (the RideProtect arrangement). Only used when
	// OrganisationIDs is set.
	CrossOrganisationProductIDs []uuid.UUID
}

// HasCriteria reports whether any criterion other than status narrows the
// results. Sorting and paging are not criteria.
func (f EntityFilters) HasCriteria() bool {
	for _, term := range f.SearchTerms {
		if strings.TrimSpace(term) != "" {
			return true
		}
	}
	return len(f.ProductIDs) > 0 ||
		len(f.OrganisationIDs) > 0 ||
		f.CustomerID != uuid.Nil ||
		f.OwnerUserID != uuid.Nil ||
		f.IsTestData != nil ||
		f.IsDiscarded != nil ||
		f.BeforeTicks != nil ||
		f.AfterTicks != nil
}

// Bool returns a pointer to b, for optional filter flags.
func Bool(b bool) *bool {
	return &b
}

// Ticks returns a pointer to t, for optional timestamps.
func Ticks(t int64) *int64 {
	return &t
}
