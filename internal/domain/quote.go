package domain

import (
	"strings"

	"github.com/google/uuid"
)

// QuoteStatus is a logical quote status a caller may filter by.
type QuoteStatus string

// Quote statuses.
const (
	QuoteStatusIncomplete  QuoteStatus = "Incomplete"
	QuoteStatusReview      QuoteStatus = "Review"
	QuoteStatusEndorsement QuoteStatus = "Endorsement"
	QuoteStatusApproved    QuoteStatus = "Approved"
	QuoteStatusComplete    QuoteStatus = "Complete"
	QuoteStatusDeclined    QuoteStatus = "Declined"
	QuoteStatusExpired     QuoteStatus = "Expired"
)

// QuoteStatuses returns every known quote status.
func QuoteStatuses() []QuoteStatus {
	return []QuoteStatus{
		QuoteStatusIncomplete,
		QuoteStatusReview,
		QuoteStatusEndorsement,
		QuoteStatusApproved,
		QuoteStatusComplete,
		QuoteStatusDeclined,
		QuoteStatusExpired,
	}
}

// ParseQuoteStatus parses a quote status case-insensitively.
func ParseQuoteStatus(s string) (QuoteStatus, error) {
	for _, status := range QuoteStatuses() {
		if strings.EqualFold(strings.TrimSpace(s), string(status)) {
			return status, nil
		}
	}
	return "", &UnknownStatusError{Entity: EntityTypeQuote, Status: s}
}

// CustomerDetails holds the denormalised customer contact fields of an entity.
type CustomerDetails struct {
	FullName         string
	PreferredName    string
	Email            string
	AlternativeEmail string
	HomePhone        string
	WorkPhone        string
	MobilePhone      string
}

// QuoteWriteModel is the flat record a quote is indexed from.
// A zero uuid or a nil timestamp means the value is absent.
type QuoteWriteModel struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	OrganisationID uuid.UUID
	ProductID      uuid.UUID
	CustomerID     uuid.UUID
	OwnerUserID    uuid.UUID
	PolicyID       uuid.UUID

	QuoteNumber string
	QuoteTitle  string
	QuoteState  string
	QuoteType   string

	CreatedTicks            int64
	LastModifiedTicks       int64
	LastModifiedByUserTicks *int64
	ExpiryTicks             *int64

	Customer      CustomerDetails
	OwnerFullName string

	SerializedCalculationResult string
	SerializedFormData          string

	IsTestData  bool
	IsDiscarded bool
}

// QuoteReadModel is a quote reconstructed from its stored index fields.
// Chunked payload fields only carry their first chunk.
type QuoteReadModel struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	OrganisationID uuid.UUID
	ProductID      uuid.UUID
	CustomerID     uuid.UUID
	OwnerUserID    uuid.UUID
	PolicyID       uuid.UUID

	QuoteNumber string
	QuoteTitle  string
	QuoteState  string
	QuoteType   string

	CreatedTicks            int64
	LastModifiedTicks       int64
	LastModifiedByUserTicks *int64
	ExpiryTicks             *int64

	Customer      CustomerDetails
	OwnerFullName string

	SerializedCalculationResult string
	SerializedFormData          string

	IsTestData  bool
	IsDiscarded bool
}
