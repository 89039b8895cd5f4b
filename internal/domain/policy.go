package domain

import (
	"strings"

	"github.com/google/uuid"
)

// PolicyStatus is a logical policy status. It matches the stored policy state directly.
type PolicyStatus string

// Policy statuses.
const (
	PolicyStatusIssued    PolicyStatus = "Issued"
	PolicyStatusActive    PolicyStatus = "Active"
	PolicyStatusCancelled PolicyStatus = "Cancelled"
	PolicyStatusExpired   PolicyStatus = "Expired"
)

// PolicyStatuses returns every known policy status.
func PolicyStatuses() []PolicyStatus {
	return []PolicyStatus{
		PolicyStatusIssued,
		PolicyStatusActive,
		PolicyStatusCancelled,
		PolicyStatusExpired,
	}
}

// ParsePolicyStatus parses a policy status case-insensitively.
func ParsePolicyStatus(s string) (PolicyStatus, error) {
	for _, status := range PolicyStatuses() {
		if strings.EqualFold(strings.TrimSpace(s), string(status)) {
			return status, nil
		}
	}
	return "", &UnknownStatusError{Entity: EntityTypePolicy, Status: s}
}

// PolicyTransactionWriteModel is a transaction belonging to a policy.
// Transactions are flattened into their policy's document.
type PolicyTransactionWriteModel struct {
	ID                         uuid.UUID
	QuoteID                    uuid.UUID
	Type                       string
	CreatedTicks               int64
	EffectiveTicks             *int64
	CancellationEffectiveTicks *int64
	ExpiryTicks                *int64
}

// PolicyWriteModel is the flat record a policy is indexed from.
type PolicyWriteModel struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	OrganisationID uuid.UUID
	ProductID      uuid.UUID
	CustomerID     uuid.UUID
	OwnerUserID    uuid.UUID
	QuoteID        uuid.UUID

	PolicyNumber string
	PolicyTitle  string
	PolicyState  string

	CreatedTicks                int64
	LastModifiedTicks           int64
	LastModifiedByUserTicks     *int64
	IssuedTicks                 *int64
	InceptionTicks              *int64
	ExpiryTicks                 *int64
	CancellationEffectiveTicks  *int64
	LatestRenewalEffectiveTicks *int64
	RetroactiveTicks            *int64

	Customer      CustomerDetails
	OwnerFullName string

	SerializedCalculationResult string
	SerializedFormData          string

	IsTestData  bool
	IsDiscarded bool

	Transactions []PolicyTransactionWriteModel
}

// PolicyReadModel is a policy reconstructed from its stored index fields.
// Transactions are searchable but not reconstructed.
type PolicyReadModel struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	OrganisationID uuid.UUID
	ProductID      uuid.UUID
	CustomerID     uuid.UUID
	OwnerUserID    uuid.UUID
	QuoteID        uuid.UUID

	PolicyNumber string
	PolicyTitle  string
	PolicyState  string

	CreatedTicks                int64
	LastModifiedTicks           int64
	LastModifiedByUserTicks     *int64
	IssuedTicks                 *int64
	InceptionTicks              *int64
	ExpiryTicks                 *int64
	CancellationEffectiveTicks  *int64
	LatestRenewalEffectiveTicks *int64
	RetroactiveTicks            *int64

	Customer      CustomerDetails
	OwnerFullName string

	SerializedCalculationResult string
	SerializedFormData          string

	IsTestData  bool
	IsDiscarded bool
}
