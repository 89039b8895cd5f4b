package index

import "github.com/sha1n/policy-search-server/internal/domain"

// Field names shared by quote and policy documents. These strings are part of
// the on-disk format.
const (
	FieldID                         = "id"
	FieldTenantID                   = "tenantid"
	FieldOrganisationID             = "organisationid"
	FieldProductID                  = "productid"
	FieldCustomerID                 = "customerid"
	FieldOwnerUserID                = "owneruserid"
	FieldCreatedTimestamp           = "createdtimestamp"
	FieldLastUpdatedTimestamp       = "lastupdatedtimestamp"
	FieldLastUpdatedByUserTimestamp = "lastupdatedbyusertimestamp"
	FieldExpiryTimestamp            = "expirytimestamp"
	FieldIndexedTimestamp           = "indexedtimestamp"
	FieldCustomerFullName           = "customerfullname"
	FieldCustomerPreferredName      = "customerpreferredname"
	FieldCustomerEmail              = "customeremail"
	FieldCustomerAlternativeEmail   = "customeralternativeemail"
	FieldCustomerHomePhone          = "customerhomephone"
	FieldCustomerWorkPhone          = "customerworkphone"
	FieldCustomerMobilePhone        = "customermobilephone"
	FieldOwnerFullName              = "ownerfullname"
	FieldIsTestData                 = "istestdata"
	FieldIsDiscarded                = "isdiscarded"
	FieldCalculationResult          = "calculationresult"
	FieldFormData                   = "formdata"
)

// Quote document fields.
const (
	FieldQuoteID     = "quoteid"
	FieldQuoteNumber = "quotenumber"
	FieldQuoteTitle  = "quotetitle"
	FieldQuoteState  = "quotestate"
	FieldQuoteType   = "quotetype"
)

// Policy document fields. Transaction fields repeat once per transaction.
const (
	FieldPolicyID                         = "policyid"
	FieldPolicyNumber                     = "policynumber"
	FieldPolicyTitle                      = "policytitle"
	FieldPolicyState                      = "policystate"
	FieldIssuedTimestamp                  = "issuedtimestamp"
	FieldInceptionTimestamp               = "inceptiontimestamp"
	FieldCancellationEffectiveTimestamp   = "cancellationeffectivetimestamp"
	FieldLatestRenewalEffectiveTimestamp  = "latestrenewaleffectivetimestamp"
	FieldRetroactiveTimestamp             = "retroactivetimestamp"
	FieldTransactionID                    = "policytransactionid"
	FieldTransactionQuoteID               = "policytransactionquoteid"
	FieldTransactionType                  = "policytransactiontype"
	FieldTransactionCreatedTimestamp      = "policytransactioncreatedtimestamp"
	FieldTransactionEffectiveTimestamp    = "policytransactioneffectivetimestamp"
	FieldTransactionCancellationTimestamp = "policytransactioncancellationeffectivetimestamp"
	FieldTransactionExpiryTimestamp       = "policytransactionexpirytimestamp"
)

// FieldKind decides how a field is analysed and what its stored value looks like.
type FieldKind int

const (
	// KindKeyword is indexed as a single case-sensitive term.
	KindKeyword FieldKind = iota
	// KindLowerKeyword is indexed as a single lowercased term.
	KindLowerKeyword
	// KindText is tokenised with the standard analyzer.
	KindText
	// KindInt64 is a numeric field holding ticks or counts.
	KindInt64
)

// Schema lists the fields of one entity type's documents.
type Schema struct {
	Entity domain.EntityType
	Fields map[string]FieldKind
}

// Kind returns the kind of a field and whether the schema declares it.
func (s Schema) Kind(field string) (FieldKind, bool) {
	k, ok := s.Fields[field]
	return k, ok
}

var commonFields = map[string]FieldKind{
	FieldID:                         KindKeyword,
	FieldTenantID:                   KindKeyword,
	FieldOrganisationID:             KindKeyword,
	FieldProductID:                  KindKeyword,
	FieldCustomerID:                 KindKeyword,
	FieldOwnerUserID:                KindKeyword,
	FieldCreatedTimestamp:           KindInt64,
	FieldLastUpdatedTimestamp:       KindInt64,
	FieldLastUpdatedByUserTimestamp: KindInt64,
	FieldExpiryTimestamp:            KindInt64,
	FieldIndexedTimestamp:           KindInt64,
	FieldCustomerFullName:           KindText,
	FieldCustomerPreferredName:      KindText,
	FieldCustomerEmail:              KindLowerKeyword,
	FieldCustomerAlternativeEmail:   KindLowerKeyword,
	FieldCustomerHomePhone:          KindLowerKeyword,
	FieldCustomerWorkPhone:          KindLowerKeyword,
	FieldCustomerMobilePhone:        KindLowerKeyword,
	FieldOwnerFullName:              KindText,
	FieldIsTestData:                 KindKeyword,
	FieldIsDiscarded:                KindKeyword,
	FieldCalculationResult:          KindText,
	FieldFormData:                   KindText,
}

// QuoteSchema is the field set of quote documents.
var QuoteSchema = Schema{
	Entity: domain.EntityTypeQuote,
	Fields: withCommon(map[string]FieldKind{
		FieldQuoteID:     KindKeyword,
		FieldPolicyID:    KindKeyword,
		FieldQuoteType:   KindKeyword,
		FieldQuoteNumber: KindLowerKeyword,
		FieldQuoteTitle:  KindText,
		FieldQuoteState:  KindLowerKeyword,
	}),
}

// PolicySchema is the field set of policy documents.
var PolicySchema = Schema{
	Entity: domain.EntityTypePolicy,
	Fields: withCommon(map[string]FieldKind{
		FieldPolicyID:                         KindKeyword,
		FieldQuoteID:                          KindKeyword,
		FieldPolicyNumber:                     KindLowerKeyword,
		FieldPolicyTitle:                      KindText,
		FieldPolicyState:                      KindLowerKeyword,
		FieldIssuedTimestamp:                  KindInt64,
		FieldInceptionTimestamp:               KindInt64,
		FieldCancellationEffectiveTimestamp:   KindInt64,
		FieldLatestRenewalEffectiveTimestamp:  KindInt64,
		FieldRetroactiveTimestamp:             KindInt64,
		FieldTransactionID:                    KindKeyword,
		FieldTransactionQuoteID:               KindKeyword,
		FieldTransactionType:                  KindKeyword,
		FieldTransactionCreatedTimestamp:      KindInt64,
		FieldTransactionEffectiveTimestamp:    KindInt64,
		FieldTransactionCancellationTimestamp: KindInt64,
		FieldTransactionExpiryTimestamp:       KindInt64,
	}),
}

// SchemaFor returns the schema of an entity type.
func SchemaFor(entity domain.EntityType) (Schema, bool) {
	switch entity {
	case domain.EntityTypeQuote:
		return QuoteSchema, true
	case domain.EntityTypePolicy:
		return PolicySchema, true
	default:
		return Schema{}, false
	}
}

func withCommon(specific map[string]FieldKind) map[string]FieldKind {
	fields := make(map[string]FieldKind, len(commonFields)+len(specific))
	for name, kind := range commonFields {
		fields[name] = kind
	}
	for name, kind := range specific {
		fields[name] = kind
	}
	return fields
}
