package index

import (
	"github.com/google/uuid"
	"github.com/sha1n/policy-search-server/internal/domain"
)

// BuildQuoteDocument maps a quote to its index document. Absent optional
// values are omitted; currentTicks is recorded as the indexing time.
func BuildQuoteDocument(q domain.QuoteWriteModel, currentTicks int64) *Document {
	doc := NewDocument(FormatID(q.ID))

	doc.AddID(FieldID, q.ID)
	doc.AddID(FieldQuoteID, q.ID)
	doc.AddID(FieldPolicyID, q.PolicyID)
	doc.AddText(FieldQuoteNumber, q.QuoteNumber)
	doc.AddText(FieldQuoteTitle, q.QuoteTitle)
	doc.AddText(FieldQuoteState, q.QuoteState)
	doc.AddText(FieldQuoteType, q.QuoteType)

	addCommon(doc, commonValues{
		tenantID:                q.TenantID,
		organisationID:          q.OrganisationID,
		productID:               q.ProductID,
		customerID:              q.CustomerID,
		ownerUserID:             q.OwnerUserID,
		createdTicks:            q.CreatedTicks,
		lastModifiedTicks:       q.LastModifiedTicks,
		lastModifiedByUserTicks: q.LastModifiedByUserTicks,
		expiryTicks:             q.ExpiryTicks,
		customer:                q.Customer,
		ownerFullName:           q.OwnerFullName,
		calculationResult:       q.SerializedCalculationResult,
		formData:                q.SerializedFormData,
		isTestData:              q.IsTestData,
		isDiscarded:             q.IsDiscarded,
	}, currentTicks)

	return doc
}

// BuildPolicyDocument maps a policy and its transactions to one index
// document. Each transaction contributes a repeated value per transaction field.
func BuildPolicyDocument(p domain.PolicyWriteModel, currentTicks int64) *Document {
	doc := NewDocument(FormatID(p.ID))

	doc.AddID(FieldID, p.ID)
	doc.AddID(FieldPolicyID, p.ID)
	doc.AddID(FieldQuoteID, p.QuoteID)
	doc.AddText(FieldPolicyNumber, p.PolicyNumber)
	doc.AddText(FieldPolicyTitle, p.PolicyTitle)
	doc.AddText(FieldPolicyState, p.PolicyState)
	doc.AddOptionalInt64(FieldIssuedTimestamp, p.IssuedTicks)
	doc.AddOptionalInt64(FieldInceptionTimestamp, p.InceptionTicks)
	doc.AddOptionalInt64(FieldCancellationEffectiveTimestamp, p.CancellationEffectiveTicks)
	doc.AddOptionalInt64(FieldLatestRenewalEffectiveTimestamp, p.LatestRenewalEffectiveTicks)
	doc.AddOptionalInt64(FieldRetroactiveTimestamp, p.RetroactiveTicks)

	addCommon(doc, commonValues{
		tenantID:                p.TenantID,
		organisationID:          p.OrganisationID,
		productID:               p.ProductID,
		customerID:              p.CustomerID,
		ownerUserID:             p.OwnerUserID,
		createdTicks:            p.CreatedTicks,
		lastModifiedTicks:       p.LastModifiedTicks,
		lastModifiedByUserTicks: p.LastModifiedByUserTicks,
		expiryTicks:             p.ExpiryTicks,
		customer:                p.Customer,
		ownerFullName:           p.OwnerFullName,
		calculationResult:       p.SerializedCalculationResult,
		formData:                p.SerializedFormData,
		isTestData:              p.IsTestData,
		isDiscarded:             p.IsDiscarded,
	}, currentTicks)

	for _, tx := range p.Transactions {
		doc.AddID(FieldTransactionID, tx.ID)
		doc.AddID(FieldTransactionQuoteID, tx.QuoteID)
		doc.AddText(FieldTransactionType, tx.Type)
		doc.AddInt64(FieldTransactionCreatedTimestamp, tx.CreatedTicks)
		doc.AddOptionalInt64(FieldTransactionEffectiveTimestamp, tx.EffectiveTicks)
		doc.AddOptionalInt64(FieldTransactionCancellationTimestamp, tx.CancellationEffectiveTicks)
		doc.AddOptionalInt64(FieldTransactionExpiryTimestamp, tx.ExpiryTicks)
	}

	return doc
}

type commonValues struct {
	tenantID                uuid.UUID
	organisationID          uuid.UUID
	productID               uuid.UUID
	customerID              uuid.UUID
	ownerUserID             uuid.UUID
	createdTicks            int64
	lastModifiedTicks       int64
	lastModifiedByUserTicks *int64
	expiryTicks             *int64
	customer                domain.CustomerDetails
	ownerFullName           string
	calculationResult       string
	formData                string
	isTestData              bool
	isDiscarded             bool
}

func addCommon(doc *Document, v commonValues, currentTicks int64) {
	doc.AddID(FieldTenantID, v.tenantID)
	doc.AddID(FieldOrganisationID, v.organisationID)
	doc.AddID(FieldProductID, v.productID)
	doc.AddID(FieldCustomerID, v.customerID)
	doc.AddID(FieldOwnerUserID, v.ownerUserID)

	doc.AddInt64(FieldCreatedTimestamp, v.createdTicks)
	doc.AddInt64(FieldLastUpdatedTimestamp, v.lastModifiedTicks)
	doc.AddOptionalInt64(FieldLastUpdatedByUserTimestamp, v.lastModifiedByUserTicks)
	doc.AddOptionalInt64(FieldExpiryTimestamp, v.expiryTicks)
	doc.AddInt64(FieldIndexedTimestamp, currentTicks)

	doc.AddText(FieldCustomerFullName, v.customer.FullName)
	doc.AddText(FieldCustomerPreferredName, v.customer.PreferredName)
	doc.AddText(FieldCustomerEmail, v.customer.Email)
	doc.AddText(FieldCustomerAlternativeEmail, v.customer.AlternativeEmail)
	doc.AddText(FieldCustomerHomePhone, v.customer.HomePhone)
	doc.AddText(FieldCustomerWorkPhone, v.customer.WorkPhone)
	doc.AddText(FieldCustomerMobilePhone, v.customer.MobilePhone)
	doc.AddText(FieldOwnerFullName, v.ownerFullName)

	doc.AddBool(FieldIsTestData, v.isTestData)
	doc.AddBool(FieldIsDiscarded, v.isDiscarded)

	doc.AddChunkedText(FieldCalculationResult, FlattenJSON(v.calculationResult))
	doc.AddChunkedText(FieldFormData, FlattenJSON(v.formData))
}
