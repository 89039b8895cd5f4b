package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/sha1n/policy-search-server/internal/domain"
)

const quoteColumns = `id, organisation_id, product_id, customer_id, owner_user_id, policy_id,
	tenant_id, quote_number, quote_title, quote_state, quote_type,
	created_ticks, last_modified_ticks, last_modified_by_user_ticks, expiry_ticks,
	customer_full_name, customer_preferred_name, customer_email, customer_alternative_email,
	customer_home_phone, customer_work_phone, customer_mobile_phone, owner_full_name,
	calculation_result, form_data, is_test_data, is_discarded`

// SaveQuote stores or replaces a quote of a tenant in env.
func (s *Store) SaveQuote(ctx context.Context, env domain.Environment, q domain.QuoteWriteModel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO quotes (`+quoteColumns+`, environment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		q.ID.String(), nullID(q.OrganisationID), nullID(q.ProductID), nullID(q.CustomerID),
		nullID(q.OwnerUserID), nullID(q.PolicyID),
		q.TenantID.String(), q.QuoteNumber, q.QuoteTitle, q.QuoteState, q.QuoteType,
		q.CreatedTicks, q.LastModifiedTicks, nullTicks(q.LastModifiedByUserTicks), nullTicks(q.ExpiryTicks),
		q.Customer.FullName, q.Customer.PreferredName, q.Customer.Email, q.Customer.AlternativeEmail,
		q.Customer.HomePhone, q.Customer.WorkPhone, q.Customer.MobilePhone, q.OwnerFullName,
		q.SerializedCalculationResult, q.SerializedFormData, boolInt(q.IsTestData), boolInt(q.IsDiscarded),
		env.String(),
	)
	if err != nil {
		return fmt.Errorf("saving quote %s: %w", q.ID, err)
	}
	return nil
}

// QuotesModifiedSince returns a tenant's quotes in env modified after
// sinceTicks, by either timestamp. A nil bound returns every quote.
func (s *Store) QuotesModifiedSince(ctx context.Context, tenantID uuid.UUID, env domain.Environment, sinceTicks *int64) ([]domain.QuoteWriteModel, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE tenant_id = ? AND environment = ?`
	args := []any{tenantID.String(), env.String()}
	if sinceTicks != nil {
		query += ` AND MAX(last_modified_ticks, COALESCE(last_modified_by_user_ticks, 0)) > ?`
		args = append(args, *sinceTicks)
	}
	query += ` ORDER BY last_modified_ticks, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying quotes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var quotes []domain.QuoteWriteModel
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func scanQuote(rows *sql.Rows) (domain.QuoteWriteModel, error) {
	var q domain.QuoteWriteModel
	var id, tenantID string
	var modifiedByUser, expiry sql.NullInt64
	var testData, discarded int
	ids := newIDColumns("organisation_id", "product_id", "customer_id", "owner_user_id", "policy_id")

	dest := append([]any{&id}, ids.targets()...)
	dest = append(dest,
		&tenantID, &q.QuoteNumber, &q.QuoteTitle, &q.QuoteState, &q.QuoteType,
		&q.CreatedTicks, &q.LastModifiedTicks, &modifiedByUser, &expiry,
		&q.Customer.FullName, &q.Customer.PreferredName, &q.Customer.Email, &q.Customer.AlternativeEmail,
		&q.Customer.HomePhone, &q.Customer.WorkPhone, &q.Customer.MobilePhone, &q.OwnerFullName,
		&q.SerializedCalculationResult, &q.SerializedFormData, &testData, &discarded,
	)
	if err := rows.Scan(dest...); err != nil {
		return q, fmt.Errorf("scanning quote: %w", err)
	}

	var err error
	if q.ID, err = uuid.Parse(id); err != nil {
		return q, fmt.Errorf("quote id: %w", err)
	}
	if q.TenantID, err = uuid.Parse(tenantID); err != nil {
		return q, fmt.Errorf("quote %s tenant id: %w", id, err)
	}
	if err := ids.parse(&q.OrganisationID, &q.ProductID, &q.CustomerID, &q.OwnerUserID, &q.PolicyID); err != nil {
		return q, fmt.Errorf("quote %s: %w", id, err)
	}
	q.LastModifiedByUserTicks = ticksPtr(modifiedByUser)
	q.ExpiryTicks = ticksPtr(expiry)
	q.IsTestData = testData != 0
	q.IsDiscarded = discarded != 0

	return q, nil
}
