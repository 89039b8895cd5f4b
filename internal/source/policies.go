package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sha1n/policy-search-server/internal/domain"
)

const policyColumns = `id, organisation_id, product_id, customer_id, owner_user_id, quote_id,
	tenant_id, policy_number, policy_title, policy_state,
	created_ticks, last_modified_ticks, last_modified_by_user_ticks, issued_ticks, inception_ticks,
	expiry_ticks, cancellation_effective_ticks, latest_renewal_effective_ticks, retroactive_ticks,
	customer_full_name, customer_preferred_name, customer_email, customer_alternative_email,
	customer_home_phone, customer_work_phone, customer_mobile_phone, owner_full_name,
	calculation_result, form_data, is_test_data, is_discarded`

// SavePolicy stores or replaces a policy of a tenant in env, together with
// its transactions.
func (s *Store) SavePolicy(ctx context.Context, env domain.Environment, p domain.PolicyWriteModel) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 32), ", ")
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO policies (`+policyColumns+`, environment)
		VALUES (`+placeholders+`)
	`,
		p.ID.String(), nullID(p.OrganisationID), nullID(p.ProductID), nullID(p.CustomerID),
		nullID(p.OwnerUserID), nullID(p.QuoteID),
		p.TenantID.String(), p.PolicyNumber, p.PolicyTitle, p.PolicyState,
		p.CreatedTicks, p.LastModifiedTicks, nullTicks(p.LastModifiedByUserTicks),
		nullTicks(p.IssuedTicks), nullTicks(p.InceptionTicks), nullTicks(p.ExpiryTicks),
		nullTicks(p.CancellationEffectiveTicks), nullTicks(p.LatestRenewalEffectiveTicks), nullTicks(p.RetroactiveTicks),
		p.Customer.FullName, p.Customer.PreferredName, p.Customer.Email, p.Customer.AlternativeEmail,
		p.Customer.HomePhone, p.Customer.WorkPhone, p.Customer.MobilePhone, p.OwnerFullName,
		p.SerializedCalculationResult, p.SerializedFormData, boolInt(p.IsTestData), boolInt(p.IsDiscarded),
		env.String(),
	)
	if err != nil {
		return fmt.Errorf("saving policy %s: %w", p.ID, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM policy_transactions WHERE policy_id = ?", p.ID.String()); err != nil {
		return fmt.Errorf("clearing transactions of policy %s: %w", p.ID, err)
	}
	for _, t := range p.Transactions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO policy_transactions
				(id, policy_id, quote_id, type, created_ticks, effective_ticks, cancellation_effective_ticks, expiry_ticks)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID.String(), p.ID.String(), nullID(t.QuoteID), t.Type, t.CreatedTicks,
			nullTicks(t.EffectiveTicks), nullTicks(t.CancellationEffectiveTicks), nullTicks(t.ExpiryTicks))
		if err != nil {
			return fmt.Errorf("saving transaction %s of policy %s: %w", t.ID, p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing policy %s: %w", p.ID, err)
	}
	return nil
}

// PoliciesModifiedSince returns a tenant's policies in env modified after
// sinceTicks, with their transactions. A nil bound returns every policy.
func (s *Store) PoliciesModifiedSince(ctx context.Context, tenantID uuid.UUID, env domain.Environment, sinceTicks *int64) ([]domain.PolicyWriteModel, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE tenant_id = ? AND environment = ?`
	args := []any{tenantID.String(), env.String()}
	if sinceTicks != nil {
		query += ` AND MAX(last_modified_ticks, COALESCE(last_modified_by_user_ticks, 0)) > ?`
		args = append(args, *sinceTicks)
	}
	query += ` ORDER BY last_modified_ticks, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying policies: %w", err)
	}

	var policies []domain.PolicyWriteModel
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range policies {
		txs, err := s.transactions(ctx, policies[i].ID)
		if err != nil {
			return nil, err
		}
		policies[i].Transactions = txs
	}
	return policies, nil
}

func (s *Store) transactions(ctx context.Context, policyID uuid.UUID) ([]domain.PolicyTransactionWriteModel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quote_id, type, created_ticks, effective_ticks, cancellation_effective_ticks, expiry_ticks
		FROM policy_transactions WHERE policy_id = ? ORDER BY created_ticks, id
	`, policyID.String())
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txs []domain.PolicyTransactionWriteModel
	for rows.Next() {
		var t domain.PolicyTransactionWriteModel
		var id string
		var quoteID sql.NullString
		var effective, cancellation, expiry sql.NullInt64
		if err := rows.Scan(&id, &quoteID, &t.Type, &t.CreatedTicks, &effective, &cancellation, &expiry); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("transaction id: %w", err)
		}
		if t.QuoteID, err = parseNullID("quote_id", quoteID); err != nil {
			return nil, err
		}
		t.EffectiveTicks = ticksPtr(effective)
		t.CancellationEffectiveTicks = ticksPtr(cancellation)
		t.ExpiryTicks = ticksPtr(expiry)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func scanPolicy(rows *sql.Rows) (domain.PolicyWriteModel, error) {
	var p domain.PolicyWriteModel
	var id, tenantID string
	var modifiedByUser, issued, inception, expiry, cancellation, renewal, retroactive sql.NullInt64
	var testData, discarded int
	ids := newIDColumns("organisation_id", "product_id", "customer_id", "owner_user_id", "quote_id")

	dest := append([]any{&id}, ids.targets()...)
	dest = append(dest,
		&tenantID, &p.PolicyNumber, &p.PolicyTitle, &p.PolicyState,
		&p.CreatedTicks, &p.LastModifiedTicks, &modifiedByUser, &issued, &inception,
		&expiry, &cancellation, &renewal, &retroactive,
		&p.Customer.FullName, &p.Customer.PreferredName, &p.Customer.Email, &p.Customer.AlternativeEmail,
		&p.Customer.HomePhone, &p.Customer.WorkPhone, &p.Customer.MobilePhone, &p.OwnerFullName,
		&p.SerializedCalculationResult, &p.SerializedFormData, &testData, &discarded,
	)
	if err := rows.Scan(dest...); err != nil {
		return p, fmt.Errorf("scanning policy: %w", err)
	}

	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return p, fmt.Errorf("policy id: %w", err)
	}
	if p.TenantID, err = uuid.Parse(tenantID); err != nil {
		return p, fmt.Errorf("policy %s tenant id: %w", id, err)
	}
	if err := ids.parse(&p.OrganisationID, &p.ProductID, &p.CustomerID, &p.OwnerUserID, &p.QuoteID); err != nil {
		return p, fmt.Errorf("policy %s: %w", id, err)
	}
	p.LastModifiedByUserTicks = ticksPtr(modifiedByUser)
	p.IssuedTicks = ticksPtr(issued)
	p.InceptionTicks = ticksPtr(inception)
	p.ExpiryTicks = ticksPtr(expiry)
	p.CancellationEffectiveTicks = ticksPtr(cancellation)
	p.LatestRenewalEffectiveTicks = ticksPtr(renewal)
	p.RetroactiveTicks = ticksPtr(retroactive)
	p.IsTestData = testData != 0
	p.IsDiscarded = discarded != 0

	return p, nil
}
