package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "data", "source.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testTenant(t *testing.T, store *Store, alias string) domain.Tenant {
	t.Helper()
	tenant := domain.Tenant{ID: uuid.New(), Alias: alias}
	require.NoError(t, store.SaveTenant(context.Background(), tenant))
	return tenant
}

func TestStore_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.db")

	first, err := NewStore(path)
	require.NoError(t, err)
	tenant := testTenant(t, first, "acme")
	require.NoError(t, first.Close())

	second, err := NewStore(path)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	got, err := second.TenantByAlias(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant, got)
	assert.Equal(t, path, second.Path())
}

func TestStore_Tenants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	zeta := testTenant(t, store, "zeta")
	acme := testTenant(t, store, "acme")

	tenants, err := store.Tenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Tenant{acme, zeta}, tenants)

	// Saving again renames rather than duplicates.
	acme.Alias = "acme-insurance"
	require.NoError(t, store.SaveTenant(ctx, acme))
	tenants, err = store.Tenants(ctx)
	require.NoError(t, err)
	assert.Len(t, tenants, 2)
	assert.Equal(t, "acme-insurance", tenants[0].Alias)
}

func TestStore_TenantByAlias_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.TenantByAlias(context.Background(), "missing")
	require.ErrorIs(t, err, ErrTenantNotFound)
}

func TestStore_QuoteRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenant := testTenant(t, store, "acme")

	quote := domain.QuoteWriteModel{
		ID:                      uuid.New(),
		TenantID:                tenant.ID,
		OrganisationID:          uuid.New(),
		ProductID:               uuid.New(),
		CustomerID:              uuid.New(),
		QuoteNumber:             "Q-1001",
		QuoteTitle:              "Home cover",
		QuoteState:              "Incomplete",
		QuoteType:               "NewBusiness",
		CreatedTicks:            100,
		LastModifiedTicks:       200,
		LastModifiedByUserTicks: domain.Ticks(150),
		Customer: domain.CustomerDetails{
			FullName: "Jane Citizen",
			Email:    "jane@example.com",
		},
		OwnerFullName:               "Sam Agent",
		SerializedCalculationResult: `{"premium":120}`,
		IsTestData:                  true,
	}
	require.NoError(t, store.SaveQuote(ctx, domain.Production, quote))

	quotes, err := store.QuotesModifiedSince(ctx, tenant.ID, domain.Production, nil)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, quote, quotes[0])

	other, err := store.QuotesModifiedSince(ctx, tenant.ID, domain.Staging, nil)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_QuotesModifiedSince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenant := testTenant(t, store, "acme")

	old := domain.QuoteWriteModel{ID: uuid.New(), TenantID: tenant.ID, CreatedTicks: 1, LastModifiedTicks: 10}
	fresh := domain.QuoteWriteModel{ID: uuid.New(), TenantID: tenant.ID, CreatedTicks: 1, LastModifiedTicks: 30}
	touched := domain.QuoteWriteModel{
		ID:                      uuid.New(),
		TenantID:                tenant.ID,
		CreatedTicks:            1,
		LastModifiedTicks:       5,
		LastModifiedByUserTicks: domain.Ticks(40),
	}
	for _, q := range []domain.QuoteWriteModel{old, fresh, touched} {
		require.NoError(t, store.SaveQuote(ctx, domain.Development, q))
	}

	quotes, err := store.QuotesModifiedSince(ctx, tenant.ID, domain.Development, domain.Ticks(20))
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, q := range quotes {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []uuid.UUID{touched.ID, fresh.ID}, ids)
}

func TestStore_PolicyWithTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenant := testTenant(t, store, "acme")

	policy := domain.PolicyWriteModel{
		ID:                uuid.New(),
		TenantID:          tenant.ID,
		QuoteID:           uuid.New(),
		PolicyNumber:      "P-2001",
		PolicyState:       "Issued",
		CreatedTicks:      100,
		LastModifiedTicks: 300,
		IssuedTicks:       domain.Ticks(110),
		InceptionTicks:    domain.Ticks(120),
		ExpiryTicks:       domain.Ticks(900),
		Transactions: []domain.PolicyTransactionWriteModel{
			{ID: uuid.New(), Type: "Adjustment", CreatedTicks: 200, EffectiveTicks: domain.Ticks(210)},
			{ID: uuid.New(), Type: "NewBusiness", CreatedTicks: 100, EffectiveTicks: domain.Ticks(120), ExpiryTicks: domain.Ticks(900)},
		},
	}
	require.NoError(t, store.SavePolicy(ctx, domain.Production, policy))

	policies, err := store.PoliciesModifiedSince(ctx, tenant.ID, domain.Production, nil)
	require.NoError(t, err)
	require.Len(t, policies, 1)

	got := policies[0]
	assert.Equal(t, policy.PolicyNumber, got.PolicyNumber)
	assert.Equal(t, policy.QuoteID, got.QuoteID)
	assert.Equal(t, policy.InceptionTicks, got.InceptionTicks)
	assert.Nil(t, got.CancellationEffectiveTicks)
	require.Len(t, got.Transactions, 2)
	assert.Equal(t, "NewBusiness", got.Transactions[0].Type)
	assert.Equal(t, policy.Transactions[0], got.Transactions[1])

	// Saving again replaces the transaction list.
	policy.LastModifiedTicks = 400
	policy.Transactions = policy.Transactions[:1]
	require.NoError(t, store.SavePolicy(ctx, domain.Production, policy))

	policies, err = store.PoliciesModifiedSince(ctx, tenant.ID, domain.Production, domain.Ticks(300))
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Len(t, policies[0].Transactions, 1)
	assert.Equal(t, "Adjustment", policies[0].Transactions[0].Type)
}

func TestStore_Environments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenant := testTenant(t, store, "acme")

	envs, err := store.Environments(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, envs)

	require.NoError(t, store.SaveQuote(ctx, domain.Production, domain.QuoteWriteModel{ID: uuid.New(), TenantID: tenant.ID}))
	require.NoError(t, store.SavePolicy(ctx, domain.Development, domain.PolicyWriteModel{ID: uuid.New(), TenantID: tenant.ID}))

	envs, err = store.Environments(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Environment{domain.Development, domain.Production}, envs)
}
