package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests write malformed rows with raw SQL, which the public API never produces.

func TestGetQuota_MalformedDecimalFails(t *testing.T) {
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	// GIVEN: a quota row whose taken column is not a number
	_, err = store.db.ExecContext(ctx, `
		INSERT INTO leave_quotas (employee_id, year, entitlement, carried_over, taken, remaining, updated_at)
		VALUES ('E1', 2025, '12', '0', 'lots', '12', '2025-01-01T00:00:00Z')
	`)
	require.NoError(t, err)

	// WHEN: reading it back
	qt, err := store.GetQuota(ctx, "E1", 2025)

	// THEN: the read fails instead of treating taken as zero
	assert.Error(t, err)
	assert.Nil(t, qt)
}

func TestListContracts_MalformedDecimalFails(t *testing.T) {
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	// GIVEN: a contract whose base salary is not a number
	_, err = store.db.ExecContext(ctx, `INSERT INTO contracts (`+contractColumns+`)
		VALUES ('c1', 'E1', 'FULL_TIME', '2025-01-01', NULL, 'twelve million', 'ACTIVE', 1,
			'2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)

	// WHEN: listing the employee's contracts
	_, err = store.ListContracts(ctx, "E1")

	// THEN: the row is reported as broken
	assert.Error(t, err)
}
