package migrations_test

import (
	"context"
	"testing"

	"github.com/ZondaOne/rhivo-app-sub003/internal/testutil"
	"github.com/ZondaOne/rhivo-app-sub003/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_IsIdempotent(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()

	require.NoError(t, migrations.Apply(ctx, pool))
	first, err := migrations.Version(ctx, pool)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, first, int64(4))

	require.NoError(t, migrations.Apply(ctx, pool))
	second, err := migrations.Version(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for _, table := range []string{"services", "reservations", "appointments", "audit_logs"} {
		var exists bool
		require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists))
		assert.True(t, exists, "table %s", table)
	}
}
