package migrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportline/internal/db"
	"reportline/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	v1, err := migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	v2, err := migrate.Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	migrations, err := migrate.Load()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, migrations[len(migrations)-1].Version, v1)

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestInMemoryDatabasesAreIsolated(t *testing.T) {
	ctx := context.Background()
	a, err := db.Open(db.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	b, err := db.Open(db.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	_, err = migrate.Migrate(ctx, a)
	require.NoError(t, err)

	var n int
	err = b.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&n)
	assert.Error(t, err, "second database must not see the first one's schema")
}
