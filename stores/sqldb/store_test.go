package sqldb_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wa "github.com/panyam/webauth"
	"github.com/panyam/webauth/stores/sqldb"
	"github.com/panyam/webauth/stores/storetest"
)

func openSQLite(t *testing.T) *sqldb.UserStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "users.db") + "?_pragma=busy_timeout(5000)"
	store, err := sqldb.Open(context.Background(), sqldb.DialectSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteUserStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) wa.UserDirectory {
		return openSQLite(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openSQLite(t)
	require.NoError(t, sqldb.Migrate(context.Background(), store.DB(), sqldb.DialectSQLite))

	var n int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestMigrateRejectsUnknownDialect(t *testing.T) {
	store := openSQLite(t)
	err := sqldb.Migrate(context.Background(), store.DB(), sqldb.Dialect("oracle"))
	assert.Error(t, err)
}

// Runs only when WEBAUTH_TEST_POSTGRES_URL points at a scratch database.
func TestPostgresUserStore(t *testing.T) {
	dsn := os.Getenv("WEBAUTH_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("WEBAUTH_TEST_POSTGRES_URL not set")
	}
	storetest.Run(t, func(t *testing.T) wa.UserDirectory {
		store, err := sqldb.Open(context.Background(), sqldb.DialectPostgres, dsn)
		require.NoError(t, err)
		_, err = store.DB().Exec(`TRUNCATE users`)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}
