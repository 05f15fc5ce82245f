//go:build !wasm
// +build !wasm

package gorm_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	wa "github.com/panyam/webauth"
	gormstore "github.com/panyam/webauth/stores/gorm"
	"github.com/panyam/webauth/stores/storetest"
)

// Runs only when WEBAUTH_TEST_POSTGRES_URL points at a scratch database.
func TestGORMUserStore(t *testing.T) {
	dsn := os.Getenv("WEBAUTH_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("WEBAUTH_TEST_POSTGRES_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gormstore.AutoMigrate(db))

	storetest.Run(t, func(t *testing.T) wa.UserDirectory {
		require.NoError(t, db.Exec("DELETE FROM users").Error)
		return gormstore.NewUserStore(db)
	})
}
