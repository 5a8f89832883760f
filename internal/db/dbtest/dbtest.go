// Package dbtest provides a throwaway database for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/identity/internal/db"
)

// New returns a migrated in-memory sqlite database closed on cleanup.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close(gdb)
	})
	return gdb
}
