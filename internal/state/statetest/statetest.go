// Package statetest opens throwaway SQLite-backed stores for tests.
package statetest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elys-network/yvm/internal/state"
)

// NewStore returns a migrated store backed by a SQLite file in the test's temp dir.
func NewStore(t testing.TB) *state.Store {
	t.Helper()

	store, err := state.InitDB(state.DBConfig{
		Driver: state.DialectSQLite,
		Path:   filepath.Join(t.TempDir(), "yvm.db"),
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.EnsureSchema())
	return store
}
