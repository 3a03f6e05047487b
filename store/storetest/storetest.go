// Package storetest opens throwaway sqlite stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/contribute/store"
)

// New returns a migrated store backed by a database file in a temp dir.
func New(t testing.TB) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "contribute.db"))
	assert.NoError(t, err)
	assert.NoError(t, s.Migrate(context.Background()))

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
