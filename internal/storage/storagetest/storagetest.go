// Package storagetest provides throwaway stores for tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/leadsmith/internal/storage"
)

// Open returns a migrated in-memory SQLite store closed at test cleanup.
func Open(t testing.TB) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err, "open in-memory store")
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()), "migrate in-memory store")
	return s
}
