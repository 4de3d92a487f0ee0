package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/semlayer/internal/testutil"
)

// createTestStore opens a fresh store with a deterministic clock and ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	clock := testutil.NewDeterministicClock()
	ids := testutil.NewSequentialIDs("rec")
	s, err := Open(path, WithClock(clock.Now), WithIDGenerator(ids.Generate))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
