// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Runs the shared store contract against both registered SQLite drivers

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a temporary SQLite store for testing.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created in nested directory")
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)
}

func TestNewSQLiteStoreWithDriver_RejectsUnknown(t *testing.T) {
	_, err := NewSQLiteStoreWithDriver("postgres", filepath.Join(t.TempDir(), "x.db"))
	assert.ErrorContains(t, err, "unsupported sqlite driver")
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, newTestStore(t))
}

func TestSQLiteStore_Mattn(t *testing.T) {
	s, err := NewSQLiteStoreWithDriver(DriverSQLite3, filepath.Join(t.TempDir(), "cgo.db"))
	if err != nil {
		// cgo disabled builds register the driver but cannot open databases
		t.Skipf("sqlite3 driver unavailable: %v", err)
	}
	defer s.Close()

	runStoreContract(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	ctx := t.Context()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	applied, _, err := s.InsertConfig(ctx, "secret_key", "abc", 0)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.GetConfig(ctx, "secret_key", 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}
