package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warp/timetrack/attendance"
	"github.com/warp/timetrack/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) attendance.Store {
		s, err := New(filepath.Join(t.TempDir(), "timetrack.db"))
		require.NoError(t, err)
		return s
	})
}

func TestNew_Reopen(t *testing.T) {
	// GIVEN a database file with a migrated schema
	path := filepath.Join(t.TempDir(), "timetrack.db")
	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// WHEN it is opened again
	s, err = New(path)

	// THEN migration is a no-op
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
