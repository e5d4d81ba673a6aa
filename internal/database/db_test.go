package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MigratesHistorySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := New(Config{Path: path, Name: "history"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	// Idempotent
	require.NoError(t, db.Migrate())

	_, err = db.ExecContext(context.Background(),
		"INSERT INTO daily_prices (ticker, date, close) VALUES (?, ?, ?)", "SPY", 1704153600, 470.5)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM daily_prices").Scan(&count))
	assert.Equal(t, 1, count)

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.Equal(t, "history", db.Name())
	assert.Equal(t, ProfileStandard, db.Profile())
	assert.Equal(t, path, db.Path())
}

func TestNew_ReadOnlyRequiresExistingFile(t *testing.T) {
	_, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "missing.db"),
		Profile: ProfileReadOnly,
		Name:    "history",
	})
	assert.Error(t, err)
}

func TestNew_ReadOnlyRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	rw, err := New(Config{Path: path, Name: "history"})
	require.NoError(t, err)
	require.NoError(t, rw.Migrate())
	require.NoError(t, rw.Close())

	ro, err := New(Config{Path: path, Profile: ProfileReadOnly, Name: "history"})
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.ExecContext(context.Background(),
		"INSERT INTO daily_prices (ticker, date, close) VALUES ('SPY', 1, 1.0)")
	assert.Error(t, err)
}

func TestBuildConnectionString(t *testing.T) {
	assert.Equal(t,
		"/tmp/x.db?_pragma=query_only(1)&_pragma=busy_timeout(5000)&_pragma=cache_size(-16000)",
		buildConnectionString("/tmp/x.db", ProfileReadOnly))

	s := buildConnectionString("file:mem?mode=memory", ProfileStandard)
	assert.Contains(t, s, "file:mem?mode=memory&_pragma=journal_mode(WAL)")
}
