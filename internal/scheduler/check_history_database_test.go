package scheduler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aristath/stresslab/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckHistoryDatabaseJob(t *testing.T) {
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "history.db"),
		Name: "history",
	})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	_, err = db.ExecContext(context.Background(),
		"INSERT INTO daily_prices (ticker, date, close) VALUES ('SPY', 1704153600, 470.5)")
	require.NoError(t, err)

	job := NewCheckHistoryDatabaseJob(db)
	job.SetLogger(zerolog.Nop())
	assert.Equal(t, "check_history_database", job.Name())
	assert.NoError(t, job.Run())
}

func TestCheckHistoryDatabaseJob_Unmigrated(t *testing.T) {
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "empty.db"),
		Name: "empty",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, NewCheckHistoryDatabaseJob(db).Run())
	assert.Error(t, NewCheckHistoryDatabaseJob(nil).Run())
}
