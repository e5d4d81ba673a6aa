package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stresslab/internal/database"
	"github.com/rs/zerolog"
)

// CheckHistoryDatabaseJob verifies the integrity of the history database
// and reports how much price data it holds.
type CheckHistoryDatabaseJob struct {
	log       zerolog.Logger
	historyDB *database.DB
}

// NewCheckHistoryDatabaseJob creates a new CheckHistoryDatabaseJob
func NewCheckHistoryDatabaseJob(historyDB *database.DB) *CheckHistoryDatabaseJob {
	return &CheckHistoryDatabaseJob{
		log:       zerolog.Nop(),
		historyDB: historyDB,
	}
}

// SetLogger sets the logger for the job
func (j *CheckHistoryDatabaseJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CheckHistoryDatabaseJob) Name() string {
	return "check_history_database"
}

// Run executes the integrity check
func (j *CheckHistoryDatabaseJob) Run() error {
	if j.historyDB == nil {
		return fmt.Errorf("history database not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var result string
	if err := j.historyDB.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		j.log.Error().Str("result", result).Msg("History database integrity check failed")
		return fmt.Errorf("database %s is corrupted: %s", j.historyDB.Name(), result)
	}

	var tickers, rows int
	err := j.historyDB.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT ticker), COUNT(*) FROM daily_prices").Scan(&tickers, &rows)
	if err != nil {
		return fmt.Errorf("failed to count daily prices: %w", err)
	}

	j.log.Info().
		Int("tickers", tickers).
		Int("rows", rows).
		Msg("History database integrity OK")
	return nil
}
