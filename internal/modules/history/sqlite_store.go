package history

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stresslab/internal/database"
	"github.com/rs/zerolog"
)

// SQLiteStore reads daily closes from the history database and turns them
// into return series.
type SQLiteStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSQLiteStore creates a new history store over an open database
func NewSQLiteStore(db *database.DB, log zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		log: log.With().Str("component", "history_store").Logger(),
	}
}

// ReturnSeries implements Store. Adjusted closes are preferred when present.
func (s *SQLiteStore) ReturnSeries(ctx context.Context, ticker string, start, end time.Time) (ReturnSeries, error) {
	query := `
		SELECT date, COALESCE(adjusted_close, close)
		FROM daily_prices
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.db.QueryContext(ctx, query, ticker, start.Unix(), end.Unix())
	if err != nil {
		return ReturnSeries{}, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var (
		dates  []time.Time
		closes []float64
	)
	for rows.Next() {
		var (
			dateUnix int64
			price    float64
		)
		if err := rows.Scan(&dateUnix, &price); err != nil {
			return ReturnSeries{}, fmt.Errorf("failed to scan daily price: %w", err)
		}
		dates = append(dates, time.Unix(dateUnix, 0).UTC())
		closes = append(closes, price)
	}
	if err := rows.Err(); err != nil {
		return ReturnSeries{}, fmt.Errorf("error iterating daily prices: %w", err)
	}

	points := SimpleReturns(dates, closes)

	s.log.Debug().
		Str("ticker", ticker).
		Int("prices", len(closes)).
		Int("returns", len(points)).
		Msg("Loaded return series")

	return ReturnSeries{Ticker: ticker, Points: points}, nil
}
