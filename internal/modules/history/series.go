// Package history provides the read side of historical daily returns:
// per-ticker series, joint date alignment and the stores that serve them.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/stresslab/internal/domain"
)

// Point is one daily simple return
type Point struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// ReturnSeries is the daily return history of one ticker
type ReturnSeries struct {
	Ticker string  `json:"ticker"`
	Points []Point `json:"points"`
}

// Validate checks that dates are strictly ascending.
func (s ReturnSeries) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Date.After(s.Points[i-1].Date) {
			return domain.Validation("return series %s: dates must be unique and ascending (index %d)", s.Ticker, i)
		}
	}
	return nil
}

// Store serves daily return series for a date window. Implementations must
// be safe for concurrent use.
type Store interface {
	ReturnSeries(ctx context.Context, ticker string, start, end time.Time) (ReturnSeries, error)
}

// Aligned is a jointly aligned return matrix: Returns[asset][day], every
// asset observed on every date in Dates.
type Aligned struct {
	Tickers []string
	Dates   []time.Time
	Returns [][]float64
}

// NumAssets returns N.
func (a *Aligned) NumAssets() int { return len(a.Tickers) }

// NumObservations returns T.
func (a *Aligned) NumObservations() int { return len(a.Dates) }

// Row copies the cross-section of returns on day t into dst (len N).
func (a *Aligned) Row(t int, dst []float64) {
	for i := range a.Returns {
		dst[i] = a.Returns[i][t]
	}
}

// Align intersects the dates of the given series, keeping the order of series.
func Align(series []ReturnSeries) (*Aligned, error) {
	if len(series) == 0 {
		return nil, domain.Validation("no return series to align")
	}

	counts := make(map[int64]int)
	for _, s := range series {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		for _, p := range s.Points {
			counts[p.Date.Unix()]++
		}
	}

	var common []int64
	for d, c := range counts {
		if c == len(series) {
			common = append(common, d)
		}
	}
	sort.Slice(common, func(i, j int) bool { return common[i] < common[j] })

	index := make(map[int64]int, len(common))
	dates := make([]time.Time, len(common))
	for i, d := range common {
		index[d] = i
		dates[i] = time.Unix(d, 0).UTC()
	}

	aligned := &Aligned{
		Tickers: make([]string, len(series)),
		Dates:   dates,
		Returns: make([][]float64, len(series)),
	}
	for i, s := range series {
		aligned.Tickers[i] = s.Ticker
		row := make([]float64, len(common))
		for _, p := range s.Points {
			if j, ok := index[p.Date.Unix()]; ok {
				row[j] = p.Return
			}
		}
		aligned.Returns[i] = row
	}

	return aligned, nil
}

// LoadAligned fetches every ticker from store and aligns them jointly.
func LoadAligned(ctx context.Context, store Store, tickers []string, start, end time.Time) (*Aligned, error) {
	series := make([]ReturnSeries, 0, len(tickers))
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := store.ReturnSeries(ctx, ticker, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to load returns for %s: %w", ticker, err)
		}
		if len(s.Points) == 0 {
			return nil, domain.InsufficientData(domain.StageData, "no return history for %s between %s and %s",
				ticker, start.Format("2006-01-02"), end.Format("2006-01-02"))
		}
		series = append(series, s)
	}
	return Align(series)
}

// SimpleReturns converts ascending closes into day-over-day simple returns,
// dated at the later close. Non-positive closes break the chain.
func SimpleReturns(dates []time.Time, closes []float64) []Point {
	if len(closes) < 2 {
		return nil
	}
	points := make([]Point, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		points = append(points, Point{
			Date:   dates[i],
			Return: closes[i]/closes[i-1] - 1,
		})
	}
	return points
}
