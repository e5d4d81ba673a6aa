package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func series(ticker string, days []int, returns []float64) ReturnSeries {
	s := ReturnSeries{Ticker: ticker}
	for i, d := range days {
		s.Points = append(s.Points, Point{Date: day(d), Return: returns[i]})
	}
	return s
}

func TestAlign_IntersectsDates(t *testing.T) {
	a := series("SPY", []int{1, 2, 3, 5}, []float64{0.01, 0.02, 0.03, 0.05})
	b := series("TLT", []int{2, 3, 4, 5}, []float64{-0.02, -0.03, -0.04, -0.05})

	aligned, err := Align([]ReturnSeries{a, b})
	require.NoError(t, err)

	assert.Equal(t, []string{"SPY", "TLT"}, aligned.Tickers)
	assert.Equal(t, []time.Time{day(2), day(3), day(5)}, aligned.Dates)
	assert.Equal(t, []float64{0.02, 0.03, 0.05}, aligned.Returns[0])
	assert.Equal(t, []float64{-0.02, -0.03, -0.05}, aligned.Returns[1])
	assert.Equal(t, 2, aligned.NumAssets())
	assert.Equal(t, 3, aligned.NumObservations())

	row := make([]float64, 2)
	aligned.Row(1, row)
	assert.Equal(t, []float64{0.03, -0.03}, row)
}

func TestAlign_RejectsUnorderedDates(t *testing.T) {
	bad := series("SPY", []int{2, 1}, []float64{0.01, 0.02})

	_, err := Align([]ReturnSeries{bad})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestAlign_RejectsDuplicateDates(t *testing.T) {
	bad := series("SPY", []int{1, 1}, []float64{0.01, 0.02})

	_, err := Align([]ReturnSeries{bad})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestSimpleReturns(t *testing.T) {
	dates := []time.Time{day(0), day(1), day(2)}
	points := SimpleReturns(dates, []float64{100, 110, 99})

	require.Len(t, points, 2)
	assert.Equal(t, day(1), points[0].Date)
	assert.InDelta(t, 0.10, points[0].Return, 1e-12)
	assert.InDelta(t, -0.10, points[1].Return, 1e-12)

	assert.Nil(t, SimpleReturns(dates[:1], []float64{100}))
}

func TestLoadAligned_MissingTicker(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(series("SPY", []int{1, 2}, []float64{0.01, 0.02})))

	_, err := LoadAligned(context.Background(), store, []string{"SPY", "XYZ"}, day(0), day(10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
	assert.Equal(t, domain.StageData, domain.StageOf(err))
	assert.Contains(t, err.Error(), "XYZ")
}

func TestMemoryStore_FiltersWindow(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(series("SPY", []int{1, 2, 3, 4}, []float64{0.1, 0.2, 0.3, 0.4})))

	s, err := store.ReturnSeries(context.Background(), "SPY", day(2), day(3))
	require.NoError(t, err)
	require.Len(t, s.Points, 2)
	assert.Equal(t, 0.2, s.Points[0].Return)
	assert.Equal(t, 0.3, s.Points[1].Return)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().ReturnSeries(ctx, "SPY", day(0), day(1))
	assert.ErrorIs(t, err, context.Canceled)
}
