package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps return series in memory. It backs tests and callers
// that already hold their data.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[string]ReturnSeries
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{series: make(map[string]ReturnSeries)}
}

// Put stores a series after validating it, replacing any previous one.
func (m *MemoryStore) Put(s ReturnSeries) error {
	if err := s.Validate(); err != nil {
		return err
	}
	cp := ReturnSeries{Ticker: s.Ticker, Points: append([]Point(nil), s.Points...)}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[s.Ticker] = cp
	return nil
}

// ReturnSeries implements Store. Unknown tickers yield an empty series.
func (m *MemoryStore) ReturnSeries(ctx context.Context, ticker string, start, end time.Time) (ReturnSeries, error) {
	if err := ctx.Err(); err != nil {
		return ReturnSeries{}, err
	}

	m.mu.RLock()
	s, ok := m.series[ticker]
	m.mu.RUnlock()
	if !ok {
		return ReturnSeries{Ticker: ticker}, nil
	}

	out := ReturnSeries{Ticker: ticker}
	for _, p := range s.Points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out, nil
}
