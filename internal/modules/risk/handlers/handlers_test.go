package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/stresslab/internal/modules/history"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alternating returns: +2%, -1%, +2%, -1%, ...
func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	store := history.NewMemoryStore()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	up := history.ReturnSeries{Ticker: "UP"}
	flat := history.ReturnSeries{Ticker: "FLAT"}
	for i := 0; i < 100; i++ {
		r := 0.02
		if i%2 == 1 {
			r = -0.01
		}
		up.Points = append(up.Points, history.Point{Date: day, Return: r})
		flat.Points = append(flat.Points, history.Point{Date: day, Return: 0})
		day = day.AddDate(0, 0, 1)
	}
	require.NoError(t, store.Put(up))
	require.NoError(t, store.Put(flat))

	r := chi.NewRouter()
	NewHandler(store, zerolog.Nop()).RegisterRoutes(r)
	return r
}

type profileResponse struct {
	Data struct {
		Tickers          []string           `json:"tickers"`
		Weights          map[string]float64 `json:"weights"`
		Observations     int                `json:"observations"`
		AnnualizedReturn float64            `json:"annualized_return"`
		MaxDrawdown      float64            `json:"max_drawdown"`
		Daily            struct {
			Levels []struct {
				Confidence float64 `json:"confidence"`
				VaR        float64 `json:"var"`
				CVaR       float64 `json:"cvar"`
			} `json:"levels"`
		} `json:"daily"`
	} `json:"data"`
}

func TestHandleGetSecurity(t *testing.T) {
	router := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/risk/securities/up?start_date=2024-01-01&end_date=2024-12-31&confidence=0.95", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp profileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"UP"}, resp.Data.Tickers)
	assert.Nil(t, resp.Data.Weights)
	assert.Equal(t, 100, resp.Data.Observations)
	assert.InDelta(t, 0.005*252, resp.Data.AnnualizedReturn, 1e-9)
	assert.InDelta(t, 0.01, resp.Data.MaxDrawdown, 1e-12)

	// half the days lose exactly 1%
	require.Len(t, resp.Data.Daily.Levels, 1)
	assert.InDelta(t, 0.01, resp.Data.Daily.Levels[0].VaR, 1e-12)
	assert.InDelta(t, 0.01, resp.Data.Daily.Levels[0].CVaR, 1e-12)
}

func TestHandleGetSecurity_Errors(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		path   string
		status int
	}{
		{"/risk/securities/UP?start_date=2024-13-01", http.StatusBadRequest},
		{"/risk/securities/UP?start_date=2024-01-01&end_date=2024-12-31&confidence=abc", http.StatusBadRequest},
		{"/risk/securities/UP?start_date=2024-01-01&end_date=2024-12-31&confidence=1.5", http.StatusBadRequest},
		{"/risk/securities/NOPE?start_date=2024-01-01&end_date=2024-12-31", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.status, w.Code, tt.path)
	}
}

func TestHandlePortfolio(t *testing.T) {
	router := setupRouter(t)

	body := `{"weights": {"UP": 1, "flat": 1}, "start_date": "2024-01-01", "end_date": "2024-12-31"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/risk/portfolio", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp profileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"FLAT", "UP"}, resp.Data.Tickers)
	assert.InDelta(t, 0.5, resp.Data.Weights["UP"], 1e-12)
	assert.InDelta(t, 0.005, resp.Data.MaxDrawdown, 1e-12)
	assert.Len(t, resp.Data.Daily.Levels, 3)
}

func TestHandlePortfolio_Validation(t *testing.T) {
	router := setupRouter(t)

	for _, body := range []string{
		`{"weights": {}, "start_date": "2024-01-01", "end_date": "2024-12-31"}`,
		`{"weights": {"UP": -1}, "start_date": "2024-01-01", "end_date": "2024-12-31"}`,
		`{"weights": {"UP": 0}, "start_date": "2024-01-01", "end_date": "2024-12-31"}`,
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/risk/portfolio", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}
