package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/stresslab/internal/modules/scenarios"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter() *chi.Mux {
	r := chi.NewRouter()
	NewHandler(zerolog.Nop()).RegisterRoutes(r)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandleList(t *testing.T) {
	w := get(setupRouter(), "/scenarios/predefined")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Count     int               `json:"count"`
			Scenarios []scenarios.Entry `json:"scenarios"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, len(scenarios.Catalog()), resp.Data.Count)
	assert.Len(t, resp.Data.Scenarios, resp.Data.Count)
}

func TestHandleList_TagFilter(t *testing.T) {
	w := get(setupRouter(), "/scenarios/predefined?tag=pandemic")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Scenarios []scenarios.Entry `json:"scenarios"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "covid-19-crash", resp.Data.Scenarios[0].Slug)
}

func TestHandleGet(t *testing.T) {
	router := setupRouter()

	w := get(router, "/scenarios/predefined/financial-crisis-2008?tickers=spy,tlt")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data scenarios.Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2008 Financial Crisis", resp.Data.Parameters.Name)
	assert.Equal(t, []string{"SPY", "TLT"}, resp.Data.Parameters.Tickers())
	assert.Equal(t, 1.5, resp.Data.Parameters.CorrelationMultiplier)

	w = get(router, "/scenarios/predefined/asteroid")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
