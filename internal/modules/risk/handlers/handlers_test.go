package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/alphapulse/internal/modules/marketdata"
	"github.com/aristath/alphapulse/internal/modules/risk"
	"github.com/aristath/alphapulse/internal/modules/simulation"
)

// mockRiskService records calls and returns canned results.
type mockRiskService struct {
	lastRequest risk.SimulationRequest
	lastSymbols []string
	lastPeriod  string
	lastSymbol  string
	lastID      string
	err         error
}

func (m *mockRiskService) RunSimulation(_ context.Context, req risk.SimulationRequest) (*risk.Report, error) {
	m.lastRequest = req
	if m.err != nil {
		return nil, m.err
	}
	return &risk.Report{ID: "8c1e0c4e-6f0a-4d38-9c55-1f2d7c1c9a10", Seed: 42, Outcome: risk.OutcomeRiskWarning}, nil
}

func (m *mockRiskService) GetRun(id string) (*risk.Report, error) {
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return &risk.Report{ID: id}, nil
}

func (m *mockRiskService) Correlation(_ context.Context, symbols []string, period string) (*risk.CorrelationReport, error) {
	m.lastSymbols = symbols
	m.lastPeriod = period
	if m.err != nil {
		return nil, m.err
	}
	return &risk.CorrelationReport{Period: period, Correlation: [][]float64{{1, 0.4}, {0.4, 1}}}, nil
}

func (m *mockRiskService) Prices(_ context.Context, symbol, period string) (*risk.PriceHistory, error) {
	m.lastSymbol = symbol
	m.lastPeriod = period
	if m.err != nil {
		return nil, m.err
	}
	return &risk.PriceHistory{Symbol: symbol, Period: period}, nil
}

func newTestRouter(svc RiskService) *chi.Mux {
	handler := NewHandler(svc, zerolog.New(nil).Level(zerolog.Disabled))
	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)
	return router
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotNil(t, response["metadata"])
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response has a data object")
	return data
}

func TestHandleRunSimulation(t *testing.T) {
	svc := &mockRiskService{}
	router := newTestRouter(svc)

	body := `{"symbols":["AAPL","MSFT"],"weights":{"AAPL":0.6,"MSFT":0.4},"iterations":5000,"seed":7,"confidence":0.99}`
	req := httptest.NewRequest(http.MethodPost, "/api/risk/simulations", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	data := decodeData(t, w)
	assert.Equal(t, "8c1e0c4e-6f0a-4d38-9c55-1f2d7c1c9a10", data["id"])
	assert.Equal(t, "42", data["seed"])
	assert.Equal(t, risk.OutcomeRiskWarning, data["outcome"])

	got := svc.lastRequest
	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Symbols)
	assert.Equal(t, map[string]float64{"AAPL": 0.6, "MSFT": 0.4}, got.Weights)
	require.NotNil(t, got.Iterations)
	assert.Equal(t, 5000, *got.Iterations)
	require.NotNil(t, got.Seed)
	assert.Equal(t, uint64(7), *got.Seed)
	require.NotNil(t, got.Confidence)
	assert.Equal(t, 0.99, *got.Confidence)
	assert.Nil(t, got.HorizonDays)
}

func TestHandleRunSimulation_BadBody(t *testing.T) {
	router := newTestRouter(&mockRiskService{})

	for _, body := range []string{`{`, `{"symbols":"AAPL"}`, `{"unknown":1}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/risk/simulations", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
}

func TestHandleRunSimulation_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"allocation", fmt.Errorf("%w: weights sum to 1.1", simulation.ErrAllocationMismatch), http.StatusBadRequest, "weights sum to 1.1"},
		{"confidence", simulation.ErrInvalidConfidence, http.StatusBadRequest, "confidence"},
		{"insufficient data", fmt.Errorf("simulation failed: %w", simulation.ErrInsufficientData), http.StatusBadRequest, "insufficient"},
		{"too large", simulation.ErrSimulationTooLarge, http.StatusBadRequest, ""},
		{"period", fmt.Errorf("%w: \"3d\"", marketdata.ErrInvalidPeriod), http.StatusBadRequest, "3d"},
		{"request", risk.ErrInvalidRequest, http.StatusBadRequest, ""},
		{"no data", fmt.Errorf("%w for ZZZZ (1y)", marketdata.ErrNoData), http.StatusNotFound, "ZZZZ"},
		{"memory", risk.ErrInsufficientMemory, http.StatusServiceUnavailable, "Failed to run simulation"},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, "Failed to run simulation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockRiskService{err: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/risk/simulations", strings.NewReader(`{}`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.NotContains(t, w.Body.String(), "disk on fire")
		})
	}
}

func TestHandleGetRun(t *testing.T) {
	svc := &mockRiskService{}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/risk/simulations/abc-123", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", svc.lastID)
	assert.Equal(t, "abc-123", decodeData(t, w)["id"])

	svc.err = risk.ErrRunNotFound
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/risk/simulations/abc-123", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetCorrelation(t *testing.T) {
	svc := &mockRiskService{}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/risk/correlation?symbols=aapl,%20msft,AAPL&period=1y", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"AAPL", "MSFT"}, svc.lastSymbols)
	assert.Equal(t, "1y", svc.lastPeriod)

	data := decodeData(t, w)
	assert.Len(t, data["correlation"], 2)
}

func TestHandleGetCorrelation_NoSymbols(t *testing.T) {
	svc := &mockRiskService{}
	router := newTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/risk/correlation", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.lastSymbols, "the service picks the default universe")
	assert.Empty(t, svc.lastPeriod)
}

func TestHandleGetPrices(t *testing.T) {
	svc := &mockRiskService{}
	router := newTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/risk/prices/TSLA?period=6mo", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TSLA", svc.lastSymbol)
	assert.Equal(t, "6mo", svc.lastPeriod)
	assert.Equal(t, "TSLA", decodeData(t, w)["symbol"])
}

func TestHandleGetDefaults(t *testing.T) {
	router := newTestRouter(&mockRiskService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/risk/defaults", nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(simulation.DefaultIterations), data["iterations"])
	assert.Equal(t, marketdata.DefaultPeriod, data["period"])
	assert.Len(t, data["symbols"], len(marketdata.DefaultUniverse))
}

func TestStatusFor_Timeout(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(fmt.Errorf("download: %w", context.DeadlineExceeded)))
}
