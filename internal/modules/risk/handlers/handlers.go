// Package handlers provides HTTP handlers for portfolio risk simulations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphapulse/internal/modules/marketdata"
	"github.com/aristath/alphapulse/internal/modules/risk"
	"github.com/aristath/alphapulse/internal/modules/simulation"
	"github.com/aristath/alphapulse/internal/utils"
)

// maxRequestBytes bounds simulation request bodies (inline price histories included).
const maxRequestBytes = 8 << 20

// RiskService is the part of risk.Service the handlers use.
type RiskService interface {
	RunSimulation(ctx context.Context, req risk.SimulationRequest) (*risk.Report, error)
	GetRun(id string) (*risk.Report, error)
	Correlation(ctx context.Context, symbols []string, period string) (*risk.CorrelationReport, error)
	Prices(ctx context.Context, symbol, period string) (*risk.PriceHistory, error)
}

// Handler handles risk HTTP requests
type Handler struct {
	service RiskService
	log     zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(service RiskService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// HandleRunSimulation handles POST /api/risk/simulations
func (h *Handler) HandleRunSimulation(w http.ResponseWriter, r *http.Request) {
	var req risk.SimulationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.service.RunSimulation(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "Failed to run simulation")
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(report))
}

// HandleGetRun handles GET /api/risk/simulations/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	report, err := h.service.GetRun(id)
	if err != nil {
		h.writeError(w, err, "Failed to load simulation")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(report))
}

// HandleGetCorrelation handles GET /api/risk/correlation?symbols=A,B&period=2y
func (h *Handler) HandleGetCorrelation(w http.ResponseWriter, r *http.Request) {
	symbols := utils.ParseSymbols(r.URL.Query().Get("symbols"))
	period := r.URL.Query().Get("period")

	report, err := h.service.Correlation(r.Context(), symbols, period)
	if err != nil {
		h.writeError(w, err, "Failed to estimate correlation")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(report))
}

// HandleGetPrices handles GET /api/risk/prices/{symbol}?period=1y
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request, symbol string) {
	history, err := h.service.Prices(r.Context(), symbol, r.URL.Query().Get("period"))
	if err != nil {
		h.writeError(w, err, "Failed to get prices")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(history))
}

// HandleGetDefaults handles GET /api/risk/defaults
func (h *Handler) HandleGetDefaults(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"symbols":            marketdata.DefaultUniverse,
		"periods":            marketdata.Periods,
		"period":             marketdata.DefaultPeriod,
		"iterations":         simulation.DefaultIterations,
		"horizon_days":       simulation.DefaultHorizonDays,
		"confidence":         simulation.DefaultConfidence,
		"initial_investment": simulation.DefaultInitialInvestment,
	}))
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, risk.ErrRunNotFound), errors.Is(err, marketdata.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, risk.ErrInvalidRequest),
		errors.Is(err, marketdata.ErrInvalidPeriod),
		simulation.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, risk.ErrInsufficientMemory):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports client errors verbatim and hides internal ones behind msg.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Int("status", status).Msg(msg)
		http.Error(w, msg, status)
		return
	}
	h.log.Debug().Err(err).Int("status", status).Msg(msg)
	http.Error(w, err.Error(), status)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
