package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/metrics"
	"github.com/bobmcallan/playasset/internal/models"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.Handle("GET /metrics", metrics.Handler())

	// Users
	mux.HandleFunc("GET /api/users/{userID}/positions", s.handlePositions)
	mux.HandleFunc("GET /api/users/{userID}/values", s.handleDailyValues)
	mux.HandleFunc("GET /api/users/{userID}/advice", s.handleAdvice)
	mux.HandleFunc("GET /api/users/{userID}/simulation", s.handleSimulation)
	mux.HandleFunc("GET /api/users/{userID}/simulation/chart.png", s.handleSimulationChart)
	mux.HandleFunc("POST /api/users/{userID}/trades", s.handleRecordTrade)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
		"uptime":  time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.app.ValuationService.Positions(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if positions == nil {
		positions = []models.PositionSnapshot{}
	}
	WriteJSON(w, http.StatusOK, positions)
}

func (s *Server) handleDailyValues(w http.ResponseWriter, r *http.Request) {
	lookback := 0
	if v := r.URL.Query().Get("lookback_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteErrorWithCode(w, http.StatusBadRequest, "lookback_days must be a positive integer", "invalid_input")
			return
		}
		lookback = n
	}
	if lookback == 0 {
		lookback = s.app.Analytics.Load().Risk.LookbackDays
	}

	points, err := s.app.ValuationService.DailyValues(r.Context(), r.PathValue("userID"), lookback)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if points == nil {
		points = []models.DailyValuePoint{}
	}
	WriteJSON(w, http.StatusOK, points)
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	advice, err := s.app.AdviceService.GetPortfolioAdvice(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, advice)
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.app.SimulationService.Run(r.Context(), r.PathValue("userID"), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleSimulationChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	png, err := s.app.SimulationService.Chart(r.Context(), r.PathValue("userID"), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// tradeRequest is the body of POST /api/users/{userID}/trades.
type tradeRequest struct {
	ID           string           `json:"id"`
	AccountID    string           `json:"account_id"`
	InstrumentID string           `json:"instrument_id"`
	Side         string           `json:"side"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Price        decimal.Decimal  `json:"price"`
	Fee          *decimal.Decimal `json:"fee"`
	Tax          *decimal.Decimal `json:"tax"`
	OccurredAt   string           `json:"occurred_at"` // RFC 3339 or YYYY-MM-DD; empty means now
	Note         string           `json:"note"`
}

// toTrade converts the request into a trade event. Field-level validation
// (quantity, price, ownership) happens in the ledger service.
func (req tradeRequest) toTrade() (models.TradeEvent, error) {
	side, ok := models.ParseSide(req.Side)
	if !ok {
		return models.TradeEvent{}, models.Invalid("side", "must be BUY or SELL, got %q", req.Side)
	}
	trade := models.TradeEvent{
		ID:           strings.TrimSpace(req.ID),
		AccountID:    strings.TrimSpace(req.AccountID),
		InstrumentID: strings.TrimSpace(req.InstrumentID),
		Side:         side,
		Quantity:     req.Quantity,
		Price:        req.Price,
		Note:         req.Note,
	}
	if req.Fee != nil {
		trade.Fee = *req.Fee
	}
	if req.Tax != nil {
		trade.Tax = *req.Tax
	}
	if v := strings.TrimSpace(req.OccurredAt); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			at, err = time.Parse(models.DateLayout, v)
		}
		if err != nil {
			return models.TradeEvent{}, models.Invalid("occurred_at", "must be RFC 3339 or YYYY-MM-DD, got %q", v)
		}
		trade.OccurredAt = at.UTC()
	}
	return trade, nil
}

func (s *Server) handleRecordTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	trade, err := req.toTrade()
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	result, err := s.app.LedgerService.RecordTrade(r.Context(), r.PathValue("userID"), trade)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, result)
}
