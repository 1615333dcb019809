package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"hedgeTracker/internal/app"
	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/hedge"
	"hedgeTracker/internal/ports"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// TotalsResponse holds the derived figures of one pair.
type TotalsResponse struct {
	TotalFee      float64 `json:"totalFee"`
	TotalPnL      float64 `json:"totalPnl"`
	TradingVolume float64 `json:"tradingVolume"`
}

// SlippageResponse holds the price divergence between the legs of one pair.
type SlippageResponse struct {
	Open  float64 `json:"open"`
	Close float64 `json:"close"`
	Total float64 `json:"total"`
}

// PairResponse is a stored pair with its derived figures.
type PairResponse struct {
	ID        string             `json:"id"`
	Date      string             `json:"date,omitempty"`
	Team      string             `json:"team,omitempty"`
	Note      string             `json:"note,omitempty"`
	LegA      domain.TradeRecord `json:"legA"`
	LegB      domain.TradeRecord `json:"legB"`
	Totals    TotalsResponse     `json:"totals"`
	Slippage  SlippageResponse   `json:"slippage"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// MonthResponse is one month of the volume breakdown.
type MonthResponse struct {
	Month     string  `json:"month"`
	PairCount int     `json:"pairCount"`
	PnL       float64 `json:"pnl"`
	Fees      float64 `json:"fees"`
	VolumeA   float64 `json:"volumeA"`
	VolumeB   float64 `json:"volumeB"`
	ProgressA float64 `json:"progressA"`
	ProgressB float64 `json:"progressB"`
}

// TeamResponse is one team of the per-team breakdown.
type TeamResponse struct {
	Team      string  `json:"team"`
	PairCount int     `json:"pairCount"`
	PnL       float64 `json:"pnl"`
	Fees      float64 `json:"fees"`
	Volume    float64 `json:"volume"`
}

// SummaryResponse is the dashboard projection of a workspace.
type SummaryResponse struct {
	Workspace           string          `json:"workspace"`
	PairCount           int             `json:"pairCount"`
	TotalPnL            float64         `json:"totalPnl"`
	TotalFees           float64         `json:"totalFees"`
	TotalVolumeA        float64         `json:"totalVolumeA"`
	TotalVolumeB        float64         `json:"totalVolumeB"`
	StartingEquity      float64         `json:"startingEquity"`
	Equity              float64         `json:"equity"`
	MonthlyVolumeTarget float64         `json:"monthlyVolumeTarget"`
	ProgressA           float64         `json:"progressA"`
	ProgressB           float64         `json:"progressB"`
	BestPairID          string          `json:"bestPairId,omitempty"`
	BestPairPnL         float64         `json:"bestPairPnl"`
	WorstPairID         string          `json:"worstPairId,omitempty"`
	WorstPairPnL        float64         `json:"worstPairPnl"`
	Monthly             []MonthResponse `json:"monthly"`
	Teams               []TeamResponse  `json:"teams"`
}

// RiskRequest is the body of POST /api/v1/risk. Omitted balances and price
// are resolved by the service; zero leverage means the configured default.
type RiskRequest struct {
	Side      string   `json:"side"`
	BalanceA  *float64 `json:"balanceA,omitempty"`
	BalanceB  *float64 `json:"balanceB,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Quantity  float64  `json:"quantity"`
	LeverageA float64  `json:"leverageA,omitempty"`
	LeverageB float64  `json:"leverageB,omitempty"`
}

// AssessmentResponse holds the side-independent figures of one liquidation check.
// Prices are null when the check cannot be computed.
type AssessmentResponse struct {
	Computable            bool     `json:"computable"`
	Balance               float64  `json:"balance"`
	Leverage              float64  `json:"leverage"`
	LongLiquidationPrice  *float64 `json:"longLiquidationPrice"`
	ShortLiquidationPrice *float64 `json:"shortLiquidationPrice"`
	LongDistancePct       float64  `json:"longDistancePct"`
	ShortDistancePct      float64  `json:"shortDistancePct"`
	MaintenanceAmount     float64  `json:"maintenanceAmount"`
	SafetyBufferAmount    float64  `json:"safetyBufferAmount"`
	EffectiveCollateral   float64  `json:"effectiveCollateral"`
	MarginRequired        float64  `json:"marginRequired"`
	HasCollateral         bool     `json:"hasCollateral"`
	HasBuffer             bool     `json:"hasBuffer"`
	IsSafe                bool     `json:"isSafe"`
	CanOpen               bool     `json:"canOpen"`
}

// LegRiskResponse is the assessment of one exchange for the requested side.
type LegRiskResponse struct {
	AssessmentResponse
	LiquidationPrice *float64 `json:"liquidationPrice"`
	Buffer           *float64 `json:"buffer"`
}

// TradeRiskResponse is the assessment of one recorded leg of a pair.
type TradeRiskResponse struct {
	AssessmentResponse
	EntryPrice  float64  `json:"entryPrice"`
	Quantity    float64  `json:"quantity"`
	BufferLong  *float64 `json:"bufferLong"`
	BufferShort *float64 `json:"bufferShort"`
}

// PairRiskResponse is the body of GET /api/v1/pairs/{id}/risk.
type PairRiskResponse struct {
	PairID string            `json:"pairId"`
	IsSafe bool              `json:"isSafe"`
	LegA   TradeRiskResponse `json:"legA"`
	LegB   TradeRiskResponse `json:"legB"`
}

// RiskResponse is the hedge assessment of POST /api/v1/risk.
type RiskResponse struct {
	Side            string          `json:"side"`
	Price           *float64        `json:"price"`
	Quantity        float64         `json:"quantity"`
	IsSafe          bool            `json:"isSafe"`
	CanOpen         bool            `json:"canOpen"`
	NearLiquidation bool            `json:"nearLiquidation"`
	LegA            LegRiskResponse `json:"legA"`
	LegB            LegRiskResponse `json:"legB"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/v1/pairs
func (s *Server) listPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.service.ListPairs(r.Context(), s.workspace(r))
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	resp := make([]PairResponse, 0, len(pairs))
	for _, p := range pairs {
		resp = append(resp, toPairResponse(p))
	}
	s.respondWithJSON(w, http.StatusOK, resp)
}

// GET /api/v1/pairs/{id}
func (s *Server) getPair(w http.ResponseWriter, r *http.Request) {
	pair, err := s.service.GetPair(r.Context(), s.workspace(r), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, toPairResponse(pair))
}

// POST /api/v1/pairs
//
// Response:
//   - 201 Created: pair stored
//   - 400 Bad Request: malformed body or invalid trades
//   - 409 Conflict: a pair with the same ID exists
func (s *Server) createPair(w http.ResponseWriter, r *http.Request) {
	var rec domain.PairRecord
	if !s.decode(w, r, &rec) {
		return
	}
	pair, err := s.service.AddPair(r.Context(), s.workspace(r), rec)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.respondWithJSON(w, http.StatusCreated, toPairResponse(pair))
}

// PUT /api/v1/pairs/{id}
//
// Response:
//   - 200 OK: pair replaced
//   - 400 Bad Request: malformed body or invalid trades
//   - 404 Not Found: no pair with this ID
func (s *Server) updatePair(w http.ResponseWriter, r *http.Request) {
	var rec domain.PairRecord
	if !s.decode(w, r, &rec) {
		return
	}
	pair, err := s.service.UpdatePair(r.Context(), s.workspace(r), mux.Vars(r)["id"], rec)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, toPairResponse(pair))
}

// GET /api/v1/pairs/{id}/risk?balanceA=&balanceB=
func (s *Server) pairRisk(w http.ResponseWriter, r *http.Request) {
	balanceA, err := optionalFloat(r, "balanceA")
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid query parameter", err.Error())
		return
	}
	balanceB, err := optionalFloat(r, "balanceB")
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid query parameter", err.Error())
		return
	}

	risk, err := s.service.AssessPair(r.Context(), s.workspace(r), mux.Vars(r)["id"], balanceA, balanceB)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, PairRiskResponse{
		PairID: risk.Pair.ID,
		IsSafe: risk.IsSafe,
		LegA:   toTradeRisk(risk.A, risk.BalanceA, risk.Pair.LegA),
		LegB:   toTradeRisk(risk.B, risk.BalanceB, risk.Pair.LegB),
	})
}

// optionalFloat parses a finite query parameter; an absent parameter yields nil.
func optionalFloat(r *http.Request, name string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, fmt.Errorf("%s must be a number, got %q", name, raw)
	}
	return &v, nil
}

// DELETE /api/v1/pairs/{id}
func (s *Server) deletePair(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeletePair(r.Context(), s.workspace(r), mux.Vars(r)["id"]); err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/summary
func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.service.Summary(r.Context(), s.workspace(r))
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveSummary(sum.Workspace.Username, sum.PortfolioSummary)
	}
	s.respondWithJSON(w, http.StatusOK, toSummaryResponse(sum))
}

// POST /api/v1/risk
func (s *Server) risk(w http.ResponseWriter, r *http.Request) {
	var req RiskRequest
	if !s.decode(w, r, &req) {
		return
	}
	side, ok := domain.ParseSide(strings.TrimSpace(req.Side))
	if !ok {
		s.respondWithError(w, http.StatusBadRequest, "invalid_side", "side must be LONG or SHORT", req.Side)
		return
	}

	report, err := s.service.AssessHedge(r.Context(), app.RiskRequest{
		Side:      side,
		BalanceA:  req.BalanceA,
		BalanceB:  req.BalanceB,
		Price:     req.Price,
		Quantity:  req.Quantity,
		LeverageA: req.LeverageA,
		LeverageB: req.LeverageB,
	})
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveRisk(report.HedgeRiskAssessment)
	}
	s.respondWithJSON(w, http.StatusOK, toRiskResponse(report))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return false
	}
	return true
}

func (s *Server) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ports.ErrInvalidInput):
		s.respondWithError(w, http.StatusBadRequest, "invalid_input", "Invalid input", err.Error())
	case errors.Is(err, ports.ErrNotFound):
		s.respondWithError(w, http.StatusNotFound, "not_found", "Resource not found", err.Error())
	case errors.Is(err, ports.ErrDuplicateEntry):
		s.respondWithError(w, http.StatusConflict, "duplicate", "Resource already exists", err.Error())
	default:
		s.logger.Error(r.Context(), err, "Request failed", map[string]interface{}{"method": r.Method, "path": r.URL.Path})
		s.respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}

func (s *Server) respondWithError(w http.ResponseWriter, status int, code, message, details string) {
	s.respondWithJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error(context.Background(), err, "Failed to encode response")
	}
}

func toPairResponse(p *domain.HedgedPair) PairResponse {
	totals := hedge.Totals(p)
	slip := hedge.Slippage(p)
	resp := PairResponse{
		ID:        p.ID,
		Team:      p.Team,
		Note:      p.Note,
		LegA:      p.LegA.Record(),
		LegB:      p.LegB.Record(),
		Totals:    TotalsResponse{TotalFee: totals.TotalFee, TotalPnL: totals.TotalPnL, TradingVolume: totals.TradingVolume},
		Slippage:  SlippageResponse{Open: slip.OpenSlippage, Close: slip.CloseSlippage, Total: slip.TotalSlippage},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if !p.Date.IsZero() {
		resp.Date = p.Date.Format(domain.DateLayout)
	}
	return resp
}

func toSummaryResponse(s *app.Summary) SummaryResponse {
	resp := SummaryResponse{
		Workspace:           s.Workspace.Username,
		PairCount:           s.PairCount,
		TotalPnL:            s.TotalPnL,
		TotalFees:           s.TotalFees,
		TotalVolumeA:        s.TotalVolumeA,
		TotalVolumeB:        s.TotalVolumeB,
		StartingEquity:      s.StartingEquity,
		Equity:              s.Equity,
		MonthlyVolumeTarget: s.MonthlyVolumeTarget,
		ProgressA:           s.ProgressA,
		ProgressB:           s.ProgressB,
		BestPairID:          s.BestPairID,
		BestPairPnL:         s.BestPairPnL,
		WorstPairID:         s.WorstPairID,
		WorstPairPnL:        s.WorstPairPnL,
		Monthly:             make([]MonthResponse, 0, len(s.Monthly)),
		Teams:               make([]TeamResponse, 0, len(s.Teams)),
	}
	for _, m := range s.Monthly {
		resp.Monthly = append(resp.Monthly, MonthResponse(m))
	}
	for _, t := range s.Teams {
		resp.Teams = append(resp.Teams, TeamResponse(t))
	}
	return resp
}

func toRiskResponse(r *app.RiskReport) RiskResponse {
	return RiskResponse{
		Side:            string(r.Side),
		Price:           r.Price,
		Quantity:        r.Quantity,
		IsSafe:          r.IsSafe,
		CanOpen:         r.CanOpen,
		NearLiquidation: r.NearLiquidation,
		LegA:            toLegRisk(r.A, r.Side, r.BalanceA, r.LeverageA),
		LegB:            toLegRisk(r.B, r.Side, r.BalanceB, r.LeverageB),
	}
}

func toAssessment(a domain.RiskAssessment, balance, leverage float64) AssessmentResponse {
	return AssessmentResponse{
		Computable:            a.Computable,
		Balance:               balance,
		Leverage:              leverage,
		LongLiquidationPrice:  a.LongLiquidationPrice,
		ShortLiquidationPrice: a.ShortLiquidationPrice,
		LongDistancePct:       a.LongDistancePct,
		ShortDistancePct:      a.ShortDistancePct,
		MaintenanceAmount:     a.MaintenanceAmount,
		SafetyBufferAmount:    a.SafetyBufferAmount,
		EffectiveCollateral:   a.EffectiveCollateral,
		MarginRequired:        a.MarginRequired,
		HasCollateral:         a.HasCollateral,
		HasBuffer:             a.HasBuffer,
		IsSafe:                a.IsSafe,
		CanOpen:               a.CanOpen,
	}
}

func toLegRisk(a domain.RiskAssessment, side domain.Side, balance, leverage float64) LegRiskResponse {
	return LegRiskResponse{
		AssessmentResponse: toAssessment(a, balance, leverage),
		LiquidationPrice:   a.LiquidationPrice(side),
		Buffer:             computed(a, a.SideBuffer(side)),
	}
}

func toTradeRisk(a domain.RiskAssessment, balance float64, t domain.Trade) TradeRiskResponse {
	return TradeRiskResponse{
		AssessmentResponse: toAssessment(a, balance, t.Leverage),
		EntryPrice:         t.OpenPrice,
		Quantity:           t.Quantity,
		BufferLong:         computed(a, a.BufferLong),
		BufferShort:        computed(a, a.BufferShort),
	}
}

// computed returns &v for a computable assessment and nil otherwise.
func computed(a domain.RiskAssessment, v float64) *float64 {
	if !a.Computable {
		return nil
	}
	return &v
}
