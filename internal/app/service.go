package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"hedgeTracker/config"
	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/hedge"
	"hedgeTracker/internal/ports"
)

// balanceAsset is the collateral asset looked up on the exchange.
const balanceAsset = "USDT"

// HedgeService orchestrates workspaces, hedge pairs, summaries and risk checks.
type HedgeService struct {
	cfg        *config.Config
	logger     ports.Logger
	workspaces ports.WorkspaceRepository
	pairs      ports.PairRepository
	prices     ports.PriceSource   // Optional
	balances   ports.BalanceSource // Optional
	cache      *PriceCache

	aggregator *hedge.PortfolioAggregator
	calculator *hedge.LiquidationCalculator

	now   func() time.Time
	newID func() string
}

// NewHedgeService creates a new application service instance.
// prices and balances may be nil when no exchange is configured.
func NewHedgeService(
	cfg *config.Config,
	logger ports.Logger,
	workspaces ports.WorkspaceRepository,
	pairs ports.PairRepository,
	prices ports.PriceSource,
	balances ports.BalanceSource,
) (*HedgeService, error) {
	if cfg == nil || logger == nil || workspaces == nil || pairs == nil {
		return nil, fmt.Errorf("missing required dependencies for HedgeService")
	}
	if cfg.DefaultLeverage <= 0 {
		return nil, fmt.Errorf("%w: default leverage must be positive", ports.ErrConfigurationError)
	}
	if strings.TrimSpace(cfg.DefaultUser) == "" {
		return nil, fmt.Errorf("%w: default user must be set", ports.ErrConfigurationError)
	}

	return &HedgeService{
		cfg:        cfg,
		logger:     logger,
		workspaces: workspaces,
		pairs:      pairs,
		prices:     prices,
		balances:   balances,
		cache:      NewPriceCache(),
		aggregator: hedge.NewPortfolioAggregator(cfg.PortfolioConfig()),
		calculator: hedge.NewLiquidationCalculator(cfg.RiskConfig()),
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

// DefaultUser returns the configured workspace used when none is given.
func (s *HedgeService) DefaultUser() string {
	return s.cfg.DefaultUser
}

// Prices returns the reference price cache.
func (s *HedgeService) Prices() *PriceCache {
	return s.cache
}

func (s *HedgeService) user(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return s.cfg.DefaultUser
	}
	return username
}

// --- Workspaces ---

// Login loads the workspace of username, creating it with the configured
// defaults on first use.
func (s *HedgeService) Login(ctx context.Context, username string) (*domain.Workspace, error) {
	username = s.user(username)
	ws, err := s.workspaces.GetOrCreateWorkspace(ctx, username, domain.Workspace{
		Username:            username,
		MonthlyVolumeTarget: s.cfg.MonthlyVolumeTarget,
		StartingEquity:      s.cfg.StartingEquity,
	})
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load workspace", map[string]interface{}{"username": username})
		return nil, fmt.Errorf("login %s: %w", username, err)
	}
	s.logger.Debug(ctx, "Workspace loaded", map[string]interface{}{"username": username})
	return ws, nil
}

// SetMonthlyTarget changes the per-exchange monthly volume target.
func (s *HedgeService) SetMonthlyTarget(ctx context.Context, username string, target float64) (*domain.Workspace, error) {
	if !(target > 0) || math.IsInf(target, 0) {
		return nil, fmt.Errorf("%w: monthly volume target must be a positive number", ports.ErrInvalidInput)
	}
	return s.updateWorkspace(ctx, username, func(ws *domain.Workspace) { ws.MonthlyVolumeTarget = target })
}

// SetStartingEquity changes the equity the portfolio started from.
func (s *HedgeService) SetStartingEquity(ctx context.Context, username string, equity float64) (*domain.Workspace, error) {
	if math.IsNaN(equity) || math.IsInf(equity, 0) || equity < 0 {
		return nil, fmt.Errorf("%w: starting equity must be a non-negative number", ports.ErrInvalidInput)
	}
	return s.updateWorkspace(ctx, username, func(ws *domain.Workspace) { ws.StartingEquity = equity })
}

func (s *HedgeService) updateWorkspace(ctx context.Context, username string, mutate func(*domain.Workspace)) (*domain.Workspace, error) {
	ws, err := s.Login(ctx, username)
	if err != nil {
		return nil, err
	}
	mutate(ws)
	if err := s.workspaces.UpdateWorkspace(ctx, ws); err != nil {
		s.logger.Error(ctx, err, "Failed to update workspace", map[string]interface{}{"username": ws.Username})
		return nil, fmt.Errorf("update workspace %s: %w", ws.Username, err)
	}
	s.logger.Info(ctx, "Workspace settings updated", map[string]interface{}{
		"username": ws.Username,
		"target":   ws.MonthlyVolumeTarget,
		"equity":   ws.StartingEquity,
	})
	return ws, nil
}

// --- Pairs ---

// AddPair validates rec and stores it as a new pair. A missing ID is
// generated and a missing date defaults to today (UTC).
func (s *HedgeService) AddPair(ctx context.Context, username string, rec domain.PairRecord) (*domain.HedgedPair, error) {
	username = s.user(username)
	pair, err := hedge.NormalizePair(rec)
	if err != nil {
		s.logger.Warn(ctx, "Rejected pair record", map[string]interface{}{"username": username, "error": err.Error()})
		return nil, err
	}

	if pair.ID == "" {
		pair.ID = s.newID()
	}
	if pair.Date.IsZero() {
		pair.Date = s.today()
	}

	if err := s.pairs.CreatePair(ctx, username, &pair); err != nil {
		if !errors.Is(err, ports.ErrDuplicateEntry) {
			s.logger.Error(ctx, err, "Failed to save pair", map[string]interface{}{"username": username, "pairID": pair.ID})
		}
		return nil, fmt.Errorf("add pair %s: %w", pair.ID, err)
	}
	s.logger.Info(ctx, "Pair added", map[string]interface{}{"username": username, "pairID": pair.ID, "coin": pair.LegA.Coin})
	return &pair, nil
}

// UpdatePair replaces the trades and labels of an existing pair. The ID and
// creation time are kept; a missing date keeps the stored date.
func (s *HedgeService) UpdatePair(ctx context.Context, username, id string, rec domain.PairRecord) (*domain.HedgedPair, error) {
	username = s.user(username)
	existing, err := s.GetPair(ctx, username, id)
	if err != nil {
		return nil, err
	}

	pair, err := hedge.NormalizePair(rec)
	if err != nil {
		return nil, err
	}
	pair.ID = existing.ID
	pair.CreatedAt = existing.CreatedAt
	if pair.Date.IsZero() {
		pair.Date = existing.Date
	}

	if err := s.pairs.SavePair(ctx, username, &pair); err != nil {
		s.logger.Error(ctx, err, "Failed to update pair", map[string]interface{}{"username": username, "pairID": id})
		return nil, fmt.Errorf("update pair %s: %w", id, err)
	}
	s.logger.Info(ctx, "Pair updated", map[string]interface{}{"username": username, "pairID": id})
	return &pair, nil
}

// GetPair returns one pair or ports.ErrNotFound.
func (s *HedgeService) GetPair(ctx context.Context, username, id string) (*domain.HedgedPair, error) {
	username = s.user(username)
	pair, err := s.pairs.FindPair(ctx, username, id)
	if err != nil {
		return nil, fmt.Errorf("get pair %s: %w", id, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("pair %s: %w", id, ports.ErrNotFound)
	}
	return pair, nil
}

// DeletePair removes a pair.
func (s *HedgeService) DeletePair(ctx context.Context, username, id string) error {
	username = s.user(username)
	if err := s.pairs.DeletePair(ctx, username, id); err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.Error(ctx, err, "Failed to delete pair", map[string]interface{}{"username": username, "pairID": id})
		}
		return fmt.Errorf("delete pair %s: %w", id, err)
	}
	s.logger.Info(ctx, "Pair deleted", map[string]interface{}{"username": username, "pairID": id})
	return nil
}

// ListPairs returns the pairs of a workspace ordered by date.
func (s *HedgeService) ListPairs(ctx context.Context, username string) ([]*domain.HedgedPair, error) {
	username = s.user(username)
	pairs, err := s.pairs.ListPairs(ctx, username)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to list pairs", map[string]interface{}{"username": username})
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	return pairs, nil
}

// ImportFailure describes one record rejected during an import.
type ImportFailure struct {
	Index int // Zero-based position in the input
	Err   error
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported []*domain.HedgedPair
	Failed   []ImportFailure
}

// ImportPairs adds every record. Invalid or duplicate records are collected
// in Failed and do not stop the import; storage failures abort it.
func (s *HedgeService) ImportPairs(ctx context.Context, username string, recs []domain.PairRecord) (*ImportResult, error) {
	result := &ImportResult{}
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("import canceled: %w: %v", ports.ErrContextCanceled, err)
		}
		pair, err := s.AddPair(ctx, username, rec)
		if err != nil {
			if errors.Is(err, ports.ErrInvalidInput) || errors.Is(err, ports.ErrDuplicateEntry) {
				result.Failed = append(result.Failed, ImportFailure{Index: i, Err: err})
				continue
			}
			return result, err
		}
		result.Imported = append(result.Imported, pair)
	}
	s.logger.Info(ctx, "Import finished", map[string]interface{}{
		"username": s.user(username),
		"imported": len(result.Imported),
		"failed":   len(result.Failed),
	})
	return result, nil
}

// PairView is a pair together with its derived figures.
type PairView struct {
	Pair     *domain.HedgedPair
	Totals   hedge.PairTotals
	Slippage hedge.SlippageBreakdown
}

// DescribePairs derives totals and slippage for every pair.
func DescribePairs(pairs []*domain.HedgedPair) []PairView {
	views := make([]PairView, 0, len(pairs))
	for _, p := range pairs {
		if p == nil {
			continue
		}
		views = append(views, PairView{Pair: p, Totals: hedge.Totals(p), Slippage: hedge.Slippage(p)})
	}
	return views
}

// --- Summary ---

// Summary is the dashboard projection of a workspace.
type Summary struct {
	Workspace *domain.Workspace
	hedge.PortfolioSummary
}

// Summary aggregates all pairs of the workspace with its own equity and target.
func (s *HedgeService) Summary(ctx context.Context, username string) (*Summary, error) {
	ws, err := s.Login(ctx, username)
	if err != nil {
		return nil, err
	}
	pairs, err := s.ListPairs(ctx, ws.Username)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Workspace:        ws,
		PortfolioSummary: s.aggregator.WithWorkspace(ws).Summarize(pairs),
	}, nil
}

// --- Risk ---

// RiskRequest describes an intended hedge. Nil balances and price are
// resolved by the service; zero leverage means the configured default.
type RiskRequest struct {
	Side      domain.Side
	BalanceA  *float64
	BalanceB  *float64
	Price     *float64
	Quantity  float64
	LeverageA float64
	LeverageB float64
}

// RiskReport is the hedge assessment plus the inputs actually used.
type RiskReport struct {
	domain.HedgeRiskAssessment
	Price     *float64
	BalanceA  float64
	BalanceB  float64
	Quantity  float64
	LeverageA float64
	LeverageB float64
}

// AssessHedge runs the liquidation check of an intended hedge on both
// exchanges. When no price is given the cached reference price is used,
// refreshed from the price source if the cache is empty. A balance that is
// not given is fetched for leg A from the exchange when configured and
// otherwise falls back to the default balance. A price that cannot be
// resolved yields the "cannot compute" assessment, not an error.
func (s *HedgeService) AssessHedge(ctx context.Context, req RiskRequest) (*RiskReport, error) {
	if req.Side != domain.Long && req.Side != domain.Short {
		return nil, fmt.Errorf("%w: side must be LONG or SHORT", ports.ErrInvalidInput)
	}

	price := req.Price
	if price == nil {
		price = s.cache.Latest()
	}
	if price == nil && s.prices != nil {
		if p, err := s.RefreshPrice(ctx); err == nil {
			price = &p
		} else {
			s.logger.Warn(ctx, "Reference price unavailable, risk cannot be computed", map[string]interface{}{"error": err.Error()})
		}
	}

	report := &RiskReport{
		Price:     price,
		BalanceA:  s.balanceOrDefault(ctx, req.BalanceA, true),
		BalanceB:  s.balanceOrDefault(ctx, req.BalanceB, false),
		Quantity:  req.Quantity,
		LeverageA: s.leverageOrDefault(req.LeverageA),
		LeverageB: s.leverageOrDefault(req.LeverageB),
	}

	var entry float64
	if price != nil {
		entry = *price
	}
	report.HedgeRiskAssessment = s.calculator.AssessHedge(hedge.HedgeRiskInput{
		Side:       req.Side,
		BalanceA:   report.BalanceA,
		BalanceB:   report.BalanceB,
		EntryPrice: entry,
		Quantity:   report.Quantity,
		LeverageA:  report.LeverageA,
		LeverageB:  report.LeverageB,
	})

	if report.NearLiquidation {
		s.logger.Warn(ctx, "Hedge is close to liquidation", map[string]interface{}{
			"side":    string(req.Side),
			"bufferA": report.BufferA,
			"bufferB": report.BufferB,
		})
	}
	return report, nil
}

// PairRisk is the liquidation check of the recorded legs of one pair.
type PairRisk struct {
	Pair     *domain.HedgedPair
	BalanceA float64
	BalanceB float64
	A        domain.RiskAssessment
	B        domain.RiskAssessment
	IsSafe   bool // Both legs safe
}

// AssessPair runs the liquidation check of each recorded leg of a pair at
// its open price, quantity and leverage. Balances that are not given are
// resolved as in AssessHedge.
func (s *HedgeService) AssessPair(ctx context.Context, username, id string, balanceA, balanceB *float64) (*PairRisk, error) {
	pair, err := s.GetPair(ctx, username, id)
	if err != nil {
		return nil, err
	}
	risk := &PairRisk{
		Pair:     pair,
		BalanceA: s.balanceOrDefault(ctx, balanceA, true),
		BalanceB: s.balanceOrDefault(ctx, balanceB, false),
	}
	risk.A = s.calculator.AssessTrade(risk.BalanceA, pair.LegA)
	risk.B = s.calculator.AssessTrade(risk.BalanceB, pair.LegB)
	risk.IsSafe = risk.A.IsSafe && risk.B.IsSafe
	return risk, nil
}

func (s *HedgeService) balanceOrDefault(ctx context.Context, balance *float64, fromExchange bool) float64 {
	if balance != nil {
		return *balance
	}
	if fromExchange && s.balances != nil {
		b, err := s.balances.GetAccountBalance(ctx, balanceAsset)
		if err == nil {
			return b
		}
		s.logger.Warn(ctx, "Falling back to default balance", map[string]interface{}{"asset": balanceAsset, "error": err.Error()})
	}
	return s.cfg.DefaultBalance
}

func (s *HedgeService) leverageOrDefault(leverage float64) float64 {
	if leverage == 0 {
		return s.cfg.DefaultLeverage
	}
	return leverage
}

// --- Prices ---

// RefreshPrice fetches the reference price from the price source and caches it.
func (s *HedgeService) RefreshPrice(ctx context.Context) (float64, error) {
	if s.prices == nil {
		return 0, fmt.Errorf("%w: no price source configured", ports.ErrPriceUnavailable)
	}
	price, err := s.prices.GetMarkPrice(ctx, s.cfg.PriceSymbol)
	if err != nil {
		return 0, fmt.Errorf("refresh price %s: %w", s.cfg.PriceSymbol, err)
	}
	s.cache.Set(price)
	s.logger.Debug(ctx, "Reference price refreshed", map[string]interface{}{"symbol": s.cfg.PriceSymbol, "price": price})
	return price, nil
}

// WatchPrices feeds a price stream into the cache until ctx is cancelled.
func (s *HedgeService) WatchPrices(ctx context.Context, stream ports.PriceStream) error {
	if stream == nil {
		return fmt.Errorf("%w: no price stream configured", ports.ErrConfigurationError)
	}
	s.logger.Info(ctx, "Watching reference price stream")
	return stream.Subscribe(ctx, s.cache.Set)
}

func (s *HedgeService) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
