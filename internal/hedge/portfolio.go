package hedge

import (
	"math"
	"sort"

	"hedgeTracker/internal/domain"
)

// PortfolioConfig holds the policy defaults used when folding pairs into
// portfolio figures.
type PortfolioConfig struct {
	StartingEquity      float64 // Equity before any tracked hedge
	MonthlyVolumeTarget float64 // Per-exchange notional volume target
}

// DefaultPortfolioConfig returns the defaults applied to new workspaces.
func DefaultPortfolioConfig() PortfolioConfig {
	return PortfolioConfig{
		StartingEquity:      100000,
		MonthlyVolumeTarget: 500000,
	}
}

// PortfolioTotals holds portfolio-level sums. Leg A and leg B volumes are
// tracked separately so each exchange can be compared against the target.
type PortfolioTotals struct {
	PairCount    int
	TotalPnL     float64
	TotalFees    float64
	TotalVolumeA float64
	TotalVolumeB float64
}

// TotalVolume returns the combined volume of both exchanges.
func (t PortfolioTotals) TotalVolume() float64 {
	return t.TotalVolumeA + t.TotalVolumeB
}

// Add combines two partial totals.
func (t PortfolioTotals) Add(o PortfolioTotals) PortfolioTotals {
	return PortfolioTotals{
		PairCount:    t.PairCount + o.PairCount,
		TotalPnL:     t.TotalPnL + o.TotalPnL,
		TotalFees:    t.TotalFees + o.TotalFees,
		TotalVolumeA: t.TotalVolumeA + o.TotalVolumeA,
		TotalVolumeB: t.TotalVolumeB + o.TotalVolumeB,
	}
}

// MonthlyVolume holds the figures of one calendar month (by pair date).
type MonthlyVolume struct {
	Month     string // YYYY-MM
	PairCount int
	PnL       float64
	Fees      float64
	VolumeA   float64
	VolumeB   float64
	ProgressA float64 // Percent of the monthly target reached on exchange A
	ProgressB float64 // Percent of the monthly target reached on exchange B
}

// TeamTotals holds the figures of one team / owner label.
type TeamTotals struct {
	Team      string
	PairCount int
	PnL       float64
	Fees      float64
	Volume    float64
}

// PortfolioSummary is the complete dashboard projection of a list of pairs.
type PortfolioSummary struct {
	PortfolioTotals
	StartingEquity      float64
	Equity              float64
	MonthlyVolumeTarget float64
	ProgressA           float64
	ProgressB           float64

	Monthly []MonthlyVolume // Sorted by month ascending
	Teams   []TeamTotals    // Sorted by team name

	BestPairID   string
	BestPairPnL  float64
	WorstPairID  string
	WorstPairPnL float64
}

// PortfolioAggregator folds hedge pairs into portfolio figures.
// It holds no mutable state and is safe for concurrent use.
type PortfolioAggregator struct {
	config PortfolioConfig
}

// NewPortfolioAggregator creates a new aggregator with the given policy.
func NewPortfolioAggregator(config PortfolioConfig) *PortfolioAggregator {
	return &PortfolioAggregator{config: config}
}

// WithWorkspace returns an aggregator using the workspace's starting equity
// and monthly target. A starting equity of zero is kept; a negative equity or
// a non-positive target falls back to the aggregator's own value.
func (a *PortfolioAggregator) WithWorkspace(ws *domain.Workspace) *PortfolioAggregator {
	if ws == nil {
		return a
	}
	config := a.config
	if ws.StartingEquity >= 0 && !math.IsNaN(ws.StartingEquity) {
		config.StartingEquity = ws.StartingEquity
	}
	if ws.MonthlyVolumeTarget > 0 {
		config.MonthlyVolumeTarget = ws.MonthlyVolumeTarget
	}
	return NewPortfolioAggregator(config)
}

// Config returns the aggregator policy.
func (a *PortfolioAggregator) Config() PortfolioConfig {
	return a.config
}

// Aggregate sums PnL, fees and per-leg notional volume across all pairs.
// Nil pairs are skipped.
func (a *PortfolioAggregator) Aggregate(pairs []*domain.HedgedPair) PortfolioTotals {
	var totals PortfolioTotals
	for _, pair := range pairs {
		if pair == nil {
			continue
		}
		totals = totals.Add(pairTotals(pair))
	}
	return totals
}

// Equity returns the starting equity plus the realized PnL of the totals.
func (a *PortfolioAggregator) Equity(totals PortfolioTotals) float64 {
	return a.config.StartingEquity + totals.TotalPnL
}

// Summarize aggregates the pairs and derives equity, volume progress and the
// monthly and per-team breakdowns.
func (a *PortfolioAggregator) Summarize(pairs []*domain.HedgedPair) PortfolioSummary {
	totals := a.Aggregate(pairs)
	target := a.config.MonthlyVolumeTarget

	summary := PortfolioSummary{
		PortfolioTotals:     totals,
		StartingEquity:      a.config.StartingEquity,
		Equity:              a.Equity(totals),
		MonthlyVolumeTarget: target,
		ProgressA:           VolumeProgress(totals.TotalVolumeA, target),
		ProgressB:           VolumeProgress(totals.TotalVolumeB, target),
		Monthly:             make([]MonthlyVolume, 0),
		Teams:               make([]TeamTotals, 0),
	}

	months := make(map[string]*MonthlyVolume)
	teams := make(map[string]*TeamTotals)
	first := true

	for _, pair := range pairs {
		if pair == nil {
			continue
		}
		pt := Totals(pair)

		if first || pt.TotalPnL > summary.BestPairPnL {
			summary.BestPairID, summary.BestPairPnL = pair.ID, pt.TotalPnL
		}
		if first || pt.TotalPnL < summary.WorstPairPnL {
			summary.WorstPairID, summary.WorstPairPnL = pair.ID, pt.TotalPnL
		}
		first = false

		if !pair.Date.IsZero() {
			key := pair.Month()
			m, ok := months[key]
			if !ok {
				m = &MonthlyVolume{Month: key}
				months[key] = m
			}
			m.PairCount++
			m.PnL += pt.TotalPnL
			m.Fees += pt.TotalFee
			m.VolumeA += LegVolume(pair.LegA)
			m.VolumeB += LegVolume(pair.LegB)
		}

		t, ok := teams[pair.Team]
		if !ok {
			t = &TeamTotals{Team: pair.Team}
			teams[pair.Team] = t
		}
		t.PairCount++
		t.PnL += pt.TotalPnL
		t.Fees += pt.TotalFee
		t.Volume += pt.TradingVolume
	}

	for _, m := range months {
		m.ProgressA = VolumeProgress(m.VolumeA, target)
		m.ProgressB = VolumeProgress(m.VolumeB, target)
		summary.Monthly = append(summary.Monthly, *m)
	}
	sort.Slice(summary.Monthly, func(i, j int) bool {
		return summary.Monthly[i].Month < summary.Monthly[j].Month
	})

	for _, t := range teams {
		summary.Teams = append(summary.Teams, *t)
	}
	sort.Slice(summary.Teams, func(i, j int) bool {
		return summary.Teams[i].Team < summary.Teams[j].Team
	})

	return summary
}

// VolumeProgress returns volume as a percentage of target, clamped to [0, 100].
// A non-positive target yields 0.
func VolumeProgress(volume, target float64) float64 {
	if !(target > 0) || math.IsInf(target, 0) {
		return 0
	}
	ratio := num(volume) / target
	if ratio <= 0 {
		return 0
	}
	return math.Min(ratio, 1.0) * 100
}

func pairTotals(pair *domain.HedgedPair) PortfolioTotals {
	return PortfolioTotals{
		PairCount:    1,
		TotalPnL:     num(pair.LegA.PnL) + num(pair.LegB.PnL),
		TotalFees:    num(pair.LegA.Fee) + num(pair.LegB.Fee),
		TotalVolumeA: LegVolume(pair.LegA),
		TotalVolumeB: LegVolume(pair.LegB),
	}
}
