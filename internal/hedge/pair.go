package hedge

import (
	"math"

	"hedgeTracker/internal/domain"
)

// SlippageBreakdown holds the price divergence between the two legs of a pair.
// Every value is a non-negative cost signal.
type SlippageBreakdown struct {
	OpenSlippage  float64
	CloseSlippage float64
	TotalSlippage float64
}

// PairTotals holds the combined figures of both legs of a pair.
type PairTotals struct {
	TotalFee      float64
	TotalPnL      float64
	TradingVolume float64 // Entry notional of both legs
}

// Slippage calculates the open and close price divergence between leg A and leg B.
// Missing prices count as zero. The result is symmetric in the two legs.
func Slippage(pair *domain.HedgedPair) SlippageBreakdown {
	if pair == nil {
		return SlippageBreakdown{}
	}
	openSlip := math.Abs(num(pair.LegB.OpenPrice) - num(pair.LegA.OpenPrice))
	closeSlip := math.Abs(num(pair.LegB.ClosePrice) - num(pair.LegA.ClosePrice))
	return SlippageBreakdown{
		OpenSlippage:  openSlip,
		CloseSlippage: closeSlip,
		TotalSlippage: openSlip + closeSlip,
	}
}

// Totals sums fees, PnL and entry notional volume over both legs of a pair.
// Missing numeric fields contribute zero.
func Totals(pair *domain.HedgedPair) PairTotals {
	if pair == nil {
		return PairTotals{}
	}
	return PairTotals{
		TotalFee:      num(pair.LegA.Fee) + num(pair.LegB.Fee),
		TotalPnL:      num(pair.LegA.PnL) + num(pair.LegB.PnL),
		TradingVolume: LegVolume(pair.LegA) + LegVolume(pair.LegB),
	}
}

// LegVolume returns the notional volume of one trade measured at entry
// (open price times quantity).
func LegVolume(t domain.Trade) float64 {
	return num(t.OpenPrice) * num(t.Quantity)
}

// num maps non-finite values to zero so aggregates never turn into NaN.
func num(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
