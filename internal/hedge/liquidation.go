package hedge

import (
	"math"

	"hedgeTracker/internal/domain"
)

// RiskConfig holds the risk-policy parameters of the liquidation calculator.
type RiskConfig struct {
	// Maintenance margin held by the exchange, in percent (0.5 means 0.5%).
	MaintenancePercent float64
	// Policy-level collateral cushion on top of maintenance margin, in percent.
	SafetyPercent float64
	// Minimum distance (price points) between entry and liquidation before a
	// hedge is flagged as near liquidation. Zero disables the check.
	MinSafeDistance float64
}

// DefaultRiskConfig returns the default risk policy.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaintenancePercent: 0.5,
		SafetyPercent:      30,
		MinSafeDistance:    120,
	}
}

// RiskInput holds the parameters of one leveraged position on one exchange.
type RiskInput struct {
	Balance    float64 // Account equity
	EntryPrice float64
	Quantity   float64
	Leverage   float64
}

// HedgeRiskInput describes one intended position opened on both exchanges.
type HedgeRiskInput struct {
	Side       domain.Side
	BalanceA   float64
	BalanceB   float64
	EntryPrice float64
	Quantity   float64
	LeverageA  float64
	LeverageB  float64
}

// LiquidationCalculator estimates liquidation prices with the maintenance
// margin ratio model and decides whether collateral leaves a safe margin.
// It holds no mutable state and is safe for concurrent use.
type LiquidationCalculator struct {
	config RiskConfig
}

// NewLiquidationCalculator creates a new calculator with the given policy.
func NewLiquidationCalculator(config RiskConfig) *LiquidationCalculator {
	return &LiquidationCalculator{config: config}
}

// Config returns the calculator policy.
func (c *LiquidationCalculator) Config() RiskConfig {
	return c.config
}

// Assess computes the risk projection for one position.
//
// If balance, entry price, quantity or leverage is zero, negative or not
// finite the "cannot compute" assessment is returned: nil liquidation prices
// and buffer, IsSafe and CanOpen false. This is not an error.
//
//	MMR   = maintenancePercent / 100
//	long  = entry * (1 - 1/leverage + MMR), floored at 0
//	short = entry * (1 + 1/leverage - MMR)
//
// The safety buffer only gates CanOpen / IsSafe; it never moves the
// liquidation price.
func (c *LiquidationCalculator) Assess(in RiskInput) domain.RiskAssessment {
	if !positive(in.Balance) || !positive(in.EntryPrice) || !positive(in.Quantity) || !positive(in.Leverage) {
		return domain.RiskAssessment{}
	}

	mmr := c.config.MaintenancePercent / 100
	entry := in.EntryPrice

	longLiq := entry * (1 - 1/in.Leverage + mmr)
	shortLiq := entry * (1 + 1/in.Leverage - mmr)

	maintenance := in.Balance * c.config.MaintenancePercent / 100
	safety := in.Balance * c.config.SafetyPercent / 100
	effective := in.Balance - maintenance - safety
	margin := entry * in.Quantity / in.Leverage

	bufferLong := math.Abs(entry - longLiq)
	bufferShort := math.Abs(shortLiq - entry)

	hasCollateral := effective > margin
	hasBuffer := bufferLong > 0 || bufferShort > 0

	flooredLong := math.Max(longLiq, 0)
	buffer := bufferLong

	return domain.RiskAssessment{
		Computable:            true,
		LongLiquidationPrice:  &flooredLong,
		ShortLiquidationPrice: &shortLiq,
		Buffer:                &buffer,
		BufferLong:            bufferLong,
		BufferShort:           bufferShort,
		LongDistancePct:       bufferLong / entry * 100,
		ShortDistancePct:      bufferShort / entry * 100,
		MaintenanceAmount:     maintenance,
		SafetyBufferAmount:    safety,
		EffectiveCollateral:   effective,
		MarginRequired:        margin,
		HasCollateral:         hasCollateral,
		HasBuffer:             hasBuffer,
		IsSafe:                hasCollateral && hasBuffer,
		CanOpen:               effective >= margin,
	}
}

// AssessWithPrice assesses a position against a reference price that may not
// be available yet. A nil price yields the "cannot compute" assessment.
func (c *LiquidationCalculator) AssessWithPrice(balance float64, price *float64, quantity, leverage float64) domain.RiskAssessment {
	if price == nil {
		return domain.RiskAssessment{}
	}
	return c.Assess(RiskInput{
		Balance:    balance,
		EntryPrice: *price,
		Quantity:   quantity,
		Leverage:   leverage,
	})
}

// AssessTrade assesses a recorded trade using its open price, quantity and leverage.
func (c *LiquidationCalculator) AssessTrade(balance float64, trade domain.Trade) domain.RiskAssessment {
	return c.Assess(RiskInput{
		Balance:    balance,
		EntryPrice: trade.OpenPrice,
		Quantity:   trade.Quantity,
		Leverage:   trade.Leverage,
	})
}

// AssessHedge assesses the same intended position on both exchanges with the
// same formula. The hedge is safe only when both legs are individually safe.
func (c *LiquidationCalculator) AssessHedge(in HedgeRiskInput) domain.HedgeRiskAssessment {
	side := in.Side
	if side != domain.Short {
		side = domain.Long
	}

	a := c.Assess(RiskInput{Balance: in.BalanceA, EntryPrice: in.EntryPrice, Quantity: in.Quantity, Leverage: in.LeverageA})
	b := c.Assess(RiskInput{Balance: in.BalanceB, EntryPrice: in.EntryPrice, Quantity: in.Quantity, Leverage: in.LeverageB})

	result := domain.HedgeRiskAssessment{
		Side:              side,
		A:                 a,
		B:                 b,
		LiquidationPriceA: a.LiquidationPrice(side),
		LiquidationPriceB: b.LiquidationPrice(side),
		BufferA:           a.SideBuffer(side),
		BufferB:           b.SideBuffer(side),
		IsSafe:            a.IsSafe && b.IsSafe,
		CanOpenA:          a.CanOpen,
		CanOpenB:          b.CanOpen,
		CanOpen:           a.CanOpen && b.CanOpen,
	}
	result.NearLiquidation = c.nearLiquidation(a, side) || c.nearLiquidation(b, side)
	return result
}

func (c *LiquidationCalculator) nearLiquidation(r domain.RiskAssessment, side domain.Side) bool {
	if !r.Computable || c.config.MinSafeDistance <= 0 {
		return false
	}
	return r.SideBuffer(side) < c.config.MinSafeDistance
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
