package domain

// RiskAssessment is the liquidation-risk projection for one side (one
// exchange account). It is recomputed on every input change and never stored.
//
// When the inputs cannot be computed (zero, missing or non-finite balance,
// entry price, quantity or leverage) Computable is false, the three nullable
// fields are nil and IsSafe is false.
type RiskAssessment struct {
	Computable bool

	LongLiquidationPrice  *float64
	ShortLiquidationPrice *float64
	Buffer                *float64 // Distance from entry to the long liquidation price

	BufferLong       float64
	BufferShort      float64
	LongDistancePct  float64
	ShortDistancePct float64

	MaintenanceAmount   float64
	SafetyBufferAmount  float64
	EffectiveCollateral float64
	MarginRequired      float64

	HasCollateral bool // Effective collateral strictly covers the required margin
	HasBuffer     bool // At least one liquidation price differs from entry
	IsSafe        bool // HasCollateral && HasBuffer
	CanOpen       bool // Effective collateral >= required margin
}

// LiquidationPrice returns the liquidation price for the given side, or nil.
func (r RiskAssessment) LiquidationPrice(side Side) *float64 {
	if side == Short {
		return r.ShortLiquidationPrice
	}
	return r.LongLiquidationPrice
}

// SideBuffer returns the distance from entry to liquidation for the given side.
func (r RiskAssessment) SideBuffer(side Side) float64 {
	if side == Short {
		return r.BufferShort
	}
	return r.BufferLong
}

// HedgeRiskAssessment combines the assessments of one intended position
// opened on two exchanges at the same time.
type HedgeRiskAssessment struct {
	Side Side
	A    RiskAssessment
	B    RiskAssessment

	LiquidationPriceA *float64
	LiquidationPriceB *float64
	BufferA           float64
	BufferB           float64

	IsSafe          bool // Both legs individually safe
	CanOpenA        bool
	CanOpenB        bool
	CanOpen         bool // Both legs can be opened
	NearLiquidation bool // Side buffer below the minimum safe distance on either exchange
}
