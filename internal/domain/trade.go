package domain

import "time"

// Trade represents one leg of a hedge executed on one exchange.
type Trade struct {
	ExternalID string    // Opaque exchange reference (optional)
	OpenPrice  float64   // Entry price
	ClosePrice float64   // Exit price
	OpenTime   time.Time // Zero value if unknown
	CloseTime  time.Time // Zero value if unknown
	Quantity   float64   // Position size
	Coin       string    // Instrument symbol (e.g., "ETH")
	Fee        float64   // Always a non-negative magnitude
	PnL        float64   // Signed realized profit/loss
	Leverage   float64   // Leverage used for the position
}

// Notional returns the entry notional of the trade (open price times quantity).
func (t Trade) Notional() float64 {
	return t.OpenPrice * t.Quantity
}

// TimeLayout is the canonical layout of trade timestamps in records.
const TimeLayout = "2006-01-02T15:04:05"

// TradeRecord is the structured trade handed over by collaborators (form entry,
// import files, HTTP bodies, external parsers). Pointer fields distinguish an
// absent value from an explicit zero.
type TradeRecord struct {
	ExternalID string   `json:"externalId,omitempty" yaml:"externalId,omitempty" validate:"omitempty,max=64"`
	OpenPrice  *float64 `json:"openPrice,omitempty" yaml:"openPrice,omitempty" validate:"required,gte=0"`
	ClosePrice *float64 `json:"closePrice,omitempty" yaml:"closePrice,omitempty" validate:"omitempty,gte=0"`
	OpenTime   string   `json:"openTime,omitempty" yaml:"openTime,omitempty"`
	CloseTime  string   `json:"closeTime,omitempty" yaml:"closeTime,omitempty"`
	Quantity   *float64 `json:"quantity,omitempty" yaml:"quantity,omitempty" validate:"required,gt=0"`
	Coin       string   `json:"coin,omitempty" yaml:"coin,omitempty" validate:"omitempty,alphanum,max=20"`
	Fee        *float64 `json:"fee,omitempty" yaml:"fee,omitempty"`
	PnL        *float64 `json:"pnl,omitempty" yaml:"pnl,omitempty"`
	Leverage   *float64 `json:"leverage,omitempty" yaml:"leverage,omitempty" validate:"required,gt=0"`
}

// Record converts a Trade back into its record form, e.g. for editing.
func (t Trade) Record() TradeRecord {
	rec := TradeRecord{
		ExternalID: t.ExternalID,
		OpenPrice:  floatPtr(t.OpenPrice),
		ClosePrice: floatPtr(t.ClosePrice),
		Quantity:   floatPtr(t.Quantity),
		Coin:       t.Coin,
		Fee:        floatPtr(t.Fee),
		PnL:        floatPtr(t.PnL),
		Leverage:   floatPtr(t.Leverage),
	}
	if !t.OpenTime.IsZero() {
		rec.OpenTime = t.OpenTime.Format(TimeLayout)
	}
	if !t.CloseTime.IsZero() {
		rec.CloseTime = t.CloseTime.Format(TimeLayout)
	}
	return rec
}

func floatPtr(v float64) *float64 {
	return &v
}
