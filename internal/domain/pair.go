package domain

import "time"

// DateLayout is the layout of HedgedPair.Date.
const DateLayout = "2006-01-02"

// HedgedPair groups two trades executed as one intended hedge.
// No cross-leg invariant is enforced; divergence between the legs is what
// slippage measures.
type HedgedPair struct {
	ID        string    // Unique identifier (assigned by the app layer)
	Date      time.Time // Trading day of the hedge
	Team      string    // Owner / trader label
	LegA      Trade     // Exchange A
	LegB      Trade     // Exchange B
	Note      string    // Optional free-form note
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Leg returns the trade stored in the given slot.
func (p *HedgedPair) Leg(leg Leg) Trade {
	if leg == LegB {
		return p.LegB
	}
	return p.LegA
}

// Month returns the YYYY-MM bucket of the pair date.
func (p *HedgedPair) Month() string {
	return p.Date.Format("2006-01")
}

// PairRecord is the structured form of a hedge pair as supplied by
// collaborators. Date uses DateLayout; an empty ID means a new pair.
type PairRecord struct {
	ID   string      `json:"id,omitempty" yaml:"id,omitempty"`
	Date string      `json:"date,omitempty" yaml:"date,omitempty"`
	Team string      `json:"team,omitempty" yaml:"team,omitempty"`
	Note string      `json:"note,omitempty" yaml:"note,omitempty"`
	LegA TradeRecord `json:"legA" yaml:"legA"`
	LegB TradeRecord `json:"legB" yaml:"legB"`
}

// Record returns the pair in its structured form, the inverse of normalization.
func (p *HedgedPair) Record() PairRecord {
	rec := PairRecord{
		ID:   p.ID,
		Team: p.Team,
		Note: p.Note,
		LegA: p.LegA.Record(),
		LegB: p.LegB.Record(),
	}
	if !p.Date.IsZero() {
		rec.Date = p.Date.Format(DateLayout)
	}
	return rec
}
