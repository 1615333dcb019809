package domain

import "time"

// Workspace holds the per-user settings that accompany a list of hedge pairs.
type Workspace struct {
	Username            string
	MonthlyVolumeTarget float64 // Per-exchange notional volume target for the month
	StartingEquity      float64 // Equity before any tracked hedge
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
