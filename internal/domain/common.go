package domain

// Side represents the direction of an intended position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// ParseSide converts user input to a Side. Unknown values return false.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "long", "LONG", "Long", "buy", "BUY":
		return Long, true
	case "short", "SHORT", "Short", "sell", "SELL":
		return Short, true
	default:
		return "", false
	}
}

// Leg identifies the slot of a trade inside a hedge pair.
type Leg string

const (
	LegA Leg = "A" // Exchange A
	LegB Leg = "B" // Exchange B
)
