package report

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
)

// FormatCurrency renders v as US dollars with two decimals and thousands
// separators, e.g. "$1,234.56" or "-$10.95".
func FormatCurrency(v float64) string {
	d := toDecimal(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "$" + group(d.StringFixed(2))
}

// FormatNumber renders v with exactly precision decimals and thousands
// separators. A negative precision is treated as zero.
func FormatNumber(v float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	return group(toDecimal(v).StringFixed(int32(precision)))
}

// FormatCompact renders a volume in compact notation: "1.25M", "540.0K" or
// "950" below one thousand.
func FormatCompact(v float64) string {
	d := toDecimal(v)
	switch {
	case d.GreaterThanOrEqual(million):
		return d.Div(million).StringFixed(2) + "M"
	case d.GreaterThanOrEqual(thousand):
		return d.Div(thousand).StringFixed(1) + "K"
	default:
		return d.StringFixed(0)
	}
}

// FormatPercent renders a percentage with one decimal, e.g. "42.5%".
func FormatPercent(v float64) string {
	return toDecimal(v).StringFixed(1) + "%"
}

// toDecimal maps non-finite values to zero; decimal panics on them.
func toDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// group inserts comma separators into the integer part of a fixed-point string.
func group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + frac
}
