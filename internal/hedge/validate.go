package hedge

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/ports"
)

// timeLayouts are the timestamp layouts accepted in trade records, most specific first.
var timeLayouts = []string{
	time.RFC3339,
	domain.TimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so errors match what collaborators sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// FieldError describes a single rejected field of a trade record.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError is returned when a trade record is not well-formed.
// It always unwraps to ports.ErrInvalidInput.
type ValidationError struct {
	Leg    domain.Leg // Empty when a single trade was validated
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	if e.Leg != "" {
		return fmt.Sprintf("invalid trade on leg %s: %s", e.Leg, strings.Join(parts, "; "))
	}
	return "invalid trade: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ports.ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ports.ErrInvalidInput
}

// HasField reports whether the given field was rejected.
func (e *ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, reason string) {
	if e.HasField(field) {
		return
	}
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// Normalize turns a trade record into a Trade.
//
// The fee is stored as its absolute value. A record missing quantity, open
// price or leverage, carrying a non-finite number, or closing before it opened
// is reported as a *ValidationError. The returned Trade is populated either way
// (missing and non-finite numbers become zero) so aggregation can still show
// partial totals for an incomplete leg.
func Normalize(rec domain.TradeRecord) (domain.Trade, error) {
	verr := &ValidationError{}

	trade := domain.Trade{
		ExternalID: strings.TrimSpace(rec.ExternalID),
		Coin:       strings.ToUpper(strings.TrimSpace(rec.Coin)),
		OpenPrice:  finiteOrZero(rec.OpenPrice, "openPrice", verr),
		ClosePrice: finiteOrZero(rec.ClosePrice, "closePrice", verr),
		Quantity:   finiteOrZero(rec.Quantity, "quantity", verr),
		Fee:        math.Abs(finiteOrZero(rec.Fee, "fee", verr)),
		PnL:        finiteOrZero(rec.PnL, "pnl", verr),
		Leverage:   finiteOrZero(rec.Leverage, "leverage", verr),
	}

	rec.ExternalID, rec.Coin = trade.ExternalID, trade.Coin
	if err := validate.Struct(rec); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return trade, fmt.Errorf("%w: %v", ports.ErrInvalidInput, err)
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), reasonFor(fe))
		}
	}

	trade.OpenTime = parseTime(rec.OpenTime, "openTime", verr)
	trade.CloseTime = parseTime(rec.CloseTime, "closeTime", verr)
	if !trade.OpenTime.IsZero() && !trade.CloseTime.IsZero() && trade.CloseTime.Before(trade.OpenTime) {
		verr.add("closeTime", "must not be before openTime")
	}

	if len(verr.Fields) > 0 {
		return trade, verr
	}
	return trade, nil
}

// NormalizePair validates both legs of a pair record and builds the pair.
// Errors from the two legs are joined; each one is a *ValidationError tagged
// with its leg. The pair is returned populated even when an error is reported.
func NormalizePair(rec domain.PairRecord) (domain.HedgedPair, error) {
	pair := domain.HedgedPair{
		ID:   strings.TrimSpace(rec.ID),
		Team: strings.TrimSpace(rec.Team),
		Note: strings.TrimSpace(rec.Note),
	}

	var errs []error
	if rec.Date != "" {
		d, err := time.Parse(domain.DateLayout, strings.TrimSpace(rec.Date))
		if err != nil {
			errs = append(errs, &ValidationError{Fields: []FieldError{{Field: "date", Reason: "must use YYYY-MM-DD"}}})
		} else {
			pair.Date = d
		}
	}

	legA, err := Normalize(rec.LegA)
	if err != nil {
		errs = append(errs, tagLeg(err, domain.LegA))
	}
	legB, err := Normalize(rec.LegB)
	if err != nil {
		errs = append(errs, tagLeg(err, domain.LegB))
	}
	pair.LegA = legA
	pair.LegB = legB

	return pair, errors.Join(errs...)
}

func tagLeg(err error, leg domain.Leg) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		verr.Leg = leg
		return verr
	}
	return fmt.Errorf("leg %s: %w", leg, err)
}

func finiteOrZero(v *float64, field string, verr *ValidationError) float64 {
	if v == nil {
		return 0
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		verr.add(field, "must be a finite number")
		return 0
	}
	return *v
}

func parseTime(s, field string, verr *ValidationError) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	verr.add(field, "is not a valid timestamp")
	return time.Time{}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must not be negative"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "alphanum":
		return "must be alphanumeric"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
