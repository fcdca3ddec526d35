package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"trademcp/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Validator checks the cross-field rules of a single order that structural
// typing cannot express. It is a pure function of its input.
type Validator struct {
	Policy     PricePolicy
	DefaultTIF domain.TimeInForce
}

// priceField pairs a tool argument name with its value in an intent.
type priceField struct {
	name  string
	value *decimal.Decimal
}

// Validate returns in with defaults applied and prices rounded, or a
// *domain.ValidationError naming the first offending field.
func (v Validator) Validate(in domain.OrderIntent) (domain.ValidatedOrder, error) {
	out := in
	out.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	if out.Symbol == "" {
		return domain.ValidatedOrder{}, invalid("symbol", "is required")
	}
	if !in.Side.Valid() {
		return domain.ValidatedOrder{}, invalid("side", fmt.Sprintf("must be buy or sell, got %q", in.Side))
	}
	if err := checkQuantity(in.Qty, in.Notional); err != nil {
		return domain.ValidatedOrder{}, err
	}

	fields := map[string]priceField{
		"limit_price":   {"limit_price", in.LimitPrice},
		"stop_price":    {"stop_price", in.StopPrice},
		"trail_price":   {"trail_price", in.TrailPrice},
		"trail_percent": {"trail_percent", in.TrailPercent},
	}
	var required []string
	switch in.Type {
	case domain.OrderTypeMarket:
	case domain.OrderTypeLimit:
		required = []string{"limit_price"}
	case domain.OrderTypeStop:
		required = []string{"stop_price"}
	case domain.OrderTypeStopLimit:
		required = []string{"stop_price", "limit_price"}
	case domain.OrderTypeTrailingStop:
		if err := checkTrailing(in.TrailPrice, in.TrailPercent); err != nil {
			return domain.ValidatedOrder{}, err
		}
		if in.TrailPrice != nil {
			required = []string{"trail_price"}
		} else {
			required = []string{"trail_percent"}
		}
	default:
		return domain.ValidatedOrder{}, invalid("type", fmt.Sprintf("unsupported order type %q", in.Type))
	}

	for _, name := range required {
		f := fields[name]
		if f.value == nil {
			return domain.ValidatedOrder{}, invalid(name, fmt.Sprintf("is required for %s orders", in.Type))
		}
		if !f.value.IsPositive() {
			return domain.ValidatedOrder{}, invalid(name, "must be greater than 0")
		}
		delete(fields, name)
	}
	// Anything left over does not belong to this order type.
	for _, name := range []string{"limit_price", "stop_price", "trail_price", "trail_percent"} {
		if f, ok := fields[name]; ok && f.value != nil {
			return domain.ValidatedOrder{}, invalid(name, fmt.Sprintf("is not permitted for %s orders", in.Type))
		}
	}

	out.LimitPrice = v.Policy.roundPtr(in.LimitPrice)
	out.StopPrice = v.Policy.roundPtr(in.StopPrice)
	out.TrailPrice = v.Policy.roundPtr(in.TrailPrice)
	for _, f := range []priceField{{"limit_price", out.LimitPrice}, {"stop_price", out.StopPrice}, {"trail_price", out.TrailPrice}} {
		if f.value != nil && !f.value.IsPositive() {
			return domain.ValidatedOrder{}, invalid(f.name, "rounds to zero at the instrument price precision")
		}
	}

	if out.TimeInForce == "" {
		out.TimeInForce = v.DefaultTIF
	}
	if _, ok := domain.ParseTimeInForce(string(out.TimeInForce)); !ok {
		return domain.ValidatedOrder{}, invalid("time_in_force", fmt.Sprintf("unsupported time in force %q", out.TimeInForce))
	}
	return domain.ValidatedOrder{OrderIntent: out}, nil
}

// checkQuantity enforces "a positive whole share quantity or a positive
// notional, never both".
func checkQuantity(qty, notional *decimal.Decimal) error {
	switch {
	case qty != nil && notional != nil:
		return invalid("qty", "qty and notional are mutually exclusive")
	case qty == nil && notional == nil:
		return invalid("qty", "either qty or notional is required")
	case qty != nil:
		return checkWholeQty("qty", *qty)
	default:
		if !notional.IsPositive() {
			return invalid("notional", "must be greater than 0")
		}
	}
	return nil
}

func checkWholeQty(field string, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return invalid(field, "must be greater than 0")
	}
	if !qty.Equal(qty.Truncate(0)) {
		return invalid(field, "must be a whole number")
	}
	return nil
}

func checkTrailing(price, percent *decimal.Decimal) error {
	switch {
	case price != nil && percent != nil:
		return invalid("trail_percent", "trail_price and trail_percent are mutually exclusive")
	case price == nil && percent == nil:
		return invalid("trail_price", "one of trail_price or trail_percent is required for trailing_stop orders")
	case percent != nil && (!percent.IsPositive() || !percent.LessThan(hundred)):
		return invalid("trail_percent", "must be between 0 and 100")
	}
	return nil
}

func invalid(field, reason string) *domain.ValidationError {
	return &domain.ValidationError{Field: field, Reason: reason}
}
