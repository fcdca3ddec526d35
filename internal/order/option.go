package order

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trademcp/internal/domain"
)

const (
	minLegs = 2
	maxLegs = 4
)

// occPattern matches an OCC option symbol: root, YYMMDD expiry, C or P,
// and the strike times 1000 padded to 8 digits.
var occPattern = regexp.MustCompile(`^([A-Z0-9.]{1,6})(\d{6})([CP])(\d{8})$`)

// Contract is the decoded form of an OCC option symbol.
type Contract struct {
	Symbol     string
	Root       string
	Expiration time.Time
	Type       string // call or put
	Strike     decimal.Decimal
}

// ParseOCC decodes an OCC-format option symbol such as AAPL240119C00175000.
func ParseOCC(symbol string) (Contract, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	m := occPattern.FindStringSubmatch(s)
	if m == nil {
		return Contract{}, fmt.Errorf("%q is not an OCC option symbol", symbol)
	}
	exp, err := time.Parse("060102", m[2])
	if err != nil {
		return Contract{}, fmt.Errorf("%q has an invalid expiration: %w", symbol, err)
	}
	strike, err := strconv.ParseInt(m[4], 10, 64)
	if err != nil {
		return Contract{}, fmt.Errorf("%q has an invalid strike: %w", symbol, err)
	}
	typ := "call"
	if m[3] == "P" {
		typ = "put"
	}
	return Contract{
		Symbol:     s,
		Root:       m[1],
		Expiration: exp,
		Type:       typ,
		Strike:     decimal.New(strike, -3),
	}, nil
}

// optionSide resolves the side of an option leg from its intent, rejecting
// an explicit side that contradicts it.
func optionSide(side domain.Side, intent domain.PositionIntent) (domain.Side, string) {
	if !intent.Valid() {
		return "", fmt.Sprintf("unsupported position intent %q", intent)
	}
	if side == "" {
		return intent.Side(), ""
	}
	if side != intent.Side() {
		return "", fmt.Sprintf("side %s contradicts position intent %s", side, intent)
	}
	return side, ""
}

// optionPricing checks the order type and limit price shared by single and
// multi-leg option orders. Net limit prices for spreads may be negative
// (a credit), so only zero is rejected when allowCredit is set.
func (b *Builder) optionPricing(typ domain.OrderType, limit *decimal.Decimal, allowCredit bool) (*decimal.Decimal, string, string) {
	switch typ {
	case domain.OrderTypeMarket:
		if limit != nil {
			return nil, "limit_price", "is not permitted for market orders"
		}
		return nil, "", ""
	case domain.OrderTypeLimit:
		if limit == nil {
			return nil, "limit_price", "is required for limit orders"
		}
		rounded := b.validator.Policy.Round(*limit)
		if allowCredit && rounded.IsZero() {
			return nil, "limit_price", "must be a non-zero net price at the instrument precision"
		}
		if !allowCredit && !rounded.IsPositive() {
			return nil, "limit_price", "must be greater than 0"
		}
		return &rounded, "", ""
	}
	return nil, "type", fmt.Sprintf("must be market or limit for option orders, got %q", typ)
}

func (b *Builder) optionTIF(tif domain.TimeInForce) (domain.TimeInForce, error) {
	if tif == "" {
		tif = b.validator.DefaultTIF
	}
	if _, ok := domain.ParseTimeInForce(string(tif)); !ok {
		return "", fmt.Errorf("unsupported time in force %q", tif)
	}
	return tif, nil
}

func (b *Builder) buildOption(r OptionRequest) (*domain.OrderDescriptor, error) {
	c, err := ParseOCC(r.Symbol)
	if err != nil {
		return nil, invalid("symbol", err.Error())
	}
	if err := checkWholeQty("qty", r.Qty); err != nil {
		return nil, err
	}
	side, reason := optionSide(r.Side, r.PositionIntent)
	if reason != "" {
		field := "side"
		if !r.PositionIntent.Valid() {
			field = "position_intent"
		}
		return nil, invalid(field, reason)
	}
	limit, field, reason := b.optionPricing(r.Type, r.LimitPrice, false)
	if reason != "" {
		return nil, invalid(field, reason)
	}
	tif, err := b.optionTIF(r.TimeInForce)
	if err != nil {
		return nil, invalid("time_in_force", err.Error())
	}
	qty := r.Qty
	return &domain.OrderDescriptor{
		ClientOrderID:  b.newID(),
		Symbol:         c.Symbol,
		Side:           side,
		Type:           r.Type,
		TimeInForce:    tif,
		Qty:            &qty,
		LimitPrice:     limit,
		PositionIntent: r.PositionIntent,
		State:          domain.OrderStateNew,
	}, nil
}

func (b *Builder) buildMultiLeg(r MultiLegRequest) (*domain.MultiLegOrderDescriptor, error) {
	if n := len(r.Legs); n < minLegs || n > maxLegs {
		return nil, legErr(-1, "legs", fmt.Sprintf("must contain %d to %d legs, got %d", minLegs, maxLegs, n))
	}

	qty := decimal.NewFromInt(1)
	if r.Qty != nil {
		qty = *r.Qty
	}
	if err := checkWholeQty("qty", qty); err != nil {
		return nil, legErr(-1, "qty", err.(*domain.ValidationError).Reason)
	}
	limit, field, reason := b.optionPricing(r.Type, r.LimitPrice, true)
	if reason != "" {
		return nil, legErr(-1, field, reason)
	}
	tif, err := b.optionTIF(r.TimeInForce)
	if err != nil {
		return nil, legErr(-1, "time_in_force", err.Error())
	}

	var (
		root   string
		effect domain.PositionEffect
		ratios []int
		seen   = make(map[string]int, len(r.Legs))
		legs   = make([]domain.OptionLeg, 0, len(r.Legs))
	)
	for i, spec := range r.Legs {
		c, err := ParseOCC(spec.Symbol)
		if err != nil {
			return nil, legErr(i, "symbol", err.Error())
		}
		if prev, dup := seen[c.Symbol]; dup {
			return nil, legErr(i, "symbol", fmt.Sprintf("%s already used by leg %d", c.Symbol, prev))
		}
		seen[c.Symbol] = i
		if root == "" {
			root = c.Root
		} else if c.Root != root {
			return nil, legErr(i, "symbol", fmt.Sprintf("underlying %s differs from %s", c.Root, root))
		}
		if spec.RatioQty <= 0 {
			return nil, legErr(i, "ratio_qty", "must be a positive integer")
		}
		side, reason := optionSide(spec.Side, spec.PositionIntent)
		if reason != "" {
			return nil, legErr(i, "position_intent", reason)
		}
		e := spec.PositionIntent.Effect()
		if effect == "" {
			effect = e
		} else if e != effect {
			return nil, legErr(i, "position_intent",
				fmt.Sprintf("%s is %s but earlier legs are %s; opening and closing intents cannot be mixed", spec.PositionIntent, e, effect))
		}
		ratios = append(ratios, spec.RatioQty)
		legs = append(legs, domain.OptionLeg{
			Symbol:         c.Symbol,
			RatioQty:       spec.RatioQty,
			Side:           side,
			PositionIntent: spec.PositionIntent,
		})
	}
	if g := gcd(ratios); g != 1 {
		return nil, legErr(-1, "ratio_qty", fmt.Sprintf("leg ratios must be in lowest terms (common factor %d); scale qty instead", g))
	}

	return &domain.MultiLegOrderDescriptor{
		ClientOrderID:  b.newID(),
		Underlying:     root,
		Qty:            qty,
		Type:           r.Type,
		LimitPrice:     limit,
		TimeInForce:    tif,
		Legs:           legs,
		Classification: effect,
		State:          domain.OrderStateNew,
	}, nil
}

func gcd(values []int) int {
	g := 0
	for _, v := range values {
		a, b := g, v
		for b != 0 {
			a, b = b, a%b
		}
		g = a
	}
	return g
}

func legErr(leg int, field, reason string) *domain.LegValidationError {
	return &domain.LegValidationError{Leg: leg, Field: field, Reason: reason}
}
