package order

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// PricePolicy rounds prices to the instrument tick. Prices below $1.00 use
// SubDollarDecimals when it is set; every other price uses Decimals.
type PricePolicy struct {
	Decimals          int32
	SubDollarDecimals int32
}

// DefaultPricePolicy returns the equity policy: cents, and 4 decimals below
// one dollar.
func DefaultPricePolicy() PricePolicy {
	return PricePolicy{Decimals: 2, SubDollarDecimals: 4}
}

// Round rounds price half away from zero.
func (p PricePolicy) Round(price decimal.Decimal) decimal.Decimal {
	places := p.Decimals
	if p.SubDollarDecimals > 0 && price.Abs().LessThan(one) {
		places = p.SubDollarDecimals
	}
	return price.Round(places)
}

// roundPtr rounds an optional price, keeping nil as nil.
func (p PricePolicy) roundPtr(price *decimal.Decimal) *decimal.Decimal {
	if price == nil {
		return nil
	}
	r := p.Round(*price)
	return &r
}
