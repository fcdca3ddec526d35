package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"trademcp/internal/domain"
	"trademcp/internal/order"
)

var (
	// optionMultiplier is the share count one standard equity option controls.
	optionMultiplier = decimal.NewFromInt(100)
	hundred          = decimal.NewFromInt(100)
)

// RiskManager enforces pre-trade size limits. It runs after construction and
// before anything is journaled or submitted.
type RiskManager struct {
	maxQty      decimal.Decimal
	maxNotional decimal.Decimal
}

// NewRiskManager creates a RiskManager with the specified thresholds. A zero
// threshold disables that check.
//
//   - maxQty: largest share or contract quantity of one order.
//   - maxNotional: largest estimated dollar value of one order. Orders
//     without a known price (plain market orders by quantity) are only
//     checked against maxQty.
func NewRiskManager(maxQty, maxNotional decimal.Decimal) *RiskManager {
	return &RiskManager{maxQty: maxQty, maxNotional: maxNotional}
}

// CheckPlan evaluates whether the constructed plan complies with the
// configured limits. A nil RiskManager allows everything.
func (rm *RiskManager) CheckPlan(p *order.Plan) error {
	if rm == nil {
		return nil
	}
	switch {
	case p.Order != nil:
		return rm.checkDescriptor(*p.Order)
	case p.Group != nil:
		// Every leg carries the same quantity; the first leg is the entry
		// of a bracket or the take-profit of an OCO.
		if len(p.Group.Legs) == 0 {
			return nil
		}
		return rm.checkDescriptor(p.Group.Legs[0])
	case p.MultiLeg != nil:
		m := p.MultiLeg
		if err := rm.checkQty("qty", m.Qty); err != nil {
			return err
		}
		if m.LimitPrice != nil {
			return rm.checkNotional("limit_price", m.Qty.Mul(m.LimitPrice.Abs()).Mul(optionMultiplier))
		}
	}
	return nil
}

func (rm *RiskManager) checkDescriptor(d domain.OrderDescriptor) error {
	if d.Notional != nil {
		return rm.checkNotional("notional", *d.Notional)
	}
	if d.Qty == nil {
		return nil
	}
	if err := rm.checkQty("qty", *d.Qty); err != nil {
		return err
	}

	price, field := d.LimitPrice, "limit_price"
	if price == nil {
		price, field = d.StopPrice, "stop_price"
	}
	if price == nil {
		return nil
	}
	value := d.Qty.Mul(*price)
	if d.PositionIntent != "" {
		value = value.Mul(optionMultiplier)
	}
	return rm.checkNotional(priceArgument(d.Tag, field), value)
}

// priceArgument names the tool argument a descriptor price came from.
func priceArgument(tag domain.LegTag, field string) string {
	switch tag {
	case domain.LegEntry:
		return "entry_" + field
	case domain.LegTakeProfit:
		return "take_profit_" + field
	case domain.LegStopLoss:
		return "stop_loss_" + field
	}
	return field
}

func (rm *RiskManager) checkQty(field string, qty decimal.Decimal) error {
	if rm.maxQty.IsPositive() && qty.GreaterThan(rm.maxQty) {
		return &domain.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("quantity %s exceeds the configured maximum of %s", qty, rm.maxQty),
		}
	}
	return nil
}

func (rm *RiskManager) checkNotional(field string, value decimal.Decimal) error {
	if rm.maxNotional.IsPositive() && value.GreaterThan(rm.maxNotional) {
		return &domain.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("order value %s exceeds the configured maximum of %s", value.StringFixed(2), rm.maxNotional),
		}
	}
	return nil
}
