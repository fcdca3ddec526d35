package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"trademcp/internal/domain"
)

// exitPrices holds the rounded protective prices shared by bracket and OCO
// construction.
type exitPrices struct {
	takeProfit    decimal.Decimal
	stopLossStop  decimal.Decimal
	stopLossLimit *decimal.Decimal
}

func (b *Builder) buildBracket(r BracketRequest) (*domain.OrderGroup, error) {
	switch r.EntryType {
	case domain.OrderTypeMarket:
		if r.EntryLimitPrice != nil {
			return nil, invalid("entry_limit_price", "is not permitted when entry_type is market")
		}
	case domain.OrderTypeLimit:
		if r.EntryLimitPrice == nil {
			return nil, invalid("entry_limit_price", "is required when entry_type is limit")
		}
	default:
		return nil, invalid("entry_type", fmt.Sprintf("must be market or limit, got %q", r.EntryType))
	}
	tif, err := b.compositeTIF(r.TimeInForce)
	if err != nil {
		return nil, err
	}

	qty := r.Qty
	entry, err := b.validator.Validate(domain.OrderIntent{
		Symbol:      r.Symbol,
		Side:        r.Side,
		Type:        r.EntryType,
		TimeInForce: tif,
		Qty:         &qty,
		LimitPrice:  r.EntryLimitPrice,
	})
	if err != nil {
		if ve, ok := err.(*domain.ValidationError); ok && ve.Field == "limit_price" {
			ve.Field = "entry_limit_price"
		}
		return nil, err
	}

	px, err := b.exitPrices(domain.OrderClassBracket, r.TakeProfitLimitPrice, r.StopLossStopPrice, r.StopLossLimitPrice)
	if err != nil {
		return nil, err
	}

	// A long is protected by tp above sl; a short by the reverse. The
	// entry straddle needs a known entry price, so market entries skip it.
	long := r.Side == domain.SideBuy
	if entry.LimitPrice != nil {
		ep := *entry.LimitPrice
		if long && !px.takeProfit.GreaterThan(ep) || !long && !px.takeProfit.LessThan(ep) {
			return nil, composite(domain.OrderClassBracket, "take_profit_limit_price",
				fmt.Sprintf("%s must be %s the entry price %s for a %s", px.takeProfit, direction(long), ep, r.Side))
		}
		if long && !px.stopLossStop.LessThan(ep) || !long && !px.stopLossStop.GreaterThan(ep) {
			return nil, composite(domain.OrderClassBracket, "stop_loss_stop_price",
				fmt.Sprintf("%s must be %s the entry price %s for a %s", px.stopLossStop, direction(!long), ep, r.Side))
		}
	}
	if err := checkExitOrder(domain.OrderClassBracket, long, px); err != nil {
		return nil, err
	}

	group := &domain.OrderGroup{LinkedGroupID: b.newID(), Class: domain.OrderClassBracket}
	entryLeg := b.describe(entry)
	entryLeg.Tag = domain.LegEntry
	entryLeg.LinkedGroupID = group.LinkedGroupID
	exitSide := entry.Side.Opposite()
	group.Legs = []domain.OrderDescriptor{
		entryLeg,
		b.takeProfitLeg(group.LinkedGroupID, entry.Symbol, exitSide, entry.Qty, tif, px),
		b.stopLossLeg(group.LinkedGroupID, entry.Symbol, exitSide, entry.Qty, tif, px),
	}
	return group, nil
}

func (b *Builder) buildOCO(r OCORequest) (*domain.OrderGroup, error) {
	tif, err := b.compositeTIF(r.TimeInForce)
	if err != nil {
		return nil, err
	}
	qty := r.Qty
	// Validate symbol, side and quantity through the single-order rules,
	// using the take-profit as a stand-in limit leg.
	tp := r.TakeProfitLimitPrice
	base, err := b.validator.Validate(domain.OrderIntent{
		Symbol:      r.Symbol,
		Side:        r.Side,
		Type:        domain.OrderTypeLimit,
		TimeInForce: tif,
		Qty:         &qty,
		LimitPrice:  &tp,
	})
	if err != nil {
		if ve, ok := err.(*domain.ValidationError); ok && ve.Field == "limit_price" {
			return nil, composite(domain.OrderClassOCO, "take_profit_limit_price", ve.Reason)
		}
		return nil, err
	}

	px, err := b.exitPrices(domain.OrderClassOCO, r.TakeProfitLimitPrice, r.StopLossStopPrice, r.StopLossLimitPrice)
	if err != nil {
		return nil, err
	}
	// Selling exits a long position.
	long := base.Side == domain.SideSell
	if err := checkExitOrder(domain.OrderClassOCO, long, px); err != nil {
		return nil, err
	}

	group := &domain.OrderGroup{LinkedGroupID: b.newID(), Class: domain.OrderClassOCO}
	group.Legs = []domain.OrderDescriptor{
		b.takeProfitLeg(group.LinkedGroupID, base.Symbol, base.Side, base.Qty, tif, px),
		b.stopLossLeg(group.LinkedGroupID, base.Symbol, base.Side, base.Qty, tif, px),
	}
	return group, nil
}

// compositeTIF applies the default time-in-force and restricts linked
// groups to day and gtc.
func (b *Builder) compositeTIF(tif domain.TimeInForce) (domain.TimeInForce, error) {
	if tif == "" {
		tif = b.validator.DefaultTIF
	}
	if tif != domain.TimeInForceDay && tif != domain.TimeInForceGTC {
		return "", invalid("time_in_force", fmt.Sprintf("must be day or gtc for linked orders, got %q", tif))
	}
	return tif, nil
}

func (b *Builder) exitPrices(class domain.OrderClass, tp, sl decimal.Decimal, sll *decimal.Decimal) (exitPrices, error) {
	check := func(field string, price decimal.Decimal) (decimal.Decimal, error) {
		if !price.IsPositive() {
			return decimal.Zero, composite(class, field, "must be greater than 0")
		}
		rounded := b.validator.Policy.Round(price)
		if !rounded.IsPositive() {
			return decimal.Zero, composite(class, field, "rounds to zero at the instrument price precision")
		}
		return rounded, nil
	}
	var px exitPrices
	var err error
	if px.takeProfit, err = check("take_profit_limit_price", tp); err != nil {
		return px, err
	}
	if px.stopLossStop, err = check("stop_loss_stop_price", sl); err != nil {
		return px, err
	}
	if sll != nil {
		limit, err := check("stop_loss_limit_price", *sll)
		if err != nil {
			return px, err
		}
		px.stopLossLimit = &limit
	}
	return px, nil
}

// checkExitOrder enforces take-profit above stop-loss for a long position
// and below it for a short.
func checkExitOrder(class domain.OrderClass, long bool, px exitPrices) error {
	if long && !px.takeProfit.GreaterThan(px.stopLossStop) {
		return composite(class, "take_profit_limit_price",
			fmt.Sprintf("%s must be above stop_loss_stop_price %s for a long position", px.takeProfit, px.stopLossStop))
	}
	if !long && !px.takeProfit.LessThan(px.stopLossStop) {
		return composite(class, "take_profit_limit_price",
			fmt.Sprintf("%s must be below stop_loss_stop_price %s for a short position", px.takeProfit, px.stopLossStop))
	}
	return nil
}

func (b *Builder) takeProfitLeg(groupID, symbol string, side domain.Side, qty *decimal.Decimal, tif domain.TimeInForce, px exitPrices) domain.OrderDescriptor {
	tp := px.takeProfit
	return domain.OrderDescriptor{
		ClientOrderID: b.newID(),
		LinkedGroupID: groupID,
		Tag:           domain.LegTakeProfit,
		Symbol:        symbol,
		Side:          side,
		Type:          domain.OrderTypeLimit,
		TimeInForce:   tif,
		Qty:           qty,
		LimitPrice:    &tp,
		State:         domain.OrderStateNew,
	}
}

func (b *Builder) stopLossLeg(groupID, symbol string, side domain.Side, qty *decimal.Decimal, tif domain.TimeInForce, px exitPrices) domain.OrderDescriptor {
	stop := px.stopLossStop
	d := domain.OrderDescriptor{
		ClientOrderID: b.newID(),
		LinkedGroupID: groupID,
		Tag:           domain.LegStopLoss,
		Symbol:        symbol,
		Side:          side,
		Type:          domain.OrderTypeStop,
		TimeInForce:   tif,
		Qty:           qty,
		StopPrice:     &stop,
		State:         domain.OrderStateNew,
	}
	if px.stopLossLimit != nil {
		limit := *px.stopLossLimit
		d.Type = domain.OrderTypeStopLimit
		d.LimitPrice = &limit
	}
	return d
}

func direction(above bool) string {
	if above {
		return "above"
	}
	return "below"
}

func composite(class domain.OrderClass, field, reason string) *domain.CompositeValidationError {
	return &domain.CompositeValidationError{Class: class, Field: field, Reason: reason}
}
