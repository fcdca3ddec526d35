// Package order turns parsed trading requests into submission-ready order
// descriptors. Everything here is synchronous and side-effect free apart
// from client order id generation.
package order

import (
	"github.com/shopspring/decimal"

	"trademcp/internal/domain"
)

// Request is the closed set of order requests the Builder understands.
type Request interface {
	// Class returns the order class the request produces.
	Class() domain.OrderClass
	isRequest()
}

// SimpleRequest is a single market, limit, stop, stop_limit or
// trailing_stop order.
type SimpleRequest struct {
	Intent domain.OrderIntent
}

// BracketRequest opens a position with linked take-profit and stop-loss
// exits.
type BracketRequest struct {
	Symbol               string
	Side                 domain.Side
	Qty                  decimal.Decimal
	EntryType            domain.OrderType
	EntryLimitPrice      *decimal.Decimal
	TakeProfitLimitPrice decimal.Decimal
	StopLossStopPrice    decimal.Decimal
	StopLossLimitPrice   *decimal.Decimal
	TimeInForce          domain.TimeInForce
}

// OCORequest protects an existing position with a take-profit and a
// stop-loss. Side is the exit side: sell for a long, buy for a short.
type OCORequest struct {
	Symbol               string
	Side                 domain.Side
	Qty                  decimal.Decimal
	TakeProfitLimitPrice decimal.Decimal
	StopLossStopPrice    decimal.Decimal
	StopLossLimitPrice   *decimal.Decimal
	TimeInForce          domain.TimeInForce
}

// OptionRequest is a single-leg option order. Side may be empty, in which
// case it is derived from PositionIntent.
type OptionRequest struct {
	Symbol         string
	Qty            decimal.Decimal
	Side           domain.Side
	PositionIntent domain.PositionIntent
	Type           domain.OrderType
	LimitPrice     *decimal.Decimal
	TimeInForce    domain.TimeInForce
}

// LegSpec is one caller-supplied leg of a multi-leg option order.
type LegSpec struct {
	Symbol         string
	RatioQty       int
	Side           domain.Side
	PositionIntent domain.PositionIntent
}

// MultiLegRequest is a 2 to 4 leg option order. A nil Qty means one unit
// of the strategy.
type MultiLegRequest struct {
	Legs        []LegSpec
	Qty         *decimal.Decimal
	Type        domain.OrderType
	LimitPrice  *decimal.Decimal
	TimeInForce domain.TimeInForce
}

func (SimpleRequest) Class() domain.OrderClass   { return domain.OrderClassSimple }
func (BracketRequest) Class() domain.OrderClass  { return domain.OrderClassBracket }
func (OCORequest) Class() domain.OrderClass      { return domain.OrderClassOCO }
func (OptionRequest) Class() domain.OrderClass   { return domain.OrderClassSimple }
func (MultiLegRequest) Class() domain.OrderClass { return domain.OrderClassMultiLeg }

func (SimpleRequest) isRequest()   {}
func (BracketRequest) isRequest()  {}
func (OCORequest) isRequest()      {}
func (OptionRequest) isRequest()   {}
func (MultiLegRequest) isRequest() {}

// Symbol returns the instrument a request trades, for logging and risk
// checks. Multi-leg requests report their first leg.
func Symbol(req Request) string {
	switch r := req.(type) {
	case SimpleRequest:
		return r.Intent.Symbol
	case BracketRequest:
		return r.Symbol
	case OCORequest:
		return r.Symbol
	case OptionRequest:
		return r.Symbol
	case MultiLegRequest:
		if len(r.Legs) > 0 {
			return r.Legs[0].Symbol
		}
	}
	return ""
}
