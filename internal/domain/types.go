// Package domain defines the core types shared across trademcp: the closed
// set of order enumerations, the order construction data model, broker
// acknowledgments and the read-only report types.
package domain

import "strings"

// Side is the direction of an order or option leg.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the side that closes a position opened by s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the execution style of a single order.
type OrderType string

const (
	OrderTypeMarket       OrderType = "market"
	OrderTypeLimit        OrderType = "limit"
	OrderTypeStop         OrderType = "stop"
	OrderTypeStopLimit    OrderType = "stop_limit"
	OrderTypeTrailingStop OrderType = "trailing_stop"
)

// OrderTypes lists every order type in declaration order.
var OrderTypes = []OrderType{
	OrderTypeMarket,
	OrderTypeLimit,
	OrderTypeStop,
	OrderTypeStopLimit,
	OrderTypeTrailingStop,
}

// TimeInForce controls how long an order stays working.
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceOPG TimeInForce = "opg"
	TimeInForceCLS TimeInForce = "cls"
	TimeInForceIOC TimeInForce = "ioc"
	TimeInForceFOK TimeInForce = "fok"
)

// TimeInForces lists every supported time-in-force.
var TimeInForces = []TimeInForce{
	TimeInForceDay,
	TimeInForceGTC,
	TimeInForceOPG,
	TimeInForceCLS,
	TimeInForceIOC,
	TimeInForceFOK,
}

// ParseTimeInForce returns the TimeInForce named by s (case-insensitive).
func ParseTimeInForce(s string) (TimeInForce, bool) {
	tif := TimeInForce(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range TimeInForces {
		if tif == known {
			return tif, true
		}
	}
	return "", false
}

// OrderClass distinguishes simple orders from linked composites.
type OrderClass string

const (
	OrderClassSimple   OrderClass = "simple"
	OrderClassBracket  OrderClass = "bracket"
	OrderClassOCO      OrderClass = "oco"
	OrderClassMultiLeg OrderClass = "mleg"
)

// LegTag names the role of a descriptor inside a composite order.
type LegTag string

const (
	LegEntry      LegTag = "entry"
	LegTakeProfit LegTag = "take_profit"
	LegStopLoss   LegTag = "stop_loss"
)

// PositionIntent declares whether an option leg opens or closes a position.
type PositionIntent string

const (
	BuyToOpen   PositionIntent = "buy_to_open"
	BuyToClose  PositionIntent = "buy_to_close"
	SellToOpen  PositionIntent = "sell_to_open"
	SellToClose PositionIntent = "sell_to_close"
)

// PositionIntents lists every position intent.
var PositionIntents = []PositionIntent{BuyToOpen, BuyToClose, SellToOpen, SellToClose}

// Valid reports whether p is a known intent.
func (p PositionIntent) Valid() bool {
	switch p {
	case BuyToOpen, BuyToClose, SellToOpen, SellToClose:
		return true
	}
	return false
}

// Side returns the order side implied by the intent.
func (p PositionIntent) Side() Side {
	if p == BuyToOpen || p == BuyToClose {
		return SideBuy
	}
	return SideSell
}

// Effect returns whether the intent opens or closes a position.
func (p PositionIntent) Effect() PositionEffect {
	if p == BuyToOpen || p == SellToOpen {
		return EffectOpening
	}
	return EffectClosing
}

// PositionEffect classifies a multi-leg option order as a whole.
type PositionEffect string

const (
	EffectOpening PositionEffect = "opening"
	EffectClosing PositionEffect = "closing"
)

// OrderState is the lifecycle state of a descriptor inside trademcp. Only
// the pre-submission state is owned here; everything after submission
// belongs to the brokerage.
type OrderState string

const OrderStateNew OrderState = "new"

// Outcome is the per-leg result of a submission.
type Outcome string

const (
	OutcomeAccepted     Outcome = "accepted"
	OutcomeRejected     Outcome = "rejected"
	OutcomeNotSubmitted Outcome = "not_submitted"
)
