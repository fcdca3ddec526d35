package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Construction model
// ---------------------------------------------------------------------------

// OrderIntent is a caller's single-order trading request after structural
// parsing. Optional numeric fields are nil when absent.
type OrderIntent struct {
	Symbol        string
	Side          Side
	Type          OrderType
	TimeInForce   TimeInForce // empty means "use the configured default"
	Qty           *decimal.Decimal
	Notional      *decimal.Decimal
	LimitPrice    *decimal.Decimal
	StopPrice     *decimal.Decimal
	TrailPrice    *decimal.Decimal
	TrailPercent  *decimal.Decimal
	ExtendedHours bool
}

// ValidatedOrder is an OrderIntent whose type-specific fields have been
// confirmed and whose defaults and price rounding have been applied.
type ValidatedOrder struct {
	OrderIntent
}

// OrderDescriptor is the canonical, submission-ready form of one order or of
// one leg of a linked group. Price fields not used by Type are nil.
type OrderDescriptor struct {
	ClientOrderID string           `json:"client_order_id"`
	LinkedGroupID string           `json:"linked_group_id,omitempty"`
	Tag           LegTag           `json:"tag,omitempty"`
	Symbol        string           `json:"symbol"`
	Side          Side             `json:"side"`
	Type          OrderType        `json:"type"`
	TimeInForce   TimeInForce      `json:"time_in_force"`
	Qty           *decimal.Decimal `json:"qty,omitempty"`
	Notional      *decimal.Decimal `json:"notional,omitempty"`
	LimitPrice    *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
	TrailPrice    *decimal.Decimal `json:"trail_price,omitempty"`
	TrailPercent  *decimal.Decimal `json:"trail_percent,omitempty"`
	ExtendedHours bool             `json:"extended_hours,omitempty"`
	// PositionIntent is set only for single-leg option orders.
	PositionIntent PositionIntent `json:"position_intent,omitempty"`
	State          OrderState     `json:"state"`
}

// OrderGroup is a fixed set of linked descriptors produced by a composite
// strategy. A bracket group holds entry, take_profit and stop_loss in that
// order; an OCO group holds take_profit and stop_loss.
type OrderGroup struct {
	LinkedGroupID string            `json:"linked_group_id"`
	Class         OrderClass        `json:"order_class"`
	Legs          []OrderDescriptor `json:"legs"`
}

// Leg returns the descriptor tagged tag, if present.
func (g *OrderGroup) Leg(tag LegTag) (OrderDescriptor, bool) {
	for _, l := range g.Legs {
		if l.Tag == tag {
			return l, true
		}
	}
	return OrderDescriptor{}, false
}

// OptionLeg is one contract of a multi-leg option order.
type OptionLeg struct {
	Symbol         string         `json:"symbol"`
	RatioQty       int            `json:"ratio_qty"`
	Side           Side           `json:"side"`
	PositionIntent PositionIntent `json:"position_intent"`
}

// MultiLegOrderDescriptor is a single order made of 2 to 4 option legs that
// execute as one unit. Legs keep the order the caller supplied.
type MultiLegOrderDescriptor struct {
	ClientOrderID  string           `json:"client_order_id"`
	Underlying     string           `json:"underlying"`
	Qty            decimal.Decimal  `json:"qty"`
	Type           OrderType        `json:"type"`
	LimitPrice     *decimal.Decimal `json:"limit_price,omitempty"`
	TimeInForce    TimeInForce      `json:"time_in_force"`
	Legs           []OptionLeg      `json:"legs"`
	Classification PositionEffect   `json:"classification"`
	State          OrderState       `json:"state"`
}

// ---------------------------------------------------------------------------
// Broker acknowledgments
// ---------------------------------------------------------------------------

// Order is a brokerage-side view of an order: the acknowledgment returned on
// submission and the record returned by order queries.
type Order struct {
	ID             string           `json:"id"`
	ClientOrderID  string           `json:"client_order_id"`
	Symbol         string           `json:"symbol"`
	AssetClass     string           `json:"asset_class,omitempty"`
	Class          OrderClass       `json:"order_class,omitempty"`
	Side           Side             `json:"side,omitempty"`
	Type           OrderType        `json:"type,omitempty"`
	TimeInForce    TimeInForce      `json:"time_in_force,omitempty"`
	PositionIntent PositionIntent   `json:"position_intent,omitempty"`
	Status         string           `json:"status"`
	Qty            *decimal.Decimal `json:"qty,omitempty"`
	Notional       *decimal.Decimal `json:"notional,omitempty"`
	FilledQty      decimal.Decimal  `json:"filled_qty"`
	FilledAvgPrice *decimal.Decimal `json:"filled_avg_price,omitempty"`
	LimitPrice     *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice      *decimal.Decimal `json:"stop_price,omitempty"`
	TrailPrice     *decimal.Decimal `json:"trail_price,omitempty"`
	TrailPercent   *decimal.Decimal `json:"trail_percent,omitempty"`
	RatioQty       *decimal.Decimal `json:"ratio_qty,omitempty"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	Legs           []Order          `json:"legs,omitempty"`
}

// LegOutcome records what happened to one descriptor of a linked group at
// submission time.
type LegOutcome struct {
	Tag           LegTag  `json:"tag"`
	ClientOrderID string  `json:"client_order_id"`
	Outcome       Outcome `json:"outcome"`
	OrderID       string  `json:"order_id,omitempty"`
	Status        string  `json:"status,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// GroupSubmission is the broker's answer for a linked group: one outcome per
// descriptor, in descriptor order.
type GroupSubmission struct {
	LinkedGroupID string       `json:"linked_group_id"`
	Class         OrderClass   `json:"order_class"`
	Legs          []LegOutcome `json:"legs"`
}

// Accepted returns the outcomes that the brokerage accepted.
func (g *GroupSubmission) Accepted() []LegOutcome {
	var out []LegOutcome
	for _, l := range g.Legs {
		if l.Outcome == OutcomeAccepted {
			out = append(out, l)
		}
	}
	return out
}
