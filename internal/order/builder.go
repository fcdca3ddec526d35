package order

import (
	"fmt"

	"github.com/google/uuid"

	"trademcp/internal/domain"
)

// Plan is the construction result for one request. Exactly one of Order,
// Group and MultiLeg is set, according to Class.
type Plan struct {
	Class    domain.OrderClass
	Order    *domain.OrderDescriptor
	Group    *domain.OrderGroup
	MultiLeg *domain.MultiLegOrderDescriptor
}

// Builder is the single entry point that turns a Request into a Plan. It
// holds only immutable configuration and is safe for concurrent use.
type Builder struct {
	validator Validator
	newID     func() string
}

// NewBuilder creates a Builder with the given price policy and the
// time-in-force applied when a request leaves it unset.
func NewBuilder(policy PricePolicy, defaultTIF domain.TimeInForce) *Builder {
	return &Builder{
		validator: Validator{Policy: policy, DefaultTIF: defaultTIF},
		newID:     uuid.NewString,
	}
}

// Validator returns the single-order validator used by the builder.
func (b *Builder) Validator() Validator {
	return b.validator
}

// Build validates req and constructs its descriptors. Composite requests
// either produce every leg or fail; no partial set is ever returned.
func (b *Builder) Build(req Request) (*Plan, error) {
	switch r := req.(type) {
	case SimpleRequest:
		d, err := b.buildSimple(r)
		if err != nil {
			return nil, err
		}
		return &Plan{Class: domain.OrderClassSimple, Order: d}, nil
	case BracketRequest:
		g, err := b.buildBracket(r)
		if err != nil {
			return nil, err
		}
		return &Plan{Class: domain.OrderClassBracket, Group: g}, nil
	case OCORequest:
		g, err := b.buildOCO(r)
		if err != nil {
			return nil, err
		}
		return &Plan{Class: domain.OrderClassOCO, Group: g}, nil
	case OptionRequest:
		d, err := b.buildOption(r)
		if err != nil {
			return nil, err
		}
		return &Plan{Class: domain.OrderClassSimple, Order: d}, nil
	case MultiLegRequest:
		m, err := b.buildMultiLeg(r)
		if err != nil {
			return nil, err
		}
		return &Plan{Class: domain.OrderClassMultiLeg, MultiLeg: m}, nil
	default:
		return nil, fmt.Errorf("unsupported order request %T", req)
	}
}

func (b *Builder) buildSimple(r SimpleRequest) (*domain.OrderDescriptor, error) {
	v, err := b.validator.Validate(r.Intent)
	if err != nil {
		return nil, err
	}
	d := b.describe(v)
	return &d, nil
}

// describe stamps a validated order as a new descriptor with a fresh client
// order id.
func (b *Builder) describe(v domain.ValidatedOrder) domain.OrderDescriptor {
	return domain.OrderDescriptor{
		ClientOrderID: b.newID(),
		Symbol:        v.Symbol,
		Side:          v.Side,
		Type:          v.Type,
		TimeInForce:   v.TimeInForce,
		Qty:           v.Qty,
		Notional:      v.Notional,
		LimitPrice:    v.LimitPrice,
		StopPrice:     v.StopPrice,
		TrailPrice:    v.TrailPrice,
		TrailPercent:  v.TrailPercent,
		ExtendedHours: v.ExtendedHours,
		State:         domain.OrderStateNew,
	}
}
