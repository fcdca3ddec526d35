package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPositionIntentSideAndEffect(t *testing.T) {
	tests := []struct {
		intent PositionIntent
		side   Side
		effect PositionEffect
	}{
		{BuyToOpen, SideBuy, EffectOpening},
		{BuyToClose, SideBuy, EffectClosing},
		{SellToOpen, SideSell, EffectOpening},
		{SellToClose, SideSell, EffectClosing},
	}
	for _, tt := range tests {
		if got := tt.intent.Side(); got != tt.side {
			t.Errorf("%s.Side() = %q, want %q", tt.intent, got, tt.side)
		}
		if got := tt.intent.Effect(); got != tt.effect {
			t.Errorf("%s.Effect() = %q, want %q", tt.intent, got, tt.effect)
		}
		if !tt.intent.Valid() {
			t.Errorf("%s.Valid() = false, want true", tt.intent)
		}
	}
	if PositionIntent("buy_to_hold").Valid() {
		t.Error("unknown intent reported valid")
	}
}

func TestSideOpposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell || SideSell.Opposite() != SideBuy {
		t.Error("Opposite() does not swap buy and sell")
	}
	if Side("hold").Valid() {
		t.Error("unknown side reported valid")
	}
}

func TestParseTimeInForce(t *testing.T) {
	tests := []struct {
		in   string
		want TimeInForce
		ok   bool
	}{
		{"day", TimeInForceDay, true},
		{" GTC ", TimeInForceGTC, true},
		{"fok", TimeInForceFOK, true},
		{"gtx", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseTimeInForce(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseTimeInForce(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"schema", &SchemaError{Field: "qty", Reason: "not a number"}, KindSchema},
		{"validation", &ValidationError{Field: "limit_price", Reason: "required"}, KindValidation},
		{"wrapped composite", fmt.Errorf("building: %w", &CompositeValidationError{Class: OrderClassBracket}), KindCompositeValidation},
		{"leg", &LegValidationError{Leg: 1, Field: "symbol"}, KindLegValidation},
		{"rejected", &SubmissionRejected{StatusCode: 403, Reason: "insufficient buying power"}, KindSubmissionRejected},
		{"partial", &PartialFailure{}, KindPartialFailure},
		{"transport", &TransportError{Op: "submit", Err: errors.New("timeout")}, KindTransport},
		{"not found", fmt.Errorf("cancel: %w", ErrOrderNotFound), KindNotFound},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(&LegValidationError{Leg: -1, Field: "legs"}) {
		t.Error("LegValidationError should be a validation failure")
	}
	if IsValidation(&TransportError{Op: "submit", Err: errors.New("eof")}) {
		t.Error("TransportError should not be a validation failure")
	}
}

func TestLegValidationErrorMessage(t *testing.T) {
	leg := &LegValidationError{Leg: 2, Field: "position_intent", Reason: "mixes opening and closing"}
	if got, want := leg.Error(), "legs[2].position_intent: mixes opening and closing"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	order := &LegValidationError{Leg: -1, Field: "legs", Reason: "need 2 to 4 legs"}
	if got, want := order.Error(), "legs: need 2 to 4 legs"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPartialFailureMessageNamesLegs(t *testing.T) {
	pf := &PartialFailure{Submission: GroupSubmission{
		LinkedGroupID: "grp-1",
		Class:         OrderClassBracket,
		Legs: []LegOutcome{
			{Tag: LegEntry, Outcome: OutcomeAccepted, OrderID: "ord-1"},
			{Tag: LegTakeProfit, Outcome: OutcomeAccepted, OrderID: "ord-2"},
			{Tag: LegStopLoss, Outcome: OutcomeRejected, Reason: "stop price too close"},
		},
	}}
	msg := pf.Error()
	for _, want := range []string{"grp-1", "entry=ord-1", "take_profit=ord-2", "stop_loss (rejected)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("PartialFailure.Error() = %q, missing %q", msg, want)
		}
	}
	if n := len(pf.Submission.Accepted()); n != 2 {
		t.Errorf("Accepted() returned %d legs, want 2", n)
	}
}

func TestOrderGroupLeg(t *testing.T) {
	g := OrderGroup{Legs: []OrderDescriptor{
		{Tag: LegTakeProfit, ClientOrderID: "a"},
		{Tag: LegStopLoss, ClientOrderID: "b"},
	}}
	if l, ok := g.Leg(LegStopLoss); !ok || l.ClientOrderID != "b" {
		t.Errorf("Leg(stop_loss) = (%+v, %v), want client id b", l, ok)
	}
	if _, ok := g.Leg(LegEntry); ok {
		t.Error("Leg(entry) found in an OCO-shaped group")
	}
}
