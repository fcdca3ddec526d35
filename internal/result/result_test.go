package result

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"trademcp/internal/domain"
)

func bracketSubmission(outcomes ...domain.Outcome) domain.GroupSubmission {
	tags := []domain.LegTag{domain.LegEntry, domain.LegTakeProfit, domain.LegStopLoss}
	sub := domain.GroupSubmission{LinkedGroupID: "grp-1", Class: domain.OrderClassBracket}
	for i, o := range outcomes {
		leg := domain.LegOutcome{Tag: tags[i], ClientOrderID: fmt.Sprintf("c-%d", i), Outcome: o}
		switch o {
		case domain.OutcomeAccepted:
			leg.OrderID = fmt.Sprintf("ord-%d", i)
			leg.Status = "new"
		case domain.OutcomeRejected:
			leg.Reason = "stop price must be below market"
		}
		sub.Legs = append(sub.Legs, leg)
	}
	return sub
}

func TestFromGroupAllAccepted(t *testing.T) {
	env := FromGroup(bracketSubmission(domain.OutcomeAccepted, domain.OutcomeAccepted, domain.OutcomeAccepted))
	if !env.Success || env.Status != StatusAccepted || env.Error != nil {
		t.Errorf("FromGroup() = %+v, want accepted success", env)
	}
	if env.LinkedGroupID != "grp-1" || len(env.Legs) != 3 {
		t.Errorf("FromGroup() lost group detail: %+v", env)
	}
}

func TestFromGroupPartialFailure(t *testing.T) {
	sub := bracketSubmission(domain.OutcomeAccepted, domain.OutcomeAccepted, domain.OutcomeRejected)
	env := FromGroup(sub)
	if env.Success {
		t.Fatal("partial failure reported as success")
	}
	if env.Status != StatusPartialFailure {
		t.Fatalf("Status = %q, want partial_failure", env.Status)
	}
	if env.Error.Kind != domain.KindPartialFailure {
		t.Errorf("Error.Kind = %q, want partial_failure", env.Error.Kind)
	}
	if env.Legs[0].OrderID != "ord-0" || env.Legs[0].Outcome != domain.OutcomeAccepted {
		t.Errorf("entry leg = %+v, want accepted ord-0", env.Legs[0])
	}
	if env.Legs[2].Outcome != domain.OutcomeRejected || env.Legs[2].Reason == "" {
		t.Errorf("stop loss leg = %+v, want rejected with a reason", env.Legs[2])
	}
	for _, want := range []string{"ord-0 (entry)", "ord-1 (take_profit)", "cancel_order"} {
		if !strings.Contains(env.Error.Remediation, want) {
			t.Errorf("Remediation = %q, missing %q", env.Error.Remediation, want)
		}
	}

	var pf *domain.PartialFailure
	if !errors.As(ClassifyGroup(sub), &pf) {
		t.Error("ClassifyGroup() did not return *PartialFailure")
	}
}

func TestFromGroupNothingAccepted(t *testing.T) {
	env := FromGroup(bracketSubmission(domain.OutcomeRejected, domain.OutcomeNotSubmitted, domain.OutcomeNotSubmitted))
	if env.Success || env.Status != StatusRejected {
		t.Errorf("FromGroup() = %+v, want rejected", env)
	}
	if !strings.Contains(env.Error.Message, "entry: stop price") {
		t.Errorf("Error.Message = %q, want the entry rejection reason", env.Error.Message)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status Status
		field  string
	}{
		{"schema", &domain.SchemaError{Field: "side", Reason: "bad"}, StatusInvalid, "side"},
		{"validation", fmt.Errorf("place: %w", &domain.ValidationError{Field: "stop_price", Reason: "required"}), StatusInvalid, "stop_price"},
		{"composite", &domain.CompositeValidationError{Class: domain.OrderClassOCO, Field: "take_profit_limit_price"}, StatusInvalid, "take_profit_limit_price"},
		{"leg", &domain.LegValidationError{Leg: 1, Field: "position_intent"}, StatusInvalid, "position_intent"},
		{"rejected", &domain.SubmissionRejected{StatusCode: 403, Reason: "insufficient buying power"}, StatusRejected, ""},
		{"transport", &domain.TransportError{Op: "submit order", Err: errors.New("i/o timeout")}, StatusTransportError, ""},
		{"not found", fmt.Errorf("cancel: %w", domain.ErrOrderNotFound), StatusNotFound, ""},
		{"other", errors.New("boom"), StatusError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := FromError(tt.err)
			if env.Success {
				t.Error("FromError() reported success")
			}
			if env.Status != tt.status {
				t.Errorf("Status = %q, want %q", env.Status, tt.status)
			}
			if env.Error.Field != tt.field {
				t.Errorf("Error.Field = %q, want %q", env.Error.Field, tt.field)
			}
			if env.Error.Message != tt.err.Error() {
				t.Errorf("Error.Message = %q, want %q", env.Error.Message, tt.err.Error())
			}
		})
	}
}

func TestFromErrorLegIndex(t *testing.T) {
	env := FromError(&domain.LegValidationError{Leg: 0, Field: "symbol"})
	if env.Error.Leg == nil || *env.Error.Leg != 0 {
		t.Errorf("Error.Leg = %v, want 0", env.Error.Leg)
	}
	env = FromError(&domain.LegValidationError{Leg: -1, Field: "legs"})
	if env.Error.Leg != nil {
		t.Errorf("Error.Leg = %d, want nil for order-level errors", *env.Error.Leg)
	}
}
