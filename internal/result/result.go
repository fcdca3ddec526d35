// Package result maps broker acknowledgments and errors into the stable
// output schema every tool returns.
package result

import (
	"errors"
	"fmt"
	"strings"

	"trademcp/internal/domain"
)

// Status summarizes what happened to a tool call.
type Status string

const (
	StatusOK             Status = "ok"
	StatusAccepted       Status = "accepted"
	StatusRejected       Status = "rejected"
	StatusPartialFailure Status = "partial_failure"
	StatusInvalid        Status = "invalid"
	StatusTransportError Status = "transport_error"
	StatusNotFound       Status = "not_found"
	StatusError          Status = "error"
)

// Envelope is the output of every tool.
type Envelope struct {
	Success       bool                `json:"success"`
	Status        Status              `json:"status"`
	OrderClass    domain.OrderClass   `json:"order_class,omitempty"`
	LinkedGroupID string              `json:"linked_group_id,omitempty"`
	Order         *domain.Order       `json:"order,omitempty"`
	Legs          []domain.LegOutcome `json:"legs,omitempty"`
	Data          any                 `json:"data,omitempty"`
	Error         *Error              `json:"error,omitempty"`
}

// Error is the machine-readable failure detail of an Envelope.
type Error struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	Field   string           `json:"field,omitempty"`
	// Leg is the zero-based multi-leg index, when the failure names one.
	Leg         *int   `json:"leg,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

// FromOrder reports a single accepted order or multi-leg order.
func FromOrder(class domain.OrderClass, o *domain.Order) Envelope {
	return Envelope{Success: true, Status: StatusAccepted, OrderClass: class, Order: o}
}

// FromGroup classifies the per-leg outcomes of a linked submission. All
// legs accepted is a success; none accepted is a rejection; anything in
// between is a partial failure that names the surviving legs.
func FromGroup(sub domain.GroupSubmission) Envelope {
	env := Envelope{
		OrderClass:    sub.Class,
		LinkedGroupID: sub.LinkedGroupID,
		Legs:          sub.Legs,
	}
	err := ClassifyGroup(sub)
	if err == nil {
		env.Success = true
		env.Status = StatusAccepted
		return env
	}
	e := FromError(err)
	env.Status = e.Status
	env.Error = e.Error
	return env
}

// ClassifyGroup returns nil when every leg was accepted, a
// *domain.SubmissionRejected when none was, and a *domain.PartialFailure
// otherwise.
func ClassifyGroup(sub domain.GroupSubmission) error {
	accepted := len(sub.Accepted())
	switch {
	case len(sub.Legs) > 0 && accepted == len(sub.Legs):
		return nil
	case accepted == 0:
		reasons := make([]string, 0, len(sub.Legs))
		for _, l := range sub.Legs {
			if l.Reason != "" {
				reasons = append(reasons, fmt.Sprintf("%s: %s", l.Tag, l.Reason))
			}
		}
		return &domain.SubmissionRejected{Reason: strings.Join(reasons, "; ")}
	}
	return &domain.PartialFailure{Submission: sub}
}

// FromData reports a successful read-only or administrative call.
func FromData(data any) Envelope {
	return Envelope{Success: true, Status: StatusOK, Data: data}
}

// FromError maps any error to a failed Envelope.
func FromError(err error) Envelope {
	kind := domain.KindOf(err)
	e := &Error{Kind: kind, Message: err.Error()}
	env := Envelope{Error: e}

	var (
		schemaErr    *domain.SchemaError
		validErr     *domain.ValidationError
		compositeErr *domain.CompositeValidationError
		legErr       *domain.LegValidationError
		partial      *domain.PartialFailure
	)
	switch {
	case errors.As(err, &schemaErr):
		env.Status, e.Field = StatusInvalid, schemaErr.Field
	case errors.As(err, &validErr):
		env.Status, e.Field = StatusInvalid, validErr.Field
	case errors.As(err, &compositeErr):
		env.Status, e.Field = StatusInvalid, compositeErr.Field
		env.OrderClass = compositeErr.Class
	case errors.As(err, &legErr):
		env.Status, e.Field = StatusInvalid, legErr.Field
		if legErr.Leg >= 0 {
			leg := legErr.Leg
			e.Leg = &leg
		}
	case errors.As(err, &partial):
		env.Status = StatusPartialFailure
		env.OrderClass = partial.Submission.Class
		env.LinkedGroupID = partial.Submission.LinkedGroupID
		env.Legs = partial.Submission.Legs
		e.Remediation = remediation(partial.Submission)
	case kind == domain.KindSubmissionRejected:
		env.Status = StatusRejected
	case kind == domain.KindTransport:
		env.Status = StatusTransportError
		e.Remediation = "The brokerage did not answer; the order may or may not exist. Check open orders before retrying."
	case kind == domain.KindNotFound:
		env.Status = StatusNotFound
	default:
		env.Status = StatusError
	}
	return env
}

// remediation tells the caller which surviving orders to cancel.
func remediation(sub domain.GroupSubmission) string {
	var ids []string
	for _, l := range sub.Accepted() {
		ids = append(ids, fmt.Sprintf("%s (%s)", l.OrderID, l.Tag))
	}
	return fmt.Sprintf("The %s group was only partly accepted. Cancel the surviving orders %s with cancel_order, or place the missing legs yourself.",
		sub.Class, strings.Join(ids, ", "))
}
