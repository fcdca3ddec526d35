package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind identifies a class of failure in the tool output schema.
type ErrorKind string

const (
	KindSchema              ErrorKind = "schema_error"
	KindValidation          ErrorKind = "validation_error"
	KindCompositeValidation ErrorKind = "composite_validation_error"
	KindLegValidation       ErrorKind = "leg_validation_error"
	KindSubmissionRejected  ErrorKind = "submission_rejected"
	KindPartialFailure      ErrorKind = "partial_failure"
	KindTransport           ErrorKind = "transport_error"
	KindNotFound            ErrorKind = "not_found"
	KindInternal            ErrorKind = "internal_error"
)

// ErrNotFound is returned when the brokerage has no record of the requested
// object.
var ErrNotFound = errors.New("not found")

// ErrOrderNotFound is returned when the brokerage has no order with the
// requested id.
var ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)

// KindOf returns the taxonomy kind of err, walking wrapped errors.
func KindOf(err error) ErrorKind {
	var k interface{ Kind() ErrorKind }
	switch {
	case err == nil:
		return ""
	case errors.As(err, &k):
		return k.Kind()
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindInternal
}

// IsValidation reports whether err was raised before any submission, i.e.
// whether it is a schema or business-rule failure.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindSchema, KindValidation, KindCompositeValidation, KindLegValidation:
		return true
	}
	return false
}

// SchemaError reports structurally malformed tool arguments.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return "invalid arguments: " + e.Reason
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

func (e *SchemaError) Kind() ErrorKind { return KindSchema }

// ValidationError reports a single-order business rule violation attributed
// to one field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Kind() ErrorKind { return KindValidation }

// CompositeValidationError reports an inconsistency across the legs of a
// bracket or OCO order.
type CompositeValidationError struct {
	Class  OrderClass
	Field  string
	Reason string
}

func (e *CompositeValidationError) Error() string {
	return fmt.Sprintf("%s order: %s: %s", e.Class, e.Field, e.Reason)
}

func (e *CompositeValidationError) Kind() ErrorKind { return KindCompositeValidation }

// LegValidationError reports a problem with a multi-leg option order. Leg is
// the zero-based index of the offending leg, or -1 for order-level fields.
type LegValidationError struct {
	Leg    int
	Field  string
	Reason string
}

func (e *LegValidationError) Error() string {
	if e.Leg < 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("legs[%d].%s: %s", e.Leg, e.Field, e.Reason)
}

func (e *LegValidationError) Kind() ErrorKind { return KindLegValidation }

// SubmissionRejected reports that the brokerage declined a well-formed
// request.
type SubmissionRejected struct {
	StatusCode int
	Code       int
	Reason     string
}

func (e *SubmissionRejected) Error() string {
	if e.StatusCode == 0 {
		return "order rejected: " + e.Reason
	}
	return fmt.Sprintf("order rejected (%d): %s", e.StatusCode, e.Reason)
}

func (e *SubmissionRejected) Kind() ErrorKind { return KindSubmissionRejected }

// PartialFailure reports a linked group of which some legs were accepted
// and some were not. Callers must compensate for the accepted legs.
type PartialFailure struct {
	Submission GroupSubmission
}

func (e *PartialFailure) Error() string {
	var ok, failed []string
	for _, l := range e.Submission.Legs {
		switch l.Outcome {
		case OutcomeAccepted:
			ok = append(ok, fmt.Sprintf("%s=%s", l.Tag, l.OrderID))
		default:
			failed = append(failed, fmt.Sprintf("%s (%s)", l.Tag, l.Outcome))
		}
	}
	return fmt.Sprintf("%s group %s partially submitted: accepted [%s], failed [%s]",
		e.Submission.Class, e.Submission.LinkedGroupID,
		strings.Join(ok, ", "), strings.Join(failed, ", "))
}

func (e *PartialFailure) Kind() ErrorKind { return KindPartialFailure }

// TransportError reports that the brokerage could not be reached or did not
// answer. The state of the order at the brokerage is unknown.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: broker unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Kind() ErrorKind { return KindTransport }
