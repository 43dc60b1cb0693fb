package trends

import (
	"errors"
	"fmt"
)

// Common trend processing errors
var (
	// ErrSourceUnavailable is returned when the outbreak dataset cannot be fetched:
	// a transport failure, a non-2xx response or an open circuit breaker.
	ErrSourceUnavailable = errors.New("trend data source unavailable")

	// ErrMalformedPayload is returned when the source body is not a JSON object
	// or its records are not objects.
	ErrMalformedPayload = errors.New("malformed trend payload")

	// ErrNumericCoercion is returned when an outbreak count is not a number or a
	// total is not finite. The whole aggregation is abandoned.
	ErrNumericCoercion = errors.New("outbreak count is not numeric")

	// ErrMissingField is returned when a record has a missing or blank grouping key.
	ErrMissingField = errors.New("record is missing a required field")
)

// TrendError wraps errors with additional context about the failed trend operation.
type TrendError struct {
	// Op is the operation that failed (e.g., "FetchRecords", "Aggregate").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *TrendError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("trends: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("trends: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *TrendError) Unwrap() error {
	return e.Err
}

// WrapTrendError wraps an error as a TrendError if it isn't already one.
func WrapTrendError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var trendErr *TrendError
	if errors.As(err, &trendErr) {
		return err
	}

	return &TrendError{Op: op, Err: err, Details: details}
}

// CoercionError reports the record and raw value that could not be read as a number.
type CoercionError struct {
	Index int
	Field string
	Value any
}

// Error implements the error interface.
func (e *CoercionError) Error() string {
	return fmt.Sprintf("record %d: field %q: cannot parse %#v as a number", e.Index, e.Field, e.Value)
}

// Unwrap lets errors.Is match ErrNumericCoercion.
func (e *CoercionError) Unwrap() error {
	return ErrNumericCoercion
}

// FieldError reports a record that lacks a required field.
type FieldError struct {
	Index int
	Field string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("record %d: missing field %q", e.Index, e.Field)
}

// Unwrap lets errors.Is match ErrMissingField.
func (e *FieldError) Unwrap() error {
	return ErrMissingField
}
