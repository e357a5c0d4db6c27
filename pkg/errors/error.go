// Package errors provides unified error handling for Tattler
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Code represents an error code for categorization
type Code string

// Error represents a unified error with code, message, and context
type Error struct {
	Code      Code                   `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Vector    string                 `json:"vector,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"` // Original error cause
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error type or code
func (e *Error) Is(target error) bool {
	if terr, ok := target.(*Error); ok {
		return e.Code == terr.Code
	}
	return false
}

// WithContext adds context information to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// WithVector annotates the error with the delivery vector it concerns
func (e *Error) WithVector(vector string) *Error {
	e.Vector = vector
	return e
}

// WithCause sets the underlying cause error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// New creates a new Error
func New(code Code, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a new Error with a formatted message
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an Error
func Wrap(cause error, code Code, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(cause error, code Code, format string, args ...interface{}) *Error {
	return Wrap(cause, code, fmt.Sprintf(format, args...))
}

// CodeOf returns the error code of err, or ErrInternal for foreign errors.
// The chain is searched, so an Error wrapped by fmt.Errorf still resolves.
func CodeOf(err error) Code {
	var terr *Error
	if stderrors.As(err, &terr) {
		return terr.Code
	}
	return ErrInternal
}

// ErrorAggregator collects errors from multiple operations into one.
// Template validation uses it to report every malformed (event, vector)
// pair in a single pass instead of stopping at the first.
type ErrorAggregator struct {
	errors []error
}

// NewErrorAggregator creates a new error aggregator
func NewErrorAggregator() *ErrorAggregator {
	return &ErrorAggregator{errors: make([]error, 0)}
}

// Add adds an error to the aggregator; nil errors are ignored
func (a *ErrorAggregator) Add(err error) {
	if err != nil {
		a.errors = append(a.errors, err)
	}
}

// HasErrors returns true if there are any aggregated errors
func (a *ErrorAggregator) HasErrors() bool {
	return len(a.errors) > 0
}

// Count returns the number of aggregated errors
func (a *ErrorAggregator) Count() int {
	return len(a.errors)
}

// Errors returns all aggregated errors
func (a *ErrorAggregator) Errors() []error {
	out := make([]error, len(a.errors))
	copy(out, a.errors)
	return out
}

// ToError converts the aggregated errors into a single Error, or nil
func (a *ErrorAggregator) ToError(code Code, message string) error {
	if len(a.errors) == 0 {
		return nil
	}
	if len(a.errors) == 1 {
		return a.errors[0]
	}
	details := make([]string, len(a.errors))
	for i, err := range a.errors {
		details[i] = err.Error()
	}
	agg := New(code, fmt.Sprintf("%s (%d failures)", message, len(a.errors)))
	agg.WithContext("error_count", len(a.errors))
	agg.WithContext("error_details", details)
	return agg
}
