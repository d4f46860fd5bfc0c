// Package domain holds the error taxonomy and event types shared by the
// chore, points, and reward services. Callers match errors by code rather
// than by message text.
package domain

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodePatternInvalid     Code = "pattern_invalid"
	CodeInvalidTransition  Code = "invalid_transition"
	CodeForbidden          Code = "forbidden"
	CodeNotYetDue          Code = "not_yet_due"
	CodePastDeadline       Code = "past_deadline"
	CodeAlreadyClaimed     Code = "already_claimed"
	CodeInsufficientPoints Code = "insufficient_points"
	CodeLimitExceeded      Code = "limit_exceeded"
	CodeBalanceMismatch    Code = "balance_mismatch"
	CodeNotFound           Code = "not_found"
)

// Error is a rejected operation with a stable machine-readable code and a
// human-readable reason. All domain errors are recoverable at the caller.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errf builds a domain error with a formatted message.
func Errf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the domain code from err, unwrapping as needed.
// Returns "" for non-domain errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
