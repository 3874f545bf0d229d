package plan

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes plan errors.
type ErrorCode string

const (
	// ErrCodeInvalidPlacement indicates Send was called on a plan that
	// already has a location.
	ErrCodeInvalidPlacement ErrorCode = "INVALID_PLACEMENT"

	// ErrCodeBlueprintArity indicates the blueprint did not return exactly
	// one result.
	ErrCodeBlueprintArity ErrorCode = "BLUEPRINT_ARITY"

	// ErrCodeUnsupportedInvocation indicates the plan was called with named
	// arguments.
	ErrCodeUnsupportedInvocation ErrorCode = "UNSUPPORTED_INVOCATION"

	// ErrCodeArgumentCount indicates an invocation's argument or result
	// count differs from the arity fixed when the plan was traced.
	ErrCodeArgumentCount ErrorCode = "ARGUMENT_COUNT"
)

// Error represents a plan usage or tracing failure.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Plan is the name of the plan involved.
	Plan string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Plan != "" {
		return fmt.Sprintf("%s: %s (plan=%s)", e.Code, e.Message, e.Plan)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsInvalidPlacement returns true if err is an ErrCodeInvalidPlacement error.
func IsInvalidPlacement(err error) bool { return hasCode(err, ErrCodeInvalidPlacement) }

// IsBlueprintArity returns true if err is an ErrCodeBlueprintArity error.
func IsBlueprintArity(err error) bool { return hasCode(err, ErrCodeBlueprintArity) }

// IsUnsupportedInvocation returns true if err is an
// ErrCodeUnsupportedInvocation error.
func IsUnsupportedInvocation(err error) bool { return hasCode(err, ErrCodeUnsupportedInvocation) }

// IsArgumentCount returns true if err is an ErrCodeArgumentCount error.
func IsArgumentCount(err error) bool { return hasCode(err, ErrCodeArgumentCount) }
