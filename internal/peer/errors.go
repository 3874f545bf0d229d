package peer

import (
	"errors"
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
)

// ErrorCode categorizes peer errors.
type ErrorCode string

const (
	// ErrCodeDispatch indicates a message could not be delivered: the
	// destination is unknown or the transport failed.
	ErrCodeDispatch ErrorCode = "DISPATCH_FAILED"

	// ErrCodeUnknownID indicates a message referenced an identifier the
	// receiving worker does not hold.
	ErrCodeUnknownID ErrorCode = "UNKNOWN_ID"

	// ErrCodeBadMessage indicates a message could not be decoded or applied.
	ErrCodeBadMessage ErrorCode = "BAD_MESSAGE"

	// ErrCodeUnknownOp indicates a command named an operation the target
	// object does not support.
	ErrCodeUnknownOp ErrorCode = "UNKNOWN_OP"
)

// Error represents a failure while routing or applying a message.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Peer is the peer where the failure happened, if known.
	Peer ir.PeerID

	// ID is the identifier involved, if any.
	ID ir.ID

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Peer != "" {
		msg += fmt.Sprintf(" (peer=%s)", e.Peer)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsDispatchError returns true if err is a delivery failure.
// Uses errors.As to handle wrapped errors.
func IsDispatchError(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeDispatch
	}
	return false
}

// IsUnknownIDError returns true if err reports an unresolvable identifier.
func IsUnknownIDError(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeUnknownID
	}
	return false
}

// IsUnknownOpError returns true if err reports an unsupported operation.
func IsUnknownOpError(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeUnknownOp
	}
	return false
}

func unknownPeer(to ir.PeerID) *Error {
	return &Error{Code: ErrCodeDispatch, Message: "no route to peer", Peer: to}
}

func unknownID(at ir.PeerID, id ir.ID) *Error {
	return &Error{Code: ErrCodeUnknownID, Message: fmt.Sprintf("no object with id %d", id), Peer: at, ID: id}
}

func badMessage(at ir.PeerID, err error) *Error {
	return &Error{Code: ErrCodeBadMessage, Message: "cannot apply message", Peer: at, Err: err}
}
