package types

import (
	"errors"
	"fmt"
)

// Error codes for the payment error taxonomy. Codes are stable identifiers
// the UI layer can branch on; messages are what it shows.
const (
	CodeInvalidInput     = "invalid_input"
	CodeQuoteUnavailable = "quote_unavailable"
	CodeWalletRejected   = "wallet_rejected"
	CodeChainMismatch    = "chain_mismatch"
	CodeExecutionFailed  = "execution_failed"
	CodeRequestInFlight  = "request_in_flight"
)

// Error is a coded payment error. Message is safe to surface to the user;
// Err carries the underlying cause for wrapping.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewInvalidInput reports a request rejected before any external call was
// made. Always locally recoverable.
func NewInvalidInput(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NewQuoteUnavailable wraps a pricing failure. Retrying a quote has no side
// effects, so the message stays low-key.
func NewQuoteUnavailable(msg string, err error) *Error {
	return &Error{Code: CodeQuoteUnavailable, Message: msg, Err: err}
}

// NewWalletRejected marks a declined signature. A normal, non-exceptional
// failure path.
func NewWalletRejected(err error) *Error {
	return &Error{Code: CodeWalletRejected, Message: "signature request was declined", Err: err}
}

// NewChainMismatch reports that the active network differs from the
// required source chain.
func NewChainMismatch(active, required string) *Error {
	return &Error{
		Code:    CodeChainMismatch,
		Message: fmt.Sprintf("active network is %s but %s is required", active, required),
	}
}

// NewExecutionFailed wraps an on-chain failure (RPC error, reverted call,
// stuck approval). The underlying message is preserved verbatim.
func NewExecutionFailed(stage string, err error) *Error {
	return &Error{Code: CodeExecutionFailed, Message: fmt.Sprintf("%s failed", stage), Err: err}
}

// NewRequestInFlight rejects a second payment attempt for a requestId that
// already has one pending.
func NewRequestInFlight(requestID string) *Error {
	return &Error{
		Code:    CodeRequestInFlight,
		Message: fmt.Sprintf("a payment for request %s is already in flight", requestID),
	}
}

// CodeOf extracts the taxonomy code from err, or "" if err is not a coded
// payment error.
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
