package market

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Business-rule rejections raised by the marketplace. These are never
// transient: retrying them cannot succeed.
var (
	ErrSaleClosed         = errors.New("sale closed")
	ErrSoldOut            = errors.New("sold out")
	ErrReservationBlocked = errors.New("reservation blocked")
	ErrLimitExceeded      = errors.New("purchase limit exceeded")
	ErrAlreadyAborted     = errors.New("reservation already aborted")
	ErrCancelDeadline     = errors.New("cancel deadline exceeded")
	ErrCurrencyMismatch   = errors.New("incompatible currencies")
)

// ErrChallenge signals the anti-bot layer rejected the session. It is fatal
// to the current polling session and requires human intervention.
var ErrChallenge = errors.New("anti-bot challenge")

// PaymentError reports why an order could not be paid (no vouchers,
// insufficient balance, failed authorization).
type PaymentError struct {
	Reason string
}

func (e *PaymentError) Error() string {
	return "payment failed: " + e.Reason
}

// StatusError is an HTTP response the gateway could not map to a
// business-rule rejection.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// APIError is a structurally valid upstream response with an unrecognized
// state, kept verbatim for diagnosis.
type APIError struct {
	State string
}

func (e *APIError) Error() string {
	return "unexpected api state " + e.State
}

// IsRetryable reports whether an operation that failed with err may be
// retried: transport-level faults and server-side (5xx) responses only.
// Business-rule rejections and the anti-bot challenge are final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrChallenge) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
