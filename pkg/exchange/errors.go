package exchange

import (
	"errors"
	"fmt"
	"time"
)

// Kind sentinels. Adapter errors wrap one of these so callers can branch
// with errors.Is without inspecting venue-specific codes.
var (
	// ErrExchange is the generic kind for anything a venue rejects that the
	// per-venue code table does not classify more precisely.
	ErrExchange = errors.New("exchange error")

	// ErrAuthentication covers bad credentials, bad signatures and expired
	// sessions. Callers should fix credentials rather than retry.
	ErrAuthentication = errors.New("authentication failed")

	// ErrInvalidSymbol is returned when a venue does not list the symbol.
	ErrInvalidSymbol = errors.New("invalid trading symbol")

	// ErrInsufficientBalance is returned when the account cannot cover an
	// order or margin requirement.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOrderNotFound is returned when an order id is unknown to the venue.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidOrder is returned when the venue rejects order parameters.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrRateLimit is returned when the venue throttles the caller. The
	// wrapping Error may carry a retry-after hint.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrNotConnected is returned when an operation requires a prior
	// successful Connect.
	ErrNotConnected = errors.New("service not connected")

	// ErrConfiguration is returned by the factory when a venue is disabled
	// or unknown.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation is returned for locally rejected input (empty
	// credentials, malformed order requests).
	ErrValidation = errors.New("validation error")
)

// Error is the wrapping error type raised by adapters. It keeps the venue,
// the classified kind, the raw venue code and the original cause.
type Error struct {
	Venue      string
	Kind       error
	Code       string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code %s)", e.Venue, e.Message, e.Code)
	}
	if e.Venue != "" {
		return fmt.Sprintf("%s: %s", e.Venue, e.Message)
	}
	return e.Message
}

// Unwrap exposes the original cause so transport failures keep their chain.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches the classified kind, so errors.Is(err, ErrRateLimit) works
// even when the Error wraps a transport cause.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// NewError builds a classified adapter error.
func NewError(venue string, kind error, code, message string, cause error) *Error {
	return &Error{Venue: venue, Kind: kind, Code: code, Message: message, Err: cause}
}

// NewExchangeError wraps an unclassified venue failure, preserving cause.
func NewExchangeError(venue, message string, cause error) *Error {
	return NewError(venue, ErrExchange, "", message, cause)
}

// NewAuthenticationError wraps a credential or signature failure.
func NewAuthenticationError(venue, message string) *Error {
	return NewError(venue, ErrAuthentication, "", message, nil)
}

// NewRateLimitError wraps a throttling rejection with an optional
// retry-after hint supplied by the venue.
func NewRateLimitError(venue, message string, retryAfter time.Duration) *Error {
	return &Error{Venue: venue, Kind: ErrRateLimit, Message: message, RetryAfter: retryAfter}
}

// NewConfigurationError reports a disabled or unknown venue.
func NewConfigurationError(message string) *Error {
	return &Error{Kind: ErrConfiguration, Message: message}
}

// NewValidationError reports locally rejected input.
func NewValidationError(message string) *Error {
	return &Error{Kind: ErrValidation, Message: message}
}

// RetryAfterHint extracts the retry-after hint from a rate-limit error,
// returning zero when none was supplied.
func RetryAfterHint(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
