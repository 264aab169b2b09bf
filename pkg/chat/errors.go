package chat

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/llm"
)

var (
	// ErrBusy is returned by Send while a previous turn is still in flight.
	ErrBusy = errors.New("a reply is still loading")

	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// RelayError is a non-2xx answer from the relay.
type RelayError struct {
	StatusCode int
	Message    string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay returned status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the same request may succeed later without
// operator intervention. Rate limits and server failures are; payment
// failures are not.
func (e *RelayError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// notice is the user-facing text for e.
func (e *RelayError) notice() string {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return llm.MsgRateLimited
	case http.StatusPaymentRequired:
		return llm.MsgPaymentRequired
	}
	if e.Message != "" {
		return e.Message
	}
	return llm.MsgGatewayError
}
