package schedapi

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call to the external API.
type Kind int

const (
	// KindTransport means no usable answer arrived: network failure, timeout,
	// cancelled context, throttle wait failure or a 5xx from the service.
	KindTransport Kind = iota + 1
	// KindBusiness means the service answered and refused, e.g. slot taken or validation failed.
	KindBusiness
	// KindMalformed means the service answered with a body that does not decode.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindBusiness:
		return "business"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ErrSlotUnavailable is wrapped by booking errors answered with HTTP 409.
var ErrSlotUnavailable = errors.New("slot is no longer available")

// Error describes a failed API call. Inspect it with errors.As.
type Error struct {
	Kind    Kind
	Op      string // e.g. "GET /schedule/availability"
	Status  int    // HTTP status, 0 when no response arrived
	Message string // message reported by the service, if any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s failure (HTTP %d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s failure: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport
}

// UserMessage returns text safe to show a visitor.
func (e *Error) UserMessage() string {
	switch {
	case errors.Is(e.Err, ErrSlotUnavailable):
		if e.Message != "" {
			return e.Message
		}
		return "That time has just been taken. Please choose another slot."
	case e.Kind == KindBusiness && e.Message != "":
		return e.Message
	case e.Kind == KindBusiness:
		return "The scheduling service could not accept this request."
	case e.Kind == KindMalformed:
		return "The scheduling service sent an unexpected response. Please try again."
	default:
		return "We couldn't reach the scheduling service. Please try again."
	}
}

// UserMessage extracts a visitor-safe message from any error returned by this package.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return "Something went wrong. Please try again."
}
