package signaling

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound means the room never existed or has expired.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRejected means the relay refused a malformed request.
	ErrRejected = errors.New("request rejected")

	ErrRateLimited  = errors.New("rate limited")
	ErrEmptyPayload = errors.New("message has no payload")
)

// RelayError records a failed relay call.
type RelayError struct {
	Op      string
	Status  int
	Err     error
	Details string
}

func (e *RelayError) Error() string {
	msg := "relay " + e.Op
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Details != "" && (e.Err == nil || e.Details != e.Err.Error()) {
		msg += ": " + e.Details
	}
	return msg
}

func (e *RelayError) Unwrap() error {
	return e.Err
}
