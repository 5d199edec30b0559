package session

import (
	"errors"
	"fmt"
)

var (
	// ErrIgnored means an event did not apply in the current state.
	ErrIgnored = errors.New("event ignored")

	// ErrTransport covers media acquisition and connection setup failures.
	// They end the session.
	ErrTransport = errors.New("transport error")

	ErrConnectionLost = errors.New("connection lost")
	ErrEnded          = errors.New("session ended")
	ErrUnknownFilter  = errors.New("unknown filter")
	ErrBadPayload     = errors.New("malformed message payload")
)

// Error records the operation a session failure happened in.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

// transportError marks err as a TransportError while keeping it
// inspectable.
func transportError(op string, err error) *Error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
}
