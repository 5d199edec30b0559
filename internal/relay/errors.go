package relay

import (
	"errors"

	"github.com/BioHazard786/duobooth/internal/store"
)

var (
	// ErrRoomNotFound is returned for rooms that never existed or expired.
	ErrRoomNotFound       = store.ErrRoomNotFound
	ErrMissingParameters  = errors.New("missing parameters")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrInvalidAction      = errors.New("invalid action")
)

// IsValidation reports whether err is a caller mistake that retrying will not
// fix.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingParameters) ||
		errors.Is(err, ErrInvalidMessageType) ||
		errors.Is(err, ErrInvalidAction)
}
