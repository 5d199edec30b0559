package store

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	// ErrCodeSpaceExhausted is returned when no unused room code could be
	// drawn after several attempts.
	ErrCodeSpaceExhausted = errors.New("failed to allocate unique room code")
)
