package session

import (
	"context"

	"github.com/BioHazard786/duobooth/internal/signaling"
)

// Signaler relays messages to the other participant.
type Signaler interface {
	Send(ctx context.Context, roomID string, t signaling.MessageType, data any) error
}

// Media is local capture that a Transport publishes.
type Media interface {
	Close() error
}

// ConnectionState is the peer connection state reported by a Transport.
type ConnectionState int

const (
	ConnectionNew ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnected
	ConnectionFailed
	ConnectionClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionNew:
		return "new"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionFailed:
		return "failed"
	case ConnectionClosed:
		return "closed"
	}
	return "unknown"
}

// TransportEvents are the callbacks a Transport reports through. They may be
// invoked from any goroutine.
type TransportEvents struct {
	LocalCandidate func(signaling.ICECandidate)
	StateChange    func(ConnectionState)
	RemoteMedia    func()

	// RemoteFilter reports a filter change received over a direct channel
	// instead of the relay.
	RemoteFilter func(name string)
}

// Transport is one peer connection.
type Transport interface {
	// CreateOffer creates an offer and installs it as the local description.
	CreateOffer(ctx context.Context) (signaling.SessionDescription, error)

	// AcceptOffer installs offer as the remote description and returns the
	// installed local answer.
	AcceptOffer(ctx context.Context, offer signaling.SessionDescription) (signaling.SessionDescription, error)

	ApplyAnswer(ctx context.Context, answer signaling.SessionDescription) error
	AddCandidate(c signaling.ICECandidate) error

	// SendFilter delivers a filter change over a direct channel. It reports
	// false when no such channel is open.
	SendFilter(name string) bool

	Close() error
}

// MediaFunc acquires local media.
type MediaFunc func(ctx context.Context) (Media, error)

// TransportFunc creates a transport publishing media.
type TransportFunc func(media Media, events TransportEvents) (Transport, error)
