package store

import "time"

// Room is a rendezvous namespace holding a bounded message log for two
// participants.
type Room struct {
	ID             string
	HostID         string
	CreatedAt      time.Time
	LastActivityAt time.Time
	Messages       []Message
}

// snapshot returns a copy of r that shares no mutable state with the store.
func (r *Room) snapshot() Room {
	cp := *r
	cp.Messages = append([]Message(nil), r.Messages...)
	return cp
}

func (r *Room) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.LastActivityAt) > ttl
}
