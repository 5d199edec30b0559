package store

import "encoding/json"

// MessageType names a relayed signaling message.
type MessageType string

// Relayed message types. "room-created" is never relayed; creating a room
// simply returns its code.
const (
	MessageTypeOffer        MessageType = "offer"
	MessageTypeAnswer       MessageType = "answer"
	MessageTypeICECandidate MessageType = "ice-candidate"
	MessageTypeFilterChange MessageType = "filter-change"
	MessageTypeJoinRoom     MessageType = "join-room"
)

// Valid reports whether t is one of the relayed message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeOffer, MessageTypeAnswer, MessageTypeICECandidate,
		MessageTypeFilterChange, MessageTypeJoinRoom:
		return true
	}
	return false
}

// Message is one entry of a room's log.
type Message struct {
	Type MessageType `json:"type"`

	// Data is opaque to the relay: a session description, a single ICE
	// candidate, a filter name or a join notice.
	Data json.RawMessage `json:"data,omitempty"`

	RoomID   string `json:"roomId"`
	SenderID string `json:"senderId"`

	// Timestamp is assigned by the store on arrival, in milliseconds since
	// the Unix epoch. It strictly increases within a room.
	Timestamp int64 `json:"timestamp"`
}
