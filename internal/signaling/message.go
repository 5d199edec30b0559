package signaling

import "encoding/json"

// MessageType names a relayed signaling message.
type MessageType string

// Message type constants.
const (
	MessageTypeOffer        MessageType = "offer"
	MessageTypeAnswer       MessageType = "answer"
	MessageTypeICECandidate MessageType = "ice-candidate"
	MessageTypeFilterChange MessageType = "filter-change"
	MessageTypeJoinRoom     MessageType = "join-room"
)

// Message is one relayed entry as returned by a poll.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	RoomID    string          `json:"roomId,omitempty"`
	SenderID  string          `json:"senderId,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Decode unmarshals the message payload into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(m.Data, v)
}

// Room is the relay's view of a room, times in Unix milliseconds.
type Room struct {
	ID           string    `json:"id"`
	HostID       string    `json:"hostId"`
	Created      int64     `json:"created"`
	LastActivity int64     `json:"lastActivity"`
	Messages     []Message `json:"messages"`
}

// Stats is the relay's load summary.
type Stats struct {
	Rooms    int `json:"rooms"`
	Messages int `json:"messages"`
}

// SessionDescription is the payload of offer and answer messages.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is the payload of ice-candidate messages. Field names follow
// the browser's RTCIceCandidateInit.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// FilterChange is the payload of filter-change messages.
type FilterChange struct {
	Filter string `json:"filter"`
}

// JoinNotice is the payload of join-room messages.
type JoinNotice struct {
	JoinerID string `json:"joinerId"`
	Joined   int64  `json:"joined"`
}

// Wakeup is a push notification that the room has something new to poll.
type Wakeup struct {
	RoomID    string      `json:"roomId"`
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
}

type actionRequest struct {
	Action  string    `json:"action"`
	RoomID  string    `json:"roomId,omitempty"`
	UserID  string    `json:"userId"`
	Message *outgoing `json:"message,omitempty"`
}

type outgoing struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

type envelope struct {
	Success  bool      `json:"success"`
	RoomID   string    `json:"roomId"`
	Room     *Room     `json:"room"`
	Messages []Message `json:"messages"`
	Error    string    `json:"error"`
}
