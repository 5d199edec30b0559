package relay

import (
	"context"
	"log/slog"

	"github.com/BioHazard786/duobooth/internal/store"
)

// Wakeup tells a subscriber that its room has a new message. It carries no
// payload; the subscriber fetches the message through a regular poll.
type Wakeup struct {
	RoomID    string            `json:"roomId"`
	Type      store.MessageType `json:"type"`
	Timestamp int64             `json:"timestamp"`

	senderID string
}

// Hub fans wake-ups out to the WebSocket subscribers of each room.
//
// All subscriber bookkeeping happens on the goroutine running Run, so the
// rooms map needs no lock.
type Hub struct {
	// rooms maps room ids to their subscribed clients.
	rooms map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Wakeup

	done chan struct{}
	log  *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Wakeup, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Register attaches c to its room. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister detaches c and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues a wake-up for every subscriber of msg's room except its
// sender. Wake-ups are best effort: it reports false if the queue is full.
func (h *Hub) Publish(msg store.Message) bool {
	w := &Wakeup{RoomID: msg.RoomID, Type: msg.Type, Timestamp: msg.Timestamp, senderID: msg.SenderID}
	select {
	case h.broadcast <- w:
		return true
	default:
		h.log.Warn("wake-up queue full, dropping", "room_id", msg.RoomID)
		return false
	}
}

// Run processes registrations and wake-ups until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for c := range clients {
					close(c.send)
				}
			}
			h.rooms = make(map[string]map[*Client]struct{})
			return

		case c := <-h.register:
			clients, ok := h.rooms[c.roomID]
			if !ok {
				clients = make(map[*Client]struct{})
				h.rooms[c.roomID] = clients
			}
			clients[c] = struct{}{}
			h.log.Debug("subscriber registered", "room_id", c.roomID, "user_id", c.userID, "remote", c.conn.RemoteAddr())

		case c := <-h.unregister:
			h.remove(c)

		case w := <-h.broadcast:
			for c := range h.rooms[w.RoomID] {
				// A participant never hears about its own messages.
				if c.userID == w.senderID {
					continue
				}
				select {
				case c.send <- w:
				default:
					h.log.Warn("subscriber too slow, disconnecting", "room_id", c.roomID, "user_id", c.userID)
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	clients, ok := h.rooms[c.roomID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.roomID)
	}
	h.log.Debug("subscriber unregistered", "room_id", c.roomID, "user_id", c.userID)
}
