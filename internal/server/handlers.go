package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/BioHazard786/duobooth/internal/relay"
	"github.com/BioHazard786/duobooth/internal/store"
)

const maxBodyBytes = 64 << 10

type actionRequest struct {
	Action  string         `json:"action"`
	RoomID  string         `json:"roomId"`
	UserID  string         `json:"userId"`
	Message *store.Message `json:"message,omitempty"`
	Since   int64          `json:"since,omitempty"`
}

type response struct {
	Success bool      `json:"success"`
	RoomID  string    `json:"roomId,omitempty"`
	Room    *roomView `json:"room,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// roomView is the wire form of a room, with times in Unix milliseconds.
type roomView struct {
	ID           string          `json:"id"`
	HostID       string          `json:"hostId"`
	Created      int64           `json:"created"`
	LastActivity int64           `json:"lastActivity"`
	Messages     []store.Message `json:"messages"`
}

func newRoomView(r store.Room) *roomView {
	msgs := r.Messages
	if msgs == nil {
		msgs = []store.Message{}
	}
	return &roomView{
		ID:           r.ID,
		HostID:       r.HostID,
		Created:      r.CreatedAt.UnixMilli(),
		LastActivity: r.LastActivityAt.UnixMilli(),
		Messages:     msgs,
	}
}

// handleAction serves POST /api/rooms, dispatching on the action field.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, response{Error: "invalid request body"})
		return
	}

	switch strings.ToLower(req.Action) {
	case "create":
		id, err := s.relay.Create(req.UserID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, response{Success: true, RoomID: id})

	case "join":
		room, err := s.relay.Join(req.RoomID, req.UserID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, response{Success: true, Room: newRoomView(room)})

	case "send":
		if req.Message == nil {
			s.writeError(w, relay.ErrMissingParameters)
			return
		}
		if _, err := s.relay.Send(req.RoomID, req.UserID, *req.Message); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, response{Success: true})

	case "poll":
		since := req.Since
		if q := r.URL.Query().Get("since"); q != "" {
			since = parseSince(q)
		}
		s.poll(w, req.RoomID, req.UserID, since)

	default:
		s.writeError(w, relay.ErrInvalidAction)
	}
}

// handlePoll serves GET /api/rooms?roomId=&userId=&since=.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.poll(w, q.Get("roomId"), q.Get("userId"), parseSince(q.Get("since")))
}

func (s *Server) poll(w http.ResponseWriter, roomID, userID string, since int64) {
	msgs, err := s.relay.Poll(roomID, userID, since)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	// Messages is always present on success, even when empty.
	s.writeRaw(w, http.StatusOK, struct {
		Success  bool            `json:"success"`
		Messages []store.Message `json:"messages"`
	}{true, msgs})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeRaw(w, http.StatusOK, s.relay.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling relay is healthy."))
}

// parseSince treats anything unparsable as 0, i.e. "everything".
func parseSince(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, relay.ErrRoomNotFound):
		return http.StatusNotFound
	case relay.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
		msg = "server error"
	}
	s.writeJSON(w, status, response{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp response) {
	s.writeRaw(w, status, resp)
}

func (s *Server) writeRaw(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("response write failed", "err", err)
	}
}
