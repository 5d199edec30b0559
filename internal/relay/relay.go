package relay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BioHazard786/duobooth/internal/store"
)

// Config wires the runtime dependencies of a Service.
type Config struct {
	Store *store.Store

	// Hub receives a wake-up for every appended message. Optional.
	Hub *Hub

	// Metrics defaults to an unregistered set.
	Metrics *Metrics

	Logger *slog.Logger
}

// Service implements the relay operations over a Store. It keeps no state of
// its own; concurrent requests synchronize only through the store.
//
// User ids are taken at face value. They are client-chosen and never
// authenticated, so anything that needs to trust them belongs in front of
// this type.
type Service struct {
	store   *store.Store
	hub     *Hub
	metrics *Metrics
	log     *slog.Logger
}

func NewService(cfg Config) *Service {
	if cfg.Store == nil {
		cfg.Store = store.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		store:   cfg.Store,
		hub:     cfg.Hub,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Rooms    int `json:"rooms"`
	Messages int `json:"messages"`
}

func (s *Service) Stats() Stats {
	rooms, messages := s.store.Stats()
	return Stats{Rooms: rooms, Messages: messages}
}

func (s *Service) sweep() {
	if n := s.store.SweepExpired(); n > 0 {
		s.metrics.RoomsExpired.Add(float64(n))
		s.log.Debug("expired rooms reclaimed", "count", n)
	}
}

func (s *Service) fail(op string, err error) error {
	s.metrics.Failures.WithLabelValues(op, failureReason(err)).Inc()
	return err
}

// Create opens a new room with userID as its host and returns the room code.
func (s *Service) Create(userID string) (string, error) {
	s.sweep()
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", s.fail("create", ErrMissingParameters)
	}

	id, err := s.store.Create(userID)
	if err != nil {
		s.log.Error("room allocation failed", "err", err)
		return "", s.fail("create", err)
	}
	s.metrics.RoomsCreated.Inc()
	s.log.Info("room created", "room_id", id, "host_id", userID)
	return id, nil
}

// Join confirms the room is live and returns a snapshot of it. It does not
// emit a join-room message; the joiner sends that separately so the host's
// poll loop sees it.
func (s *Service) Join(roomID, userID string) (store.Room, error) {
	s.sweep()
	roomID = store.NormalizeCode(roomID)
	if roomID == "" || strings.TrimSpace(userID) == "" {
		return store.Room{}, s.fail("join", ErrMissingParameters)
	}

	s.store.Touch(roomID)
	room, err := s.store.Get(roomID)
	if err != nil {
		return store.Room{}, s.fail("join", err)
	}
	s.metrics.RoomsJoined.Inc()
	s.log.Info("room joined", "room_id", roomID, "user_id", userID)
	return room, nil
}

// Send appends msg to the room's log on behalf of userID.
func (s *Service) Send(roomID, userID string, msg store.Message) (store.Message, error) {
	s.sweep()
	roomID = store.NormalizeCode(roomID)
	if roomID == "" || strings.TrimSpace(userID) == "" {
		return store.Message{}, s.fail("send", ErrMissingParameters)
	}
	if !msg.Type.Valid() {
		return store.Message{}, s.fail("send", ErrInvalidMessageType)
	}

	msg.SenderID = userID
	stored, err := s.store.Append(roomID, msg)
	if err != nil {
		return store.Message{}, s.fail("send", err)
	}
	s.metrics.MessagesRelayed.WithLabelValues(string(stored.Type)).Inc()
	s.log.Debug("message relayed", "room_id", roomID, "sender_id", userID, "type", stored.Type, "timestamp", stored.Timestamp)

	if s.hub != nil && !s.hub.Publish(stored) {
		s.metrics.WakeupsDropped.Inc()
	}
	return stored, nil
}

// Poll returns the room's messages newer than since that userID did not send.
func (s *Service) Poll(roomID, userID string, since int64) ([]store.Message, error) {
	s.sweep()
	roomID = store.NormalizeCode(roomID)
	if roomID == "" || strings.TrimSpace(userID) == "" {
		return nil, s.fail("poll", ErrMissingParameters)
	}
	if since < 0 {
		since = 0
	}

	s.store.Touch(roomID)
	msgs, err := s.store.Since(roomID, userID, since)
	if err != nil {
		return nil, s.fail("poll", err)
	}
	s.metrics.Polls.Inc()
	return msgs, nil
}

// Subscribe checks that the room is live before a wake-up socket is attached
// to it. It counts as activity.
func (s *Service) Subscribe(roomID, userID string) error {
	s.sweep()
	roomID = store.NormalizeCode(roomID)
	if roomID == "" || strings.TrimSpace(userID) == "" {
		return s.fail("subscribe", ErrMissingParameters)
	}
	s.store.Touch(roomID)
	if _, err := s.store.Get(roomID); err != nil {
		return s.fail("subscribe", err)
	}
	return nil
}

// Janitor sweeps expired rooms every interval until ctx is done, on top of
// the lazy sweep every operation performs.
func (s *Service) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}
