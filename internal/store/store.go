package store

import (
	"sync"
	"time"
)

const (
	DefaultTTL         = time.Hour
	DefaultMaxMessages = 50

	codeAttempts = 8
)

// Store is the in-memory registry of live rooms.
//
// All mutations and reads of a room's log happen under one mutex, so a
// reader never observes a log mid-append or mid-truncation. The store holds
// nothing across process restarts.
type Store struct {
	now         func() time.Time
	ttl         time.Duration
	maxMessages int
	newCode     CodeGenerator
	onExpire    func(roomID string)

	mu    sync.Mutex
	rooms map[string]*Room
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTTL sets how long a room may stay untouched before it expires.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxMessages bounds each room's log.
func WithMaxMessages(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxMessages = n
		}
	}
}

func WithCodeGenerator(gen CodeGenerator) Option {
	return func(s *Store) { s.newCode = gen }
}

// WithExpireHook registers fn to be called for every room removed by a sweep.
// fn runs with the store lock held and must not call back into the store.
func WithExpireHook(fn func(roomID string)) Option {
	return func(s *Store) { s.onExpire = fn }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:         time.Now,
		ttl:         DefaultTTL,
		maxMessages: DefaultMaxMessages,
		newCode:     RandomCode,
		rooms:       make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a fresh room owned by hostID and returns its code.
func (s *Store) Create(hostID string) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return "", err
		}
		code = NormalizeCode(code)

		s.mu.Lock()
		now := s.now()
		if existing, ok := s.rooms[code]; ok && !existing.expired(now, s.ttl) {
			s.mu.Unlock()
			continue
		}
		s.rooms[code] = &Room{
			ID:             code,
			HostID:         hostID,
			CreatedAt:      now,
			LastActivityAt: now,
		}
		s.mu.Unlock()
		return code, nil
	}
	return "", ErrCodeSpaceExhausted
}

// lookupLocked returns the live room for id. Expired rooms are reported as
// missing even if no sweep has reclaimed them yet.
func (s *Store) lookupLocked(id string) (*Room, bool) {
	room, ok := s.rooms[NormalizeCode(id)]
	if !ok || room.expired(s.now(), s.ttl) {
		return nil, false
	}
	return room, true
}

// Get returns a snapshot of the room.
func (s *Store) Get(id string) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.lookupLocked(id)
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return room.snapshot(), nil
}

// Touch bumps the room's activity time. It is a no-op for unknown rooms.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.lookupLocked(id); ok {
		room.LastActivityAt = s.now()
	}
}

// Append stamps msg with the arrival time, appends it to the room's log and
// evicts the oldest entries beyond the cap. The stored message is returned.
func (s *Store) Append(id string, msg Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.lookupLocked(id)
	if !ok {
		return Message{}, ErrRoomNotFound
	}

	now := s.now()
	ts := now.UnixMilli()
	if n := len(room.Messages); n > 0 && ts <= room.Messages[n-1].Timestamp {
		ts = room.Messages[n-1].Timestamp + 1
	}
	msg.RoomID = room.ID
	msg.Timestamp = ts

	room.Messages = append(room.Messages, msg)
	if over := len(room.Messages) - s.maxMessages; over > 0 {
		// Copy so the evicted head can be collected.
		room.Messages = append([]Message(nil), room.Messages[over:]...)
	}
	room.LastActivityAt = now
	return msg, nil
}

// Since returns the messages of the room newer than since and not sent by
// exclude, in log order.
func (s *Store) Since(id, exclude string, since int64) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.lookupLocked(id)
	if !ok {
		return nil, ErrRoomNotFound
	}

	out := make([]Message, 0, len(room.Messages))
	for _, msg := range room.Messages {
		if msg.Timestamp > since && msg.SenderID != exclude {
			out = append(out, msg)
		}
	}
	return out, nil
}

// SweepExpired removes every room whose last activity is older than the TTL
// and returns how many were removed.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, room := range s.rooms {
		if room.expired(now, s.ttl) {
			delete(s.rooms, id)
			removed++
			if s.onExpire != nil {
				s.onExpire(id)
			}
		}
	}
	return removed
}

// Stats reports the number of rooms held and the total buffered messages.
// Expired rooms not yet swept are counted.
func (s *Store) Stats() (rooms, messages int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, room := range s.rooms {
		messages += len(room.Messages)
	}
	return len(s.rooms), messages
}
