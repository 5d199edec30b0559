package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BioHazard786/duobooth/internal/signaling"
)

var errNoRemote = errors.New("remote description not set")

type fakeMedia struct {
	closed atomic.Bool
}

func (m *fakeMedia) Close() error {
	m.closed.Store(true)
	return nil
}

// fakeTransport imitates a peer connection: it gathers two local candidates
// once it has a local description, rejects remote candidates until it has
// a remote description, and reports Connected after the first remote
// candidate is applied.
type fakeTransport struct {
	name   string
	events TransportEvents

	mu         sync.Mutex
	remote     *signaling.SessionDescription
	candidates []signaling.ICECandidate
	offers     int
	connected  bool
	dataOpen   bool
	filters    []string
	closed     bool
}

func newFakeTransport(name string, events TransportEvents) *fakeTransport {
	return &fakeTransport{name: name, events: events}
}

func (t *fakeTransport) gather() {
	for i := 0; i < 2; i++ {
		c := signaling.ICECandidate{Candidate: fmt.Sprintf("candidate:%s-%d 1 udp 1 127.0.0.1 %d typ host", t.name, i, 5000+i)}
		go t.events.LocalCandidate(c)
	}
}

func (t *fakeTransport) CreateOffer(context.Context) (signaling.SessionDescription, error) {
	t.mu.Lock()
	t.offers++
	t.mu.Unlock()
	t.gather()
	return signaling.SessionDescription{Type: "offer", SDP: "v=0 offer " + t.name}, nil
}

func (t *fakeTransport) AcceptOffer(_ context.Context, offer signaling.SessionDescription) (signaling.SessionDescription, error) {
	t.mu.Lock()
	t.remote = &offer
	t.mu.Unlock()
	t.gather()
	return signaling.SessionDescription{Type: "answer", SDP: "v=0 answer " + t.name}, nil
}

func (t *fakeTransport) ApplyAnswer(_ context.Context, answer signaling.SessionDescription) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remote = &answer
	return nil
}

func (t *fakeTransport) AddCandidate(c signaling.ICECandidate) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remote == nil {
		return errNoRemote
	}
	t.candidates = append(t.candidates, c)
	if !t.connected {
		t.connected = true
		go t.events.StateChange(ConnectionConnected)
	}
	return nil
}

func (t *fakeTransport) SendFilter(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dataOpen {
		return false
	}
	t.filters = append(t.filters, name)
	return true
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	// A real peer connection reports its own closure.
	t.events.StateChange(ConnectionClosed)
	return nil
}

func (t *fakeTransport) snapshot() (remote *signaling.SessionDescription, candidates []signaling.ICECandidate, offers int, closed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remote, append([]signaling.ICECandidate(nil), t.candidates...), t.offers, t.closed
}

// recordingSignaler captures relayed messages instead of sending them.
type recordingSignaler struct {
	mu   sync.Mutex
	sent []signaling.Message
	err  error
}

func (s *recordingSignaler) Send(_ context.Context, roomID string, t signaling.MessageType, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.sent = append(s.sent, signaling.Message{Type: t, Data: raw, RoomID: roomID, Timestamp: int64(len(s.sent) + 1)})
	return nil
}

func (s *recordingSignaler) failWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *recordingSignaler) ofType(t signaling.MessageType) []signaling.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []signaling.Message
	for _, m := range s.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type harness struct {
	orch      *Orchestrator
	signaler  *recordingSignaler
	media     *fakeMedia
	transport *fakeTransport

	mu       sync.Mutex
	statuses []string
	states   []State
	filters  []string
}

func (h *harness) statusLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.statuses...)
}

func (h *harness) stateLog() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.states...)
}

func newHarness(t *testing.T, role Role, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{signaler: &recordingSignaler{}, media: &fakeMedia{}}

	cfg := Config{
		Role:     role,
		RoomID:   "AB12CD",
		UserID:   "u-" + role.String(),
		Signaler: h.signaler,
		AcquireMedia: func(context.Context) (Media, error) {
			return h.media, nil
		},
		NewTransport: func(_ Media, ev TransportEvents) (Transport, error) {
			h.transport = newFakeTransport(role.String(), ev)
			return h.transport, nil
		},
		Hooks: Hooks{
			OnStatusChange: func(text string) {
				h.mu.Lock()
				h.statuses = append(h.statuses, text)
				h.mu.Unlock()
			},
			OnStateChange: func(_, to State) {
				h.mu.Lock()
				h.states = append(h.states, to)
				h.mu.Unlock()
			},
			OnFilterChanged: func(name string) {
				h.mu.Lock()
				h.filters = append(h.filters, name)
				h.mu.Unlock()
			},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	orch, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.orch = orch
	t.Cleanup(orch.End)
	return h
}

func payload(t *testing.T, msgType signaling.MessageType, v any) signaling.Message {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return signaling.Message{Type: msgType, Data: raw, SenderID: "other"}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func timeSeconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}
