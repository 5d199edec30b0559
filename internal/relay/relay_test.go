package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/BioHazard786/duobooth/internal/store"
)

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

func newTestService(t *testing.T, opts ...store.Option) (*Service, *fakeClock, *Metrics) {
	t.Helper()
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	opts = append([]store.Option{store.WithClock(clk.Now)}, opts...)
	m := NewMetrics(prometheus.NewRegistry())
	svc := NewService(Config{Store: store.New(opts...), Metrics: m})
	return svc, clk, m
}

func fixedCode(code string) store.Option {
	return store.WithCodeGenerator(func() (string, error) { return code, nil })
}

func TestService_JoinRoomScenario(t *testing.T) {
	svc, clk, m := newTestService(t, fixedCode("AB12CD"))

	id, err := svc.Create("u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "AB12CD" {
		t.Fatalf("room id=%q, want AB12CD", id)
	}

	room, err := svc.Join("AB12CD", "u2")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if room.HostID != "u1" {
		t.Fatalf("HostID=%q, want u1", room.HostID)
	}

	clk.Advance(time.Millisecond)
	data := json.RawMessage(`{"joinerId":"u2","joined":1}`)
	if _, err := svc.Send("AB12CD", "u2", store.Message{Type: store.MessageTypeJoinRoom, Data: data}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs, err := svc.Poll("AB12CD", "u1", 0)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("len(msgs)=%d, want 1", len(msgs))
	}
	if msgs[0].Type != store.MessageTypeJoinRoom || msgs[0].SenderID != "u2" {
		t.Fatalf("msg=%+v, want join-room from u2", msgs[0])
	}
	if string(msgs[0].Data) != string(data) {
		t.Fatalf("data=%s, want %s", msgs[0].Data, data)
	}

	if got := testutil.ToFloat64(m.RoomsCreated); got != 1 {
		t.Fatalf("rooms_created_total=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MessagesRelayed.WithLabelValues("join-room")); got != 1 {
		t.Fatalf("messages_relayed_total{join-room}=%v, want 1", got)
	}
}

func TestService_PollUnknownRoom(t *testing.T) {
	svc, _, m := newTestService(t)

	_, err := svc.Poll("ZZZZZZ", "u1", 0)
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Poll err=%v, want %v", err, ErrRoomNotFound)
	}
	if err.Error() != "room not found" {
		t.Fatalf("error text=%q, want %q", err.Error(), "room not found")
	}
	if got := testutil.ToFloat64(m.Failures.WithLabelValues("poll", "not_found")); got != 1 {
		t.Fatalf("failures_total{poll,not_found}=%v, want 1", got)
	}
}

func TestService_JoinAndSendUnknownRoom(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Join("ZZZZZZ", "u2"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Join err=%v, want %v", err, ErrRoomNotFound)
	}
	if _, err := svc.Send("ZZZZZZ", "u2", store.Message{Type: store.MessageTypeOffer}); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Send err=%v, want %v", err, ErrRoomNotFound)
	}
}

func TestService_MissingParameters(t *testing.T) {
	svc, _, _ := newTestService(t)
	id, _ := svc.Create("u1")

	tests := []struct {
		name string
		call func() error
	}{
		{"create without user", func() error { _, err := svc.Create(" "); return err }},
		{"join without room", func() error { _, err := svc.Join("", "u2"); return err }},
		{"join without user", func() error { _, err := svc.Join(id, ""); return err }},
		{"send without user", func() error {
			_, err := svc.Send(id, "", store.Message{Type: store.MessageTypeOffer})
			return err
		}},
		{"poll without room", func() error { _, err := svc.Poll("", "u1", 0); return err }},
		{"poll without user", func() error { _, err := svc.Poll(id, "", 0); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrMissingParameters) {
				t.Fatalf("err=%v, want %v", err, ErrMissingParameters)
			}
		})
	}
}

func TestService_SendRejectsUnknownType(t *testing.T) {
	svc, _, _ := newTestService(t)
	id, _ := svc.Create("u1")

	_, err := svc.Send(id, "u1", store.Message{Type: "room-created"})
	if !errors.Is(err, ErrInvalidMessageType) {
		t.Fatalf("Send err=%v, want %v", err, ErrInvalidMessageType)
	}
}

func TestService_RoomCodesAreCaseInsensitive(t *testing.T) {
	svc, _, _ := newTestService(t, fixedCode("AB12CD"))
	svc.Create("u1")

	if _, err := svc.Join("ab12cd", "u2"); err != nil {
		t.Fatalf("Join lower-case: %v", err)
	}
	if _, err := svc.Send(" ab12Cd ", "u2", store.Message{Type: store.MessageTypeJoinRoom}); err != nil {
		t.Fatalf("Send mixed-case: %v", err)
	}
	msgs, err := svc.Poll("AB12CD", "u1", 0)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("Poll=%v,%v, want one message", msgs, err)
	}
}

func TestService_PollNeverReturnsOwnMessages(t *testing.T) {
	svc, clk, _ := newTestService(t)
	id, _ := svc.Create("u1")

	senders := []string{"u1", "u2", "u1", "u3", "u2"}
	for _, sender := range senders {
		clk.Advance(time.Millisecond)
		if _, err := svc.Send(id, sender, store.Message{Type: store.MessageTypeICECandidate}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	all, _ := svc.Poll(id, "observer", 0)
	for _, user := range []string{"u1", "u2", "u3"} {
		for _, since := range []int64{0, all[0].Timestamp, all[2].Timestamp, all[len(all)-1].Timestamp} {
			msgs, err := svc.Poll(id, user, since)
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			for i, msg := range msgs {
				if msg.SenderID == user {
					t.Fatalf("Poll(%s,%d) returned own message %+v", user, since, msg)
				}
				if msg.Timestamp <= since {
					t.Fatalf("Poll(%s,%d) returned stale timestamp %d", user, since, msg.Timestamp)
				}
				if i > 0 && msg.Timestamp < msgs[i-1].Timestamp {
					t.Fatalf("Poll(%s,%d) out of order", user, since)
				}
			}
		}
	}
}

func TestService_LogCappedAtFifty(t *testing.T) {
	svc, clk, _ := newTestService(t)
	id, _ := svc.Create("u1")

	var sent []store.Message
	for i := 0; i < 51; i++ {
		clk.Advance(time.Millisecond)
		data := json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))
		msg, err := svc.Send(id, "u2", store.Message{Type: store.MessageTypeICECandidate, Data: data})
		if err != nil {
			t.Fatalf("Send #%d: %v", i, err)
		}
		sent = append(sent, msg)
	}

	msgs, err := svc.Poll(id, "u3", 0)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(msgs) != 50 {
		t.Fatalf("len(msgs)=%d, want 50", len(msgs))
	}
	for i, msg := range msgs {
		if msg.Timestamp != sent[i+1].Timestamp {
			t.Fatalf("msgs[%d].Timestamp=%d, want %d", i, msg.Timestamp, sent[i+1].Timestamp)
		}
	}
}

func TestService_ExpiryAcrossOperations(t *testing.T) {
	svc, clk, m := newTestService(t)
	id, _ := svc.Create("u1")

	clk.Advance(time.Hour + time.Second)

	if _, err := svc.Join(id, "u2"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Join err=%v, want %v", err, ErrRoomNotFound)
	}
	if _, err := svc.Send(id, "u2", store.Message{Type: store.MessageTypeJoinRoom}); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Send err=%v, want %v", err, ErrRoomNotFound)
	}
	if _, err := svc.Poll(id, "u1", 0); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Poll err=%v, want %v", err, ErrRoomNotFound)
	}
	if got := svc.Stats().Rooms; got != 0 {
		t.Fatalf("Stats().Rooms=%d, want 0", got)
	}
	if got := testutil.ToFloat64(m.RoomsExpired); got != 1 {
		t.Fatalf("rooms_expired_total=%v, want 1", got)
	}
}

func TestService_PollKeepsRoomAlive(t *testing.T) {
	svc, clk, _ := newTestService(t)
	id, _ := svc.Create("u1")

	for i := 0; i < 4; i++ {
		clk.Advance(45 * time.Minute)
		if _, err := svc.Poll(id, "u1", 0); err != nil {
			t.Fatalf("Poll after %d intervals: %v", i+1, err)
		}
	}
}

func TestService_NegativeSinceMeansAllHistory(t *testing.T) {
	svc, _, _ := newTestService(t)
	id, _ := svc.Create("u1")
	svc.Send(id, "u2", store.Message{Type: store.MessageTypeJoinRoom})

	msgs, err := svc.Poll(id, "u1", -5)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("Poll=%v,%v, want one message", msgs, err)
	}
}
