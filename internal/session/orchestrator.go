package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/duobooth/internal/signaling"
)

// Status texts shown to the user.
const (
	StatusRequestingMedia = "Requesting camera access..."
	StatusSettingUp       = "Setting up connection..."
	StatusRoomCreated     = "Room created! Share the Room ID with your friend."
	StatusJoining         = "Room found! Joining..."
	StatusPeerJoined      = "Friend joined! Creating connection..."
	StatusOfferReceived   = "Received connection offer..."
	StatusAnswerSent      = "Sent connection response..."
	StatusConnected       = "Connected!"
	StatusConnectionLost  = "Connection lost"
	StatusConnectionFail  = "Connection failed"
	StatusDisconnected    = "Disconnected"
)

const inboxSize = 64

// Hooks are the signals the orchestrator raises. They run on the
// orchestrator's goroutine and must not call back into it synchronously.
type Hooks struct {
	OnLocalMediaReady      func()
	OnRemoteMediaAvailable func()
	OnStatusChange         func(text string)
	OnStateChange          func(from, to State)
	OnConnected            func()
	OnDisconnectedOrFailed func(err error)
	OnFilterChanged        func(name string)
}

// Config wires an Orchestrator to its collaborators.
type Config struct {
	Role   Role
	RoomID string
	UserID string

	Signaler     Signaler
	AcquireMedia MediaFunc
	NewTransport TransportFunc

	Hooks  Hooks
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// LocalFilter defaults to DefaultFilter.
	LocalFilter string
}

// Orchestrator drives one side of a call from Idle to Connected and on to
// Ended or Failed.
//
// Relayed messages and transport callbacks are funneled through one inbox
// and handled by a single goroutine, so transitions never race. Every
// transition is decided by Transition.
type Orchestrator struct {
	role     Role
	roomID   string
	userID   string
	signaler Signaler
	acquire  MediaFunc
	dial     TransportFunc
	hooks    Hooks
	log      *slog.Logger
	now      func() time.Time

	inbox    chan event
	closing  chan struct{}
	done     chan struct{}
	terminal chan struct{}

	// Owned by the loop goroutine.
	media     Media
	transport Transport
	hasRemote bool
	pending   []signaling.ICECandidate

	mu           sync.RWMutex
	state        State
	connectedAt  time.Time
	stoppedAt    time.Time
	localFilter  string
	remoteFilter string
	sent         int
	received     int
	err          error

	// joinSeen is set once the relay accepted the join notice or an offer
	// proved the host saw it.
	joinSeen bool
}

type event struct {
	kind      Event
	ctx       context.Context
	msg       signaling.Message
	candidate signaling.ICECandidate
	filter    string

	// reply is nil for fire-and-forget transport callbacks.
	reply chan error
}

// New validates cfg and starts the orchestrator's event loop. Call End to
// release it.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.RoomID == "":
		return nil, errors.New("session: missing room id")
	case cfg.Signaler == nil:
		return nil, errors.New("session: missing signaler")
	case cfg.AcquireMedia == nil || cfg.NewTransport == nil:
		return nil, errors.New("session: missing media or transport factory")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	local := DefaultFilter
	if f, ok := LookupFilter(cfg.LocalFilter); ok {
		local = f
	}

	o := &Orchestrator{
		role:        cfg.Role,
		roomID:      cfg.RoomID,
		userID:      cfg.UserID,
		signaler:    cfg.Signaler,
		acquire:     cfg.AcquireMedia,
		dial:        cfg.NewTransport,
		hooks:       cfg.Hooks,
		log:         cfg.Logger.With("room_id", cfg.RoomID, "role", cfg.Role.String()),
		now:         cfg.Now,
		inbox:       make(chan event, inboxSize),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
		terminal:    make(chan struct{}),
		localFilter: local,
	}
	go o.run()
	return o, nil
}

// Start acquires local media, creates the transport and enters the role's
// first state: AwaitingPeer for the host, Negotiating for the joiner. A
// join notice the relay did not take is logged, not returned.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.submit(ctx, event{kind: EventLocalReady})
}

// RetryJoin resends the join notice while the joiner is negotiating and
// neither the notice reached the relay nor an offer arrived. It is a no-op
// otherwise.
func (o *Orchestrator) RetryJoin(ctx context.Context) error {
	if o.role != RoleJoiner {
		return nil
	}
	o.mu.RLock()
	seen := o.joinSeen
	o.mu.RUnlock()
	if seen {
		return nil
	}

	err := o.submit(ctx, event{kind: EventJoinRetry})
	if errors.Is(err, ErrIgnored) {
		return nil
	}
	return err
}

// HandleMessage feeds one relayed message in and returns once it is fully
// processed. Messages that do not apply in the current state return
// ErrIgnored.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg signaling.Message) error {
	o.mu.Lock()
	o.received++
	o.mu.Unlock()

	var kind Event
	switch msg.Type {
	case signaling.MessageTypeJoinRoom:
		kind = EventPeerJoined
	case signaling.MessageTypeOffer:
		kind = EventOffer
	case signaling.MessageTypeAnswer:
		kind = EventAnswer
	case signaling.MessageTypeICECandidate:
		kind = EventCandidate
	case signaling.MessageTypeFilterChange:
		kind = EventFilterChange
	default:
		return WrapError("handle message", ErrIgnored, string(msg.Type))
	}
	return o.submit(ctx, event{kind: kind, msg: msg})
}

// SetLocalFilter records the local filter and tells the other participant
// once a negotiation is under way.
func (o *Orchestrator) SetLocalFilter(ctx context.Context, name string) error {
	f, ok := LookupFilter(name)
	if !ok {
		return WrapError("set filter", ErrUnknownFilter, name)
	}
	err := o.submit(ctx, event{kind: EventLocalFilter, filter: f})
	if errors.Is(err, ErrIgnored) {
		return nil
	}
	return err
}

// End tears the call down and moves to Ended from any state. It is safe to
// call more than once.
func (o *Orchestrator) End() {
	select {
	case <-o.done:
		return
	default:
	}
	o.submit(context.Background(), event{kind: EventHangup})
	<-o.done
}

// Done is closed once the session reaches Ended or Failed.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.terminal
}

func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) Role() Role     { return o.role }
func (o *Orchestrator) RoomID() string { return o.roomID }

// Err is the reason the session failed, if it did.
func (o *Orchestrator) Err() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.err
}

// CallDuration is how long the call has been connected. It is zero before
// Connected and stops counting when the call ends or fails.
func (o *Orchestrator) CallDuration() time.Duration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.connectedAt.IsZero() {
		return 0
	}
	if !o.stoppedAt.IsZero() {
		return o.stoppedAt.Sub(o.connectedAt)
	}
	return o.now().Sub(o.connectedAt)
}

// Summary is a snapshot of the session for display.
type Summary struct {
	RoomID       string
	Role         Role
	State        State
	Duration     time.Duration
	Sent         int
	Received     int
	LocalFilter  string
	RemoteFilter string
	Err          error
}

func (o *Orchestrator) Summary() Summary {
	d := o.CallDuration()
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Summary{
		RoomID:       o.roomID,
		Role:         o.role,
		State:        o.state,
		Duration:     d,
		Sent:         o.sent,
		Received:     o.received,
		LocalFilter:  o.localFilter,
		RemoteFilter: o.remoteFilter,
		Err:          o.err,
	}
}

func (o *Orchestrator) submit(ctx context.Context, ev event) error {
	ev.ctx = ctx
	ev.reply = make(chan error, 1)

	select {
	case o.inbox <- ev:
	case <-o.done:
		return ErrEnded
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-ev.reply:
		return err
	case <-o.done:
		return ErrEnded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues a transport callback. Callbacks arriving during or after
// teardown are dropped.
func (o *Orchestrator) post(ev event) {
	ev.ctx = context.Background()
	select {
	case o.inbox <- ev:
	case <-o.closing:
	}
}

func (o *Orchestrator) run() {
	defer close(o.done)

	for ev := range o.inbox {
		err := o.handle(ev)
		if err != nil && !errors.Is(err, ErrIgnored) {
			o.log.Warn("session event failed", "event", ev.kind.String(), "err", err)
		} else if err != nil {
			o.log.Debug("session event ignored", "event", ev.kind.String(), "state", o.State().String())
		}
		if ev.reply != nil {
			ev.reply <- err
		}
		if o.State() == StateEnded {
			return
		}
	}
}

func (o *Orchestrator) handle(ev event) error {
	cur := o.State()
	next, actions, err := Transition(cur, o.role, ev.kind)

	if ev.kind == EventLocalFilter {
		o.mu.Lock()
		o.localFilter = ev.filter
		o.mu.Unlock()
	}
	if err != nil {
		return err
	}

	if ev.kind == EventLocalReady {
		if err := o.setup(ev.ctx); err != nil {
			o.mu.Lock()
			o.err = err
			o.mu.Unlock()
			return err
		}
	}

	o.setState(cur, next)

	var errs []error
	for _, a := range actions {
		if err := o.perform(ev, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) setState(from, to State) {
	if from == to {
		return
	}
	o.mu.Lock()
	o.state = to
	o.mu.Unlock()

	o.log.Info("session state changed", "from", from.String(), "to", to.String())
	if o.hooks.OnStateChange != nil {
		o.hooks.OnStateChange(from, to)
	}

	switch to {
	case StateAwaitingPeer:
		o.status(StatusRoomCreated)
	case StateNegotiating:
		if o.role == RoleJoiner {
			o.status(StatusJoining)
		}
	case StateEnded:
		if from != StateFailed && o.hooks.OnDisconnectedOrFailed != nil {
			o.hooks.OnDisconnectedOrFailed(nil)
		}
	case StateFailed:
		o.mu.Lock()
		if o.err == nil {
			o.err = ErrConnectionLost
		}
		o.mu.Unlock()
		o.status(StatusConnectionLost)
		if o.hooks.OnDisconnectedOrFailed != nil {
			o.hooks.OnDisconnectedOrFailed(ErrConnectionLost)
		}
	}
	if to.Terminal() && !from.Terminal() {
		close(o.terminal)
	}
}

func (o *Orchestrator) status(text string) {
	if o.hooks.OnStatusChange != nil {
		o.hooks.OnStatusChange(text)
	}
}

// setup acquires media and dials the transport. On failure nothing is
// left open and the state stays Idle.
func (o *Orchestrator) setup(ctx context.Context) error {
	o.status(StatusRequestingMedia)
	media, err := o.acquire(ctx)
	if err != nil {
		o.status(StatusConnectionFail)
		return transportError("acquire media", err)
	}
	if o.hooks.OnLocalMediaReady != nil {
		o.hooks.OnLocalMediaReady()
	}

	o.status(StatusSettingUp)
	transport, err := o.dial(media, TransportEvents{
		LocalCandidate: func(c signaling.ICECandidate) {
			o.post(event{kind: EventLocalCandidate, candidate: c})
		},
		StateChange: o.onConnectionState,
		RemoteMedia: func() {
			select {
			case <-o.closing:
			default:
				if o.hooks.OnRemoteMediaAvailable != nil {
					o.hooks.OnRemoteMediaAvailable()
				}
			}
		},
		RemoteFilter: func(name string) {
			o.post(event{kind: EventFilterChange, filter: name})
		},
	})
	if err != nil {
		media.Close()
		o.status(StatusConnectionFail)
		return transportError("create transport", err)
	}

	o.media = media
	o.transport = transport
	return nil
}

func (o *Orchestrator) onConnectionState(s ConnectionState) {
	o.log.Debug("connection state", "state", s.String())
	switch s {
	case ConnectionConnected:
		o.post(event{kind: EventTransportConnected})
	case ConnectionDisconnected, ConnectionFailed:
		o.post(event{kind: EventTransportFailed})
	}
}

func (o *Orchestrator) perform(ev event, a Action) error {
	ctx := ev.ctx

	switch a {
	case ActionSendJoin:
		o.mu.RLock()
		seen := o.joinSeen
		o.mu.RUnlock()
		if seen {
			return nil
		}
		notice := signaling.JoinNotice{JoinerID: o.userID, Joined: o.now().UnixMilli()}
		if err := o.send(ctx, signaling.MessageTypeJoinRoom, notice); err != nil {
			// The poll loop asks for another attempt through RetryJoin.
			o.log.Warn("join notice not delivered", "err", err)
			return nil
		}
		o.markJoinSeen()

	case ActionSendOffer:
		o.status(StatusPeerJoined)
		offer, err := o.transport.CreateOffer(ctx)
		if err != nil {
			return NewError("create offer", err)
		}
		if err := o.send(ctx, signaling.MessageTypeOffer, offer); err != nil {
			return NewError("send offer", err)
		}

	case ActionSendAnswer:
		var offer signaling.SessionDescription
		if err := decodeDescription(ev.msg, &offer); err != nil {
			return NewError("read offer", err)
		}
		o.markJoinSeen()
		o.status(StatusOfferReceived)
		answer, err := o.transport.AcceptOffer(ctx, offer)
		if err != nil {
			return NewError("accept offer", err)
		}
		o.hasRemote = true
		o.flushCandidates()
		if err := o.send(ctx, signaling.MessageTypeAnswer, answer); err != nil {
			return NewError("send answer", err)
		}
		o.status(StatusAnswerSent)

	case ActionApplyAnswer:
		var answer signaling.SessionDescription
		if err := decodeDescription(ev.msg, &answer); err != nil {
			return NewError("read answer", err)
		}
		if err := o.transport.ApplyAnswer(ctx, answer); err != nil {
			return NewError("apply answer", err)
		}
		o.hasRemote = true
		o.flushCandidates()

	case ActionAddCandidate:
		var c signaling.ICECandidate
		if err := ev.msg.Decode(&c); err != nil {
			return WrapError("read candidate", ErrBadPayload, err.Error())
		}
		if !o.hasRemote {
			o.pending = append(o.pending, c)
			return nil
		}
		if err := o.transport.AddCandidate(c); err != nil {
			return NewError("add candidate", err)
		}

	case ActionSendCandidate:
		if err := o.send(ctx, signaling.MessageTypeICECandidate, ev.candidate); err != nil {
			return NewError("send candidate", err)
		}

	case ActionSendFilter:
		if o.transport != nil && o.transport.SendFilter(ev.filter) {
			return nil
		}
		if err := o.send(ctx, signaling.MessageTypeFilterChange, signaling.FilterChange{Filter: ev.filter}); err != nil {
			return NewError("send filter", err)
		}

	case ActionUpdateRemoteFilter:
		name := ev.filter
		if name == "" {
			var fc signaling.FilterChange
			if err := ev.msg.Decode(&fc); err != nil {
				return WrapError("read filter", ErrBadPayload, err.Error())
			}
			name = fc.Filter
		}
		if f, ok := LookupFilter(name); ok {
			name = f
		}
		o.mu.Lock()
		o.remoteFilter = name
		o.mu.Unlock()
		if o.hooks.OnFilterChanged != nil {
			o.hooks.OnFilterChanged(name)
		}

	case ActionStartTimer:
		o.mu.Lock()
		o.connectedAt = o.now()
		o.mu.Unlock()
		o.status(StatusConnected)
		if o.hooks.OnConnected != nil {
			o.hooks.OnConnected()
		}

	case ActionStopTimer:
		o.mu.Lock()
		if !o.connectedAt.IsZero() && o.stoppedAt.IsZero() {
			o.stoppedAt = o.now()
		}
		o.mu.Unlock()

	case ActionTeardown:
		o.teardown()
	}
	return nil
}

func (o *Orchestrator) markJoinSeen() {
	o.mu.Lock()
	o.joinSeen = true
	o.mu.Unlock()
}

func (o *Orchestrator) send(ctx context.Context, t signaling.MessageType, data any) error {
	if err := o.signaler.Send(ctx, o.roomID, t, data); err != nil {
		return err
	}
	o.mu.Lock()
	o.sent++
	o.mu.Unlock()
	return nil
}

// flushCandidates applies the candidates that arrived before the remote
// description. Each failure is logged on its own.
func (o *Orchestrator) flushCandidates() {
	pending := o.pending
	o.pending = nil
	for _, c := range pending {
		if err := o.transport.AddCandidate(c); err != nil {
			o.log.Warn("buffered candidate rejected", "err", err)
		}
	}
}

func (o *Orchestrator) teardown() {
	close(o.closing)

	if o.transport != nil {
		if err := o.transport.Close(); err != nil {
			o.log.Debug("transport close failed", "err", err)
		}
		o.transport = nil
	}
	if o.media != nil {
		if err := o.media.Close(); err != nil {
			o.log.Debug("media close failed", "err", err)
		}
		o.media = nil
	}
	o.pending = nil
	o.status(StatusDisconnected)
}

func decodeDescription(msg signaling.Message, sd *signaling.SessionDescription) error {
	if err := msg.Decode(sd); err != nil {
		return WrapError("decode", ErrBadPayload, err.Error())
	}
	if sd.SDP == "" {
		return WrapError("decode", ErrBadPayload, "empty sdp")
	}
	if sd.Type == "" {
		sd.Type = string(msg.Type)
	}
	return nil
}
