package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BioHazard786/duobooth/internal/poller"
	"github.com/BioHazard786/duobooth/internal/signaling"
)

// Relay is the client side of the signaling relay.
type Relay interface {
	Signaler
	poller.Source
	CreateRoom(ctx context.Context) (string, error)
	JoinRoom(ctx context.Context, roomID string) (signaling.Room, error)
	UserID() string
}

// Watcher pushes wake-ups for a room.
type Watcher interface {
	Watch(ctx context.Context, roomID string) <-chan signaling.Wakeup
}

// CallConfig holds what Host and Join need.
type CallConfig struct {
	Relay Relay

	// Watcher, when set, turns relay wake-ups into immediate polls.
	Watcher Watcher

	PollInterval time.Duration
	AcquireMedia MediaFunc
	NewTransport TransportFunc
	Hooks        Hooks
	LocalFilter  string
	Logger       *slog.Logger
}

// Call is a running session: an orchestrator fed by a poll loop.
type Call struct {
	orch   *Orchestrator
	loop   *poller.Loop
	log    *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Host creates a room and waits in it for a joiner.
func Host(ctx context.Context, cfg CallConfig) (*Call, error) {
	if cfg.Relay == nil {
		return nil, errors.New("session: missing relay")
	}
	status(cfg.Hooks, "Creating room...")
	roomID, err := cfg.Relay.CreateRoom(ctx)
	if err != nil {
		status(cfg.Hooks, "Failed to create room")
		return nil, NewError("create room", err)
	}
	return start(ctx, cfg, RoleHost, roomID)
}

// Join enters an existing room and announces itself to the host.
func Join(ctx context.Context, cfg CallConfig, roomID string) (*Call, error) {
	if cfg.Relay == nil {
		return nil, errors.New("session: missing relay")
	}
	roomID = strings.ToUpper(strings.TrimSpace(roomID))
	if roomID == "" {
		return nil, WrapError("join room", signaling.ErrRejected, "empty room id")
	}

	status(cfg.Hooks, "Looking for room...")
	if _, err := cfg.Relay.JoinRoom(ctx, roomID); err != nil {
		status(cfg.Hooks, "Failed to join room")
		return nil, NewError("join room", err)
	}
	return start(ctx, cfg, RoleJoiner, roomID)
}

func start(ctx context.Context, cfg CallConfig, role Role, roomID string) (*Call, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	orch, err := New(Config{
		Role:         role,
		RoomID:       roomID,
		UserID:       cfg.Relay.UserID(),
		Signaler:     cfg.Relay,
		AcquireMedia: cfg.AcquireMedia,
		NewTransport: cfg.NewTransport,
		Hooks:        cfg.Hooks,
		Logger:       log,
		LocalFilter:  cfg.LocalFilter,
	})
	if err != nil {
		return nil, err
	}
	if err := orch.Start(ctx); err != nil {
		orch.End()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Call{orch: orch, log: log, cancel: cancel}
	c.loop = poller.New(cfg.Relay, roomID, c.dispatch,
		poller.WithInterval(cfg.PollInterval),
		poller.WithLogger(log),
		poller.WithAfterCycle(c.retryJoin),
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop.Run(runCtx)
	}()

	if cfg.Watcher != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for range cfg.Watcher.Watch(runCtx, roomID) {
				c.loop.Kick()
			}
		}()
	}

	// A failed session stops polling on its own.
	go func() {
		select {
		case <-orch.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	return c, nil
}

func (c *Call) dispatch(ctx context.Context, msg signaling.Message) {
	err := c.orch.HandleMessage(ctx, msg)
	switch {
	case err == nil, errors.Is(err, ErrIgnored), errors.Is(err, ErrEnded), ctx.Err() != nil:
	default:
		c.log.Debug("relayed message not applied", "type", msg.Type, "timestamp", msg.Timestamp, "err", err)
	}
}

func (c *Call) retryJoin(ctx context.Context) {
	err := c.orch.RetryJoin(ctx)
	switch {
	case err == nil, errors.Is(err, ErrEnded), ctx.Err() != nil:
	default:
		c.log.Debug("join notice retry failed", "err", err)
	}
}

func (c *Call) RoomID() string              { return c.orch.RoomID() }
func (c *Call) Role() Role                  { return c.orch.Role() }
func (c *Call) State() State                { return c.orch.State() }
func (c *Call) Orchestrator() *Orchestrator { return c.orch }
func (c *Call) CallDuration() time.Duration { return c.orch.CallDuration() }
func (c *Call) Done() <-chan struct{}       { return c.orch.Done() }

// SetFilter switches the local filter and tells the other participant.
func (c *Call) SetFilter(ctx context.Context, name string) error {
	return c.orch.SetLocalFilter(ctx, name)
}

// End stops polling, tears the session down and waits for background work.
func (c *Call) End() {
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
		c.orch.End()
	})
}

// Summary describes the session, including poll loop health.
func (c *Call) Summary() CallSummary {
	cycles, failures := c.loop.Stats()
	return CallSummary{
		Summary:      c.orch.Summary(),
		PollCycles:   cycles,
		PollFailures: failures,
	}
}

type CallSummary struct {
	Summary
	PollCycles   int64
	PollFailures int64
}

func status(h Hooks, text string) {
	if h.OnStatusChange != nil {
		h.OnStatusChange(text)
	}
}
