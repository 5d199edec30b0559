// Package poller drives the client's periodic fetch of relayed messages.
package poller

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/duobooth/internal/signaling"
)

// DefaultInterval bounds end-to-end signaling latency when no wake-up socket
// is available.
const DefaultInterval = time.Second

// Source fetches the messages of a room newer than a cursor.
type Source interface {
	Poll(ctx context.Context, roomID string, since int64) ([]signaling.Message, error)
}

// Handler consumes one polled message. It must return only once the message
// is fully processed.
type Handler func(ctx context.Context, msg signaling.Message)

// Loop polls one room on a fixed period and hands every new message to a
// Handler, in order. Cycles never overlap: the next one is scheduled only
// after the previous poll and all its dispatches have finished.
type Loop struct {
	src      Source
	roomID   string
	handle   Handler
	interval time.Duration
	log      *slog.Logger

	after  func(ctx context.Context)
	kick   chan struct{}
	cursor atomic.Int64

	cycles   atomic.Int64
	failures atomic.Int64
}

type Option func(*Loop)

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// WithAfterCycle runs fn after every cycle, failed or not, before the next
// one is scheduled.
func WithAfterCycle(fn func(ctx context.Context)) Option {
	return func(l *Loop) { l.after = fn }
}

// WithCursor starts the loop past messages already seen.
func WithCursor(since int64) Option {
	return func(l *Loop) { l.cursor.Store(since) }
}

func New(src Source, roomID string, handle Handler, opts ...Option) *Loop {
	l := &Loop{
		src:      src,
		roomID:   roomID,
		handle:   handle,
		interval: DefaultInterval,
		log:      slog.Default(),
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run polls until ctx is done. The first cycle runs immediately.
func (l *Loop) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-l.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if err := l.Cycle(ctx); err != nil && ctx.Err() == nil {
			l.log.Warn("poll cycle failed", "room_id", l.roomID, "err", err)
		}
		if l.after != nil && ctx.Err() == nil {
			l.after(ctx)
		}
		timer.Reset(l.interval)
	}
}

// Kick asks for a cycle now instead of at the next tick. Kicks made while a
// cycle is running collapse into one follow-up cycle.
func (l *Loop) Kick() {
	select {
	case l.kick <- struct{}{}:
	default:
	}
}

// Cycle performs one poll and dispatches its results. Callers other than
// Run must not invoke it concurrently with Run.
func (l *Loop) Cycle(ctx context.Context) error {
	l.cycles.Add(1)

	msgs, err := l.src.Poll(ctx, l.roomID, l.cursor.Load())
	if err != nil {
		l.failures.Add(1)
		return err
	}

	for _, msg := range msgs {
		// Results of a poll that outlived its call are dropped.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg.Timestamp > l.cursor.Load() {
			l.cursor.Store(msg.Timestamp)
		}
		l.handle(ctx, msg)
	}
	return nil
}

// Cursor is the newest message timestamp seen so far.
func (l *Loop) Cursor() int64 {
	return l.cursor.Load()
}

// Stats reports how many cycles ran and how many of them failed.
func (l *Loop) Stats() (cycles, failures int64) {
	return l.cycles.Load(), l.failures.Load()
}
