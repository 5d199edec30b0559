package signaling

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/duobooth/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 70 * time.Second
	maxMessageSize = 4 * 1024

	minRedial = time.Second
	maxRedial = 30 * time.Second
)

// Watch subscribes to wake-ups for roomID. The returned channel yields a
// value whenever the relay reports a new message from the other participant
// and is closed when ctx is done or the room is gone.
//
// Wake-ups coalesce: a slow reader sees at most one pending value. The
// connection is re-established with backoff when it drops, so callers never
// have to manage it.
func (c *Client) Watch(ctx context.Context, roomID string) <-chan Wakeup {
	out := make(chan Wakeup, 1)

	go func() {
		defer close(out)

		delay := minRedial
		for {
			err := c.watchOnce(ctx, roomID, out, func() { delay = minRedial })
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrRoomNotFound) {
				c.log.Debug("wake-up watch stopped", "room_id", roomID, "err", err)
				return
			}
			c.log.Debug("wake-up socket lost, redialing", "room_id", roomID, "err", err, "in", delay)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, maxRedial)
		}
	}()

	return out
}

func (c *Client) watchOnce(ctx context.Context, roomID string, out chan Wakeup, connected func()) error {
	conn, err := c.dialWatch(ctx, roomID)
	if err != nil {
		return err
	}
	connected()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		conn.Close()
	})
	defer func() {
		stop()
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		var w Wakeup
		if err := conn.ReadJSON(&w); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case out <- w:
		default:
			// One pending wake-up already forces a poll.
		}
	}
}

func (c *Client) dialWatch(ctx context.Context, roomID string) (*websocket.Conn, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := url.Values{}
	q.Set("roomId", roomID)
	q.Set("userId", c.userID)
	u.Path = u.Path + "/ws"
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		NetDialContext:   dns.DialContext,
		HandshakeTimeout: requestTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &RelayError{Op: "watch", Status: resp.StatusCode, Err: statusError(resp.StatusCode, "")}
		}
		return nil, &RelayError{Op: "watch", Err: err}
	}
	return conn, nil
}
