package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BioHazard786/duobooth/internal/dns"
)

const (
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client talks to the signaling relay over HTTP on behalf of one
// participant.
type Client struct {
	base   *url.URL
	userID string
	http   *http.Client
	log    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which resolves hosts through
// the public-DNS fallback resolver.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUserID fixes the participant id instead of generating one.
func WithUserID(id string) Option {
	return func(c *Client) { c.userID = id }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client for the relay at serverURL, e.g.
// "https://booth.example.com".
func NewClient(serverURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", serverURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: missing host", serverURL)
	}

	c := &Client{
		base: u,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.userID == "" {
		c.userID = uuid.NewString()
	}
	if c.http == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = dns.DialContext
		c.http = &http.Client{Transport: transport, Timeout: requestTimeout}
	}
	return c, nil
}

// UserID is the participant id sent with every request.
func (c *Client) UserID() string {
	return c.userID
}

// CreateRoom opens a room hosted by this participant and returns its code.
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	env, err := c.post(ctx, "create", actionRequest{Action: "create", UserID: c.userID})
	if err != nil {
		return "", err
	}
	if env.RoomID == "" {
		return "", &RelayError{Op: "create", Details: "response carried no room id"}
	}
	return env.RoomID, nil
}

// JoinRoom checks that roomID is live and returns its current state.
func (c *Client) JoinRoom(ctx context.Context, roomID string) (Room, error) {
	env, err := c.post(ctx, "join", actionRequest{Action: "join", RoomID: roomID, UserID: c.userID})
	if err != nil {
		return Room{}, err
	}
	if env.Room == nil {
		return Room{ID: roomID}, nil
	}
	return *env.Room, nil
}

// Send relays a message of type t with payload data to the other
// participant.
func (c *Client) Send(ctx context.Context, roomID string, t MessageType, data any) error {
	_, err := c.post(ctx, "send", actionRequest{
		Action:  "send",
		RoomID:  roomID,
		UserID:  c.userID,
		Message: &outgoing{Type: t, Data: data},
	})
	return err
}

// Poll returns the messages in roomID newer than since that this
// participant did not send.
func (c *Client) Poll(ctx context.Context, roomID string, since int64) ([]Message, error) {
	q := url.Values{}
	q.Set("roomId", roomID)
	q.Set("userId", c.userID)
	q.Set("since", strconv.FormatInt(since, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/rooms", q), nil)
	if err != nil {
		return nil, &RelayError{Op: "poll", Err: err}
	}
	env, err := c.do("poll", req)
	if err != nil {
		return nil, err
	}
	return env.Messages, nil
}

// Stats fetches the relay's room and message counts.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/stats", nil), nil)
	if err != nil {
		return Stats{}, &RelayError{Op: "stats", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Stats{}, &RelayError{Op: "stats", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Stats{}, &RelayError{Op: "stats", Status: resp.StatusCode, Err: statusError(resp.StatusCode, "")}
	}
	var stats Stats
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&stats); err != nil {
		return Stats{}, &RelayError{Op: "stats", Err: err}
	}
	return stats, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) post(ctx context.Context, op string, body actionRequest) (*envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &RelayError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/rooms", nil), bytes.NewReader(raw))
	if err != nil {
		return nil, &RelayError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req)
}

func (c *Client) do(op string, req *http.Request) (*envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RelayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env)

	if resp.StatusCode != http.StatusOK || decodeErr != nil || !env.Success {
		if decodeErr != nil && resp.StatusCode == http.StatusOK {
			return nil, &RelayError{Op: op, Status: resp.StatusCode, Err: decodeErr}
		}
		err := &RelayError{Op: op, Status: resp.StatusCode, Err: statusError(resp.StatusCode, env.Error), Details: env.Error}
		c.log.Debug("relay request failed", "op", op, "status", resp.StatusCode, "err", env.Error)
		return nil, err
	}
	return &env, nil
}

// statusError maps a failed response onto a sentinel. Older relays answer
// every failure with 200 and only an error string, so the text is checked
// too.
func statusError(status int, text string) error {
	switch {
	case status == http.StatusNotFound || strings.EqualFold(text, ErrRoomNotFound.Error()):
		return ErrRoomNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusBadRequest:
		return ErrRejected
	case status >= 500:
		return errors.New(http.StatusText(status))
	case text != "":
		return ErrRejected
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}
