package peer

import (
	"bytes"
	"context"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/duobooth/internal/config"
	"github.com/BioHazard786/duobooth/internal/session"
	"github.com/BioHazard786/duobooth/internal/signaling"
)

func TestLoggerFactory(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	l := LoggerFactory{Logger: log}.NewLogger("ice")
	l.Debugf("hidden %d", 1)
	l.Tracef("hidden %d", 2)
	l.Warnf("pair %s failed", "a-b")
	l.Error("boom")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level messages leaked: %q", out)
	}
	if !strings.Contains(out, `msg="pair a-b failed"`) || !strings.Contains(out, "pion=ice") {
		t.Errorf("missing warn line: %q", out)
	}
	if !strings.Contains(out, "level=ERROR msg=boom") {
		t.Errorf("missing error line: %q", out)
	}
}

func TestSyncFrames(t *testing.T) {
	data, err := encodeFilter("Noir")
	if err != nil {
		t.Fatal(err)
	}
	name, ok, err := decodeFilter(data)
	if err != nil || !ok || name != "Noir" {
		t.Errorf("decodeFilter = %q, %v, %v", name, ok, err)
	}

	if _, _, err := decodeFilter([]byte{0xc1}); err == nil {
		t.Error("expected error for garbage frame")
	}
}

func TestICEConfig(t *testing.T) {
	restrictive := false
	shouldForceRelay = func() bool { return restrictive }
	t.Cleanup(func() { shouldForceRelay = defaultShouldForceRelay })

	cfg := &config.Config{STUNServers: []string{"stun:stun.example.com:3478"}}
	servers, policy := ICEConfig(cfg)
	if len(servers) != 1 || policy != webrtc.ICETransportPolicyAll {
		t.Fatalf("servers = %v, policy = %v", servers, policy)
	}

	// restrictive network without TURN cannot go relay-only
	restrictive = true
	if _, policy = ICEConfig(cfg); policy != webrtc.ICETransportPolicyAll {
		t.Errorf("policy = %v without TURN", policy)
	}

	cfg.TURNServer, cfg.TURNUser, cfg.TURNPass = "turn.example.com", "u", "p"
	servers, policy = ICEConfig(cfg)
	if policy != webrtc.ICETransportPolicyRelay {
		t.Errorf("policy = %v, want relay", policy)
	}
	if len(servers) != 2 || servers[1].Username != "u" || servers[1].Credential != "p" {
		t.Errorf("servers = %+v", servers)
	}
	if want := cfg.GetTURNServers(); !reflect.DeepEqual(servers[1].URLs, want) {
		t.Errorf("turn urls = %v, want %v", servers[1].URLs, want)
	}

	restrictive = false
	cfg.ForceRelay = true
	if _, policy = ICEConfig(cfg); policy != webrtc.ICETransportPolicyRelay {
		t.Errorf("policy = %v with ForceRelay", policy)
	}
}

func TestDescriptionConversion(t *testing.T) {
	if _, err := toPion(signaling.SessionDescription{Type: "answer", SDP: "v=0"}, webrtc.SDPTypeOffer); err == nil {
		t.Error("expected error for wrong type")
	}
	if _, err := toPion(signaling.SessionDescription{Type: "offer"}, webrtc.SDPTypeOffer); err == nil {
		t.Error("expected error for empty sdp")
	}
	d, err := toPion(signaling.SessionDescription{Type: "offer", SDP: "v=0"}, webrtc.SDPTypeOffer)
	if err != nil || d.Type != webrtc.SDPTypeOffer {
		t.Errorf("toPion = %+v, %v", d, err)
	}
	if got := fromPion(d); got.Type != "offer" || got.SDP != "v=0" {
		t.Errorf("fromPion = %+v", got)
	}
}

func TestConnectionState(t *testing.T) {
	cases := map[webrtc.PeerConnectionState]session.ConnectionState{
		webrtc.PeerConnectionStateNew:          session.ConnectionNew,
		webrtc.PeerConnectionStateConnecting:   session.ConnectionConnecting,
		webrtc.PeerConnectionStateConnected:    session.ConnectionConnected,
		webrtc.PeerConnectionStateDisconnected: session.ConnectionDisconnected,
		webrtc.PeerConnectionStateFailed:       session.ConnectionFailed,
		webrtc.PeerConnectionStateClosed:       session.ConnectionClosed,
	}
	for in, want := range cases {
		if got := connectionState(in); got != want {
			t.Errorf("connectionState(%v) = %v, want %v", in, got, want)
		}
	}
}

// endpoint collects what one transport reports. Candidates are held until
// the remote description is in place, the way the session does it.
type endpoint struct {
	mu        sync.Mutex
	transport *Transport
	other     *endpoint
	ready     bool
	pending   []signaling.ICECandidate
	connected chan struct{}
	connOnce  sync.Once
	filters   chan string
}

func newEndpoint() *endpoint {
	return &endpoint{connected: make(chan struct{}), filters: make(chan string, 4)}
}

func (e *endpoint) events() session.TransportEvents {
	return session.TransportEvents{
		LocalCandidate: func(c signaling.ICECandidate) { e.other.addCandidate(c) },
		StateChange: func(s session.ConnectionState) {
			if s == session.ConnectionConnected {
				e.connOnce.Do(func() { close(e.connected) })
			}
		},
		RemoteFilter: func(name string) { e.filters <- name },
	}
}

func (e *endpoint) addCandidate(c signaling.ICECandidate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		e.pending = append(e.pending, c)
		return
	}
	// failures surface as a connection that never comes up
	_ = e.transport.AddCandidate(c)
}

func (e *endpoint) remoteSet() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = true
	for _, c := range e.pending {
		_ = e.transport.AddCandidate(c)
	}
	e.pending = nil
}

func newVNetFactory(t *testing.T, router *vnet.Router, ip string) *Factory {
	t.Helper()
	n, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{ip}})
	if err != nil {
		t.Fatalf("new net %s: %v", ip, err)
	}
	if err := router.AddNet(n); err != nil {
		t.Fatalf("add net %s: %v", ip, err)
	}
	f, err := NewFactory(Options{Net: n})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	return f
}

func TestTransportsConnectOverVirtualNetwork(t *testing.T) {
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	hostFactory := newVNetFactory(t, router, "10.0.0.1")
	joinerFactory := newVNetFactory(t, router, "10.0.0.2")
	if err := router.Start(); err != nil {
		t.Fatalf("start router: %v", err)
	}
	t.Cleanup(func() { _ = router.Stop() })

	host, joiner := newEndpoint(), newEndpoint()
	host.other, joiner.other = joiner, host

	hostMedia, err := NewLocalMedia("", "", nil)
	if err != nil {
		t.Fatalf("NewLocalMedia: %v", err)
	}
	t.Cleanup(func() { _ = hostMedia.Close() })

	// Hold the locks so no candidate is applied before the transport is set.
	host.mu.Lock()
	joiner.mu.Lock()
	ht, err := hostFactory.NewTransport(hostMedia, host.events())
	if err != nil {
		t.Fatalf("host transport: %v", err)
	}
	jt, err := joinerFactory.NewTransport(nil, joiner.events())
	if err != nil {
		t.Fatalf("joiner transport: %v", err)
	}
	host.transport, joiner.transport = ht.(*Transport), jt.(*Transport)
	host.mu.Unlock()
	joiner.mu.Unlock()
	t.Cleanup(func() {
		_ = ht.Close()
		_ = jt.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	offer, err := ht.CreateOffer(ctx)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if offer.Type != "offer" {
		t.Fatalf("offer type = %q", offer.Type)
	}
	if ht.SendFilter("Noir") {
		t.Error("SendFilter succeeded before the channel opened")
	}

	answer, err := jt.AcceptOffer(ctx, offer)
	if err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	joiner.remoteSet()
	if err := ht.ApplyAnswer(ctx, answer); err != nil {
		t.Fatalf("ApplyAnswer: %v", err)
	}
	host.remoteSet()

	for _, e := range []*endpoint{host, joiner} {
		select {
		case <-e.connected:
		case <-ctx.Done():
			t.Fatal("peers never connected")
		}
	}

	// the sync channel opens shortly after the connection
	deadline := time.Now().Add(10 * time.Second)
	for !ht.SendFilter("Noir") {
		if time.Now().After(deadline) {
			t.Fatal("sync channel never opened")
		}
		time.Sleep(20 * time.Millisecond)
	}
	select {
	case name := <-joiner.filters:
		if name != "Noir" {
			t.Errorf("joiner got filter %q", name)
		}
	case <-ctx.Done():
		t.Fatal("filter never arrived")
	}
}
