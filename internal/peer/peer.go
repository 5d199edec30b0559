// Package peer implements session.Transport on top of pion/webrtc.
package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/transport/v3"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/duobooth/internal/config"
	"github.com/BioHazard786/duobooth/internal/netutil"
	"github.com/BioHazard786/duobooth/internal/session"
	"github.com/BioHazard786/duobooth/internal/signaling"
)

var errInvalidDescription = errors.New("invalid session description")

var (
	defaultShouldForceRelay = netutil.ShouldForceRelay

	// shouldForceRelay is swapped out in tests.
	shouldForceRelay = defaultShouldForceRelay
)

// Options configures a Factory.
type Options struct {
	ICEServers []webrtc.ICEServer
	Policy     webrtc.ICETransportPolicy

	// Net replaces the host network, e.g. with a vnet in tests.
	Net transport.Net

	Logger *slog.Logger
}

// ICEConfig builds ICE servers and the transport policy from client config.
// Relay-only is used when a TURN server is set and either the user asked
// for it or the host looks like it sits behind a VPN or CGNAT.
func ICEConfig(cfg *config.Config) ([]webrtc.ICEServer, webrtc.ICETransportPolicy) {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); len(stun) > 0 {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || shouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}
	return iceServers, policy
}

// NewAPI builds a pion API with the default codecs registered.
func NewAPI(net transport.Net, log *slog.Logger) (*webrtc.API, error) {
	se := webrtc.SettingEngine{}
	se.LoggerFactory = LoggerFactory{Logger: log}
	if net != nil {
		se.SetNet(net)
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	return webrtc.NewAPI(
		webrtc.WithSettingEngine(se),
		webrtc.WithMediaEngine(mediaEngine),
	), nil
}

// Factory creates peer connections sharing one API.
type Factory struct {
	api    *webrtc.API
	config webrtc.Configuration
	log    *slog.Logger
}

func NewFactory(opts Options) (*Factory, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	api, err := NewAPI(opts.Net, log)
	if err != nil {
		return nil, err
	}
	return &Factory{
		api: api,
		config: webrtc.Configuration{
			ICEServers:         opts.ICEServers,
			ICETransportPolicy: opts.Policy,
		},
		log: log,
	}, nil
}

// NewTransport satisfies session.TransportFunc.
func (f *Factory) NewTransport(m session.Media, events session.TransportEvents) (session.Transport, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	t := &Transport{pc: pc, events: events, log: f.log}
	if local, ok := m.(*LocalMedia); ok && local != nil {
		t.local = local
		for _, track := range local.tracks() {
			sender, err := pc.AddTrack(track)
			if err != nil {
				_ = pc.Close()
				return nil, fmt.Errorf("failed to add %s track: %w", track.Kind(), err)
			}
			go drainRTCP(sender)
		}
	} else {
		// Still receive the other side's camera and microphone.
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				_ = pc.Close()
				return nil, fmt.Errorf("failed to add %s transceiver: %w", kind, err)
			}
		}
	}

	t.setupHandlers()
	return t, nil
}

// Transport is one pion peer connection plus the booth sync channel.
type Transport struct {
	pc     *webrtc.PeerConnection
	events session.TransportEvents
	local  *LocalMedia
	log    *slog.Logger

	mu sync.Mutex
	dc *webrtc.DataChannel

	remoteOnce sync.Once
	packetsIn  atomic.Int64
	bytesIn    atomic.Int64
}

// Stats reports RTP received from the remote peer.
type Stats struct {
	Packets int64
	Bytes   int64
}

func (t *Transport) Stats() Stats {
	return Stats{Packets: t.packetsIn.Load(), Bytes: t.bytesIn.Load()}
}

func (t *Transport) setupHandlers() {
	// Trickle ICE: candidates are relayed as they are gathered
	t.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || t.events.LocalCandidate == nil {
			return
		}
		t.events.LocalCandidate(toSignalingCandidate(c.ToJSON()))
	})

	t.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.log.Debug("peer connection state changed", "state", state.String())
		if state == webrtc.PeerConnectionStateConnected && t.local != nil {
			t.local.Play()
		}
		if t.events.StateChange != nil {
			t.events.StateChange(connectionState(state))
		}
	})

	t.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		t.log.Debug("remote track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		t.remoteOnce.Do(func() {
			if t.events.RemoteMedia != nil {
				t.events.RemoteMedia()
			}
		})
		go t.readTrack(track)
	})

	t.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != SyncChannelLabel {
			return
		}
		t.attach(dc)
	})
}

func (t *Transport) attach(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		name, ok, err := decodeFilter(msg.Data)
		if err != nil {
			t.log.Warn("malformed sync frame", "error", err)
			return
		}
		if ok && t.events.RemoteFilter != nil {
			t.events.RemoteFilter(name)
		}
	})
}

func (t *Transport) readTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		n, _, err := track.Read(buf)
		if err != nil {
			return
		}
		t.packetsIn.Add(1)
		t.bytesIn.Add(int64(n))
	}
}

// CreateOffer creates the sync channel, then an offer, without waiting for
// ICE gathering.
func (t *Transport) CreateOffer(ctx context.Context) (signaling.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return signaling.SessionDescription{}, err
	}

	t.mu.Lock()
	hasChannel := t.dc != nil
	t.mu.Unlock()
	if !hasChannel {
		ordered := true
		dc, err := t.pc.CreateDataChannel(SyncChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
		if err != nil {
			return signaling.SessionDescription{}, fmt.Errorf("failed to create sync channel: %w", err)
		}
		t.attach(dc)
	}

	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return signaling.SessionDescription{}, err
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return signaling.SessionDescription{}, err
	}
	return fromPion(offer), nil
}

func (t *Transport) AcceptOffer(ctx context.Context, offer signaling.SessionDescription) (signaling.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return signaling.SessionDescription{}, err
	}
	remote, err := toPion(offer, webrtc.SDPTypeOffer)
	if err != nil {
		return signaling.SessionDescription{}, err
	}
	if err := t.pc.SetRemoteDescription(remote); err != nil {
		return signaling.SessionDescription{}, err
	}

	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return signaling.SessionDescription{}, err
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return signaling.SessionDescription{}, err
	}
	return fromPion(answer), nil
}

func (t *Transport) ApplyAnswer(ctx context.Context, answer signaling.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	remote, err := toPion(answer, webrtc.SDPTypeAnswer)
	if err != nil {
		return err
	}
	return t.pc.SetRemoteDescription(remote)
}

func (t *Transport) AddCandidate(c signaling.ICECandidate) error {
	return t.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	})
}

// SendFilter reports false until the sync channel is open.
func (t *Transport) SendFilter(name string) bool {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return false
	}

	data, err := encodeFilter(name)
	if err != nil {
		return false
	}
	if err := dc.Send(data); err != nil {
		t.log.Debug("sync channel send failed", "error", err)
		return false
	}
	return true
}

func (t *Transport) Close() error {
	return t.pc.Close()
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func connectionState(s webrtc.PeerConnectionState) session.ConnectionState {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return session.ConnectionConnecting
	case webrtc.PeerConnectionStateConnected:
		return session.ConnectionConnected
	case webrtc.PeerConnectionStateDisconnected:
		return session.ConnectionDisconnected
	case webrtc.PeerConnectionStateFailed:
		return session.ConnectionFailed
	case webrtc.PeerConnectionStateClosed:
		return session.ConnectionClosed
	}
	return session.ConnectionNew
}

func toSignalingCandidate(c webrtc.ICECandidateInit) signaling.ICECandidate {
	return signaling.ICECandidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func fromPion(d webrtc.SessionDescription) signaling.SessionDescription {
	return signaling.SessionDescription{Type: d.Type.String(), SDP: d.SDP}
}

func toPion(d signaling.SessionDescription, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	if webrtc.NewSDPType(d.Type) != want || d.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: want %s, got %q", errInvalidDescription, want, d.Type)
	}
	return webrtc.SessionDescription{Type: want, SDP: d.SDP}, nil
}
