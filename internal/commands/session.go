package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/BioHazard786/duobooth/internal/config"
	"github.com/BioHazard786/duobooth/internal/peer"
	"github.com/BioHazard786/duobooth/internal/session"
	"github.com/BioHazard786/duobooth/internal/signaling"
	"github.com/BioHazard786/duobooth/internal/ui"
)

// callOptions are the per-call flags shared by host and join
type callOptions struct {
	filter string
	video  string
	audio  string
}

func (o *callOptions) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.filter, "filter", session.DefaultFilter, "Starting filter")
	fs.StringVar(&o.video, "video", "", "IVF (VP8) file to stream as your camera")
	fs.StringVar(&o.audio, "audio", "", "Ogg (Opus) file to stream as your microphone")
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, session.NewError("load config", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

func loadClientConfig(call callOptions) (*config.Config, error) {
	return LoadConfig(config.Options{
		Server:       flagServer,
		STUNServer:   flagSTUN,
		TURNServer:   flagTURN,
		TURNUser:     flagTURNUser,
		TURNPass:     flagTURNPass,
		ForceRelay:   flagRelay,
		PollInterval: flagPollInterval,
		NoWatch:      flagNoWatch,
		LogFile:      flagLogFile,
		VideoFile:    call.video,
		AudioFile:    call.audio,
	})
}

// newCallConfig builds the relay client and pion transport factory for a call.
func newCallConfig(cfg *config.Config, call callOptions, hooks session.Hooks) (session.CallConfig, error) {
	log := slog.Default()

	client, err := signaling.NewClient(cfg.ServerURL, signaling.WithLogger(log))
	if err != nil {
		return session.CallConfig{}, session.NewError("create relay client", err)
	}

	iceServers, policy := peer.ICEConfig(cfg)
	factory, err := peer.NewFactory(peer.Options{
		ICEServers: iceServers,
		Policy:     policy,
		Logger:     log,
	})
	if err != nil {
		return session.CallConfig{}, session.NewError("create webrtc api", err)
	}

	cc := session.CallConfig{
		Relay:        client,
		PollInterval: cfg.PollInterval,
		AcquireMedia: peer.Acquire(cfg.VideoFile, cfg.AudioFile, log),
		NewTransport: factory.NewTransport,
		Hooks:        hooks,
		LocalFilter:  call.filter,
		Logger:       log,
	}
	if cfg.Watch {
		cc.Watcher = client
	}
	return cc, nil
}

// runCall starts one side of a call, shows the call screen until the call
// ends, then prints the summary.
func runCall(ctx context.Context, role session.Role, roomID string, call callOptions) error {
	if _, ok := session.LookupFilter(call.filter); !ok {
		return session.WrapError("parse flags", session.ErrUnknownFilter, call.filter)
	}

	cfg, err := loadClientConfig(call)
	if err != nil {
		return err
	}

	screen := ui.NewCallUI(role, call.filter)
	cc, err := newCallConfig(cfg, call, screen.Hooks())
	if err != nil {
		return err
	}

	var c *session.Call
	if role == session.RoleHost {
		stop := ui.RunConnectionSpinner("Creating room...")
		c, err = session.Host(ctx, cc)
		stop()
		if err != nil {
			return err
		}
		fmt.Println(ui.NewRoomInfo(c.RoomID(), filepath.Base(os.Args[0])).View())
	} else {
		stop := ui.RunConnectionSpinner("Looking for room...")
		c, err = session.Join(ctx, cc, roomID)
		stop()
		if err != nil {
			if errors.Is(err, signaling.ErrRoomNotFound) {
				return fmt.Errorf("room %s not found; check the code with your friend", roomID)
			}
			return err
		}
	}
	defer c.End()

	screen.Bind(c.RoomID(), c)

	// Ctrl+C is a key inside the call screen; a signal or a failed call
	// still has to end it.
	go func() {
		select {
		case <-ctx.Done():
			c.End()
		case <-c.Done():
		}
	}()

	runErr := screen.Run()
	c.End()

	fmt.Println()
	ui.RenderCallSummary(c.Summary())
	if runErr != nil && !errors.Is(runErr, session.ErrEnded) {
		return runErr
	}
	return nil
}
