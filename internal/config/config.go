package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Default client configuration values
const (
	DefaultServer       = "http://localhost:8080"
	DefaultPollInterval = time.Second
)

// DefaultSTUNServers are the public STUN servers used when none are set.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

// Config holds client configuration
type Config struct {
	// ServerURL is the signaling relay base URL
	ServerURL string

	// ICE servers for WebRTC
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string

	// ForceRelay restricts ICE to TURN candidates when a TURN server is set
	ForceRelay bool

	PollInterval time.Duration

	// Watch enables WebSocket wake-ups on top of polling
	Watch bool

	LogFile string

	// Optional media files published instead of an empty capture
	VideoFile string
	AudioFile string
}

// Options for loading config with CLI flag overrides
type Options struct {
	Server       string
	STUNServer   string
	TURNServer   string
	TURNUser     string
	TURNPass     string
	ForceRelay   bool
	PollInterval time.Duration
	NoWatch      bool
	LogFile      string
	VideoFile    string
	AudioFile    string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	server := firstNonEmpty(opts.Server, os.Getenv("DUOBOOTH_SERVER"), DefaultServer)
	u, err := url.Parse(server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: want http(s)://host[:port]", server)
	}

	// STUN servers: CLI flag > env > default, comma separated
	stun := DefaultSTUNServers
	if list := splitList(firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"))); len(list) > 0 {
		stun = list
	}

	// Poll interval: CLI flag > env > default
	interval := opts.PollInterval
	if interval <= 0 {
		if v := os.Getenv("POLL_INTERVAL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("invalid POLL_INTERVAL %q", v)
			}
			interval = d
		}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Config{
		ServerURL:    strings.TrimRight(server, "/"),
		STUNServers:  stun,
		TURNServer:   firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:     firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:     firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
		ForceRelay:   opts.ForceRelay,
		PollInterval: interval,
		Watch:        !opts.NoWatch,
		LogFile:      firstNonEmpty(opts.LogFile, os.Getenv("LOG_FILE")),
		VideoFile:    opts.VideoFile,
		AudioFile:    opts.AudioFile,
	}, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return c.STUNServers
}

// GetTURNServers returns TURN server URLs if configured. A bare host expands
// to the usual UDP, TCP and TLS endpoints; full URLs are used as given.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	if strings.Contains(c.TURNServer, "?") || strings.Count(c.TURNServer, ":") > 1 {
		return []string{c.TURNServer}
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turns:"), "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
