package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type ServerConfig struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Rooms     RoomsConfig     `koanf:"rooms"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Log       LogConfig       `koanf:"log"`
}

type HTTPConfig struct {
	Host           string   `koanf:"host"`
	Port           uint16   `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type RoomsConfig struct {
	TTL           time.Duration `koanf:"ttl"`
	MaxMessages   int           `koanf:"max_messages"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type RateLimitConfig struct {
	PerSecond float64 `koanf:"per_second"`
	Burst     int     `koanf:"burst"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Addr is the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// LoadServer reads server configuration. A .env file in the working
// directory is loaded into the environment first; then the YAML file at
// path, if any, defaults for anything it left unset, and finally
// environment overrides.
func LoadServer(path string) (*ServerConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("DUOBOOTH_CONFIG")
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	if err := applyEnvOverrides(k); err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.allowed_origins", []string{"*"})

	setDefault(k, "rooms.ttl", time.Hour)
	setDefault(k, "rooms.max_messages", 50)
	setDefault(k, "rooms.sweep_interval", time.Minute)

	setDefault(k, "rate_limit.per_second", 20)
	setDefault(k, "rate_limit.burst", 40)

	setDefault(k, "log.level", "info")
	setDefault(k, "log.format", "json")
}

func applyEnvOverrides(k *koanf.Koanf) error {
	if host := os.Getenv("HTTP_HOST"); host != "" {
		k.Set("http.host", host)
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid HTTP_PORT %q", v)
		}
		k.Set("http.port", port)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		k.Set("http.allowed_origins", splitList(v))
	}

	for key, env := range map[string]string{
		"rooms.ttl":            "ROOM_TTL",
		"rooms.sweep_interval": "ROOM_SWEEP_INTERVAL",
	} {
		if v := os.Getenv(env); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", env, v, err)
			}
			k.Set(key, d)
		}
	}

	if v := os.Getenv("ROOM_MAX_MESSAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ROOM_MAX_MESSAGES %q", v)
		}
		k.Set("rooms.max_messages", n)
	}
	if v := os.Getenv("RATE_LIMIT_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_PER_SECOND %q", v)
		}
		k.Set("rate_limit.per_second", f)
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_BURST %q", v)
		}
		k.Set("rate_limit.burst", n)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		k.Set("log.level", strings.ToLower(v))
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		k.Set("log.format", strings.ToLower(v))
	}
	return nil
}

func (c *ServerConfig) validate() error {
	switch {
	case c.Rooms.TTL <= 0:
		return errors.New("rooms.ttl must be positive")
	case c.Rooms.MaxMessages <= 0:
		return errors.New("rooms.max_messages must be positive")
	case c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0:
		return errors.New("rate_limit values must not be negative")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
