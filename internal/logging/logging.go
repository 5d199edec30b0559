package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Init installs the default CLI logger. Output goes to stderr, or to a
// rotated file when logFile is set so the call screen stays clean.
func Init(logFile string) {
	var w io.Writer = os.Stderr
	if logFile != "" {
		w = FileWriter(logFile)
	}

	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: LevelFromEnv(slog.LevelError), // default: production only shows errors
		}),
	)
	slog.SetDefault(logger)
}

// LevelFromEnv reads LOG_LEVEL, falling back to def when unset or unknown.
func LevelFromEnv(def slog.Level) slog.Level {
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		return ParseLevel(l, def)
	}
	return def
}

func ParseLevel(l string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}

// FileWriter returns a size-rotated log file.
func FileWriter(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	}
}

// NewServer builds the relay's logger. format is "json" or "text".
func NewServer(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level, slog.LevelInfo)}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
