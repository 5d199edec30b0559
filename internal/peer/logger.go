package peer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// levelTrace sits below slog's debug level.
const levelTrace = slog.LevelDebug - 4

// LoggerFactory routes pion's internal logs into slog, tagged with the
// pion scope (ice, dtls, sctp and so on).
type LoggerFactory struct {
	Logger *slog.Logger
}

func (f LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	log := f.Logger
	if log == nil {
		log = slog.Default()
	}
	return &leveledLogger{log: log.With("pion", scope)}
}

type leveledLogger struct {
	log *slog.Logger
}

func (l *leveledLogger) logf(level slog.Level, format string, args ...any) {
	if !l.log.Enabled(context.Background(), level) {
		return
	}
	l.log.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (l *leveledLogger) Trace(msg string) { l.logf(levelTrace, "%s", msg) }
func (l *leveledLogger) Tracef(format string, args ...any) {
	l.logf(levelTrace, format, args...)
}
func (l *leveledLogger) Debug(msg string) { l.logf(slog.LevelDebug, "%s", msg) }
func (l *leveledLogger) Debugf(format string, args ...any) {
	l.logf(slog.LevelDebug, format, args...)
}
func (l *leveledLogger) Info(msg string) { l.logf(slog.LevelInfo, "%s", msg) }
func (l *leveledLogger) Infof(format string, args ...any) {
	l.logf(slog.LevelInfo, format, args...)
}
func (l *leveledLogger) Warn(msg string) { l.logf(slog.LevelWarn, "%s", msg) }
func (l *leveledLogger) Warnf(format string, args ...any) {
	l.logf(slog.LevelWarn, format, args...)
}
func (l *leveledLogger) Error(msg string) { l.logf(slog.LevelError, "%s", msg) }
func (l *leveledLogger) Errorf(format string, args ...any) {
	l.logf(slog.LevelError, format, args...)
}
