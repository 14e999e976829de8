package badgerkv

import (
	"fmt"
	"log/slog"
	"strings"
)

// slogLogger routes Badger's printf-style logging into slog.
// Badger's info output is chatty, so it is demoted to debug.
type slogLogger struct {
	l *slog.Logger
}

func newSlogLogger(l *slog.Logger) *slogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l.With("component", "badger")}
}

func (s *slogLogger) Errorf(format string, args ...any) {
	s.l.Error(msg(format, args))
}

func (s *slogLogger) Warningf(format string, args ...any) {
	s.l.Warn(msg(format, args))
}

func (s *slogLogger) Infof(format string, args ...any) {
	s.l.Debug(msg(format, args))
}

func (s *slogLogger) Debugf(format string, args ...any) {
	s.l.Debug(msg(format, args))
}

func msg(format string, args []any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
