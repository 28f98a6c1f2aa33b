package logger

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/arcmirror/arcproxy/theme"
)

// StyledLogger wraps slog.Logger with theme-aware helpers for the handful
// of log lines that benefit from highlighting a provider, order path or
// byte count rather than leaving it as a bare structured attribute.
type StyledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme
}

func NewStyledLogger(l *slog.Logger, t *theme.Theme) *StyledLogger {
	return &StyledLogger{logger: l, theme: t}
}

func (sl *StyledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *StyledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *StyledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *StyledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

// InfoWithProvider highlights the provider identifier inline, matching the
// message with the structured attributes callers also pass for machine
// consumption of the same log line.
func (sl *StyledLogger) InfoWithProvider(msg, provider string, args ...any) {
	sl.logger.Info(fmt.Sprintf("%s %s", msg, sl.theme.Highlight.Sprint(provider)), args...)
}

func (sl *StyledLogger) WarnWithProvider(msg, provider string, args ...any) {
	sl.logger.Warn(fmt.Sprintf("%s %s", msg, sl.theme.Warn.Sprint(provider)), args...)
}

// InfoWithBytes renders a byte count with humanize so operators reading the
// pretty terminal log see "512 kB" rather than a raw integer.
func (sl *StyledLogger) InfoWithBytes(msg string, n uint64, args ...any) {
	sl.logger.Info(fmt.Sprintf("%s %s", msg, sl.theme.Accent.Sprint(humanize.Bytes(n))), args...)
}

// With returns a StyledLogger with the given structured attributes
// bound, mirroring slog.Logger.With for chained request/order scoping.
func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{logger: sl.logger.With(args...), theme: sl.theme}
}

func (sl *StyledLogger) Underlying() *slog.Logger {
	return sl.logger
}
