package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/arcmirror/arcproxy/internal/util"
	"github.com/arcmirror/arcproxy/theme"
)

// Config controls how New builds the application's slog.Logger.
type Config struct {
	Level      string
	LogDir     string
	Theme      string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	FileOutput bool
	PrettyLogs bool
}

const (
	DefaultLogFileName = "arcproxy.log"

	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarn    = "warn"
	LevelWarning = "warning"
	LevelError   = "error"
)

// New builds a slog.Logger from cfg. The returned cleanup func must be
// called before process exit to flush and close the rotating log file.
func New(cfg *Config) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Level)
	appTheme := theme.GetTheme(cfg.Theme)

	var cleanupFuncs []func()
	var handlers []slog.Handler

	if cfg.PrettyLogs {
		handlers = append(handlers, terminalHandler(level, appTheme))
	} else {
		handlers = append(handlers, jsonHandler(os.Stdout, level))
	}

	if cfg.FileOutput {
		fileHandler, cleanup, err := fileOutputHandler(cfg, level)
		if err != nil {
			return nil, nil, err
		}
		cleanupFuncs = append(cleanupFuncs, cleanup)
		handlers = append(handlers, fileHandler)
	}

	var base slog.Handler
	if len(handlers) == 1 {
		base = handlers[0]
	} else {
		base = &fanoutHandler{handlers: handlers}
	}

	cleanup := func() {
		for _, fn := range cleanupFuncs {
			fn()
		}
	}
	return slog.New(base), cleanup, nil
}

// NewWithTheme builds both the raw slog.Logger and a StyledLogger wrapper
// sharing the same handlers, so callers can pick whichever surface fits.
func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	base, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return base, NewStyledLogger(base, theme.GetTheme(cfg.Theme)), cleanup, nil
}

func terminalHandler(level slog.Level, appTheme *theme.Theme) slog.Handler {
	if !util.ShouldUseColors() {
		return jsonHandler(os.Stdout, level)
	}

	plogger := pterm.DefaultLogger.
		WithLevel(toPtermLevel(level)).
		WithWriter(os.Stdout).
		WithFormatter(pterm.LogFormatterColorful).
		WithKeyStyles(map[string]pterm.Style{
			"level": *appTheme.Info,
			"msg":   *appTheme.Info,
			"time":  *appTheme.Muted,
		})
	return pterm.NewSlogHandler(plogger)
}

func jsonHandler(w *os.File, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: sanitiseAttr,
	})
}

func fileOutputHandler(cfg *Config, level slog.Level) (slog.Handler, func(), error) {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory %s: %w", cfg.LogDir, err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, DefaultLogFileName),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}

	handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: sanitiseAttr,
	})

	return handler, func() { _ = rotator.Close() }, nil
}

// sanitiseAttr rewrites the time key and strips ANSI escapes that would
// otherwise leak into JSON-formatted log sinks (file, non-tty stdout).
func sanitiseAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{Key: "timestamp", Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05"))}
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); strings.ContainsRune(s, '\x1b') {
			return slog.Attr{Key: a.Key, Value: slog.StringValue(stripAnsiCodes(s))}
		}
	}
	return a
}

// fanoutHandler dispatches every record to all of its handlers, skipping
// a handler that wouldn't have emitted the record anyway.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn, LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func toPtermLevel(level slog.Level) pterm.LogLevel {
	switch level {
	case slog.LevelDebug:
		return pterm.LogLevelTrace
	case slog.LevelWarn:
		return pterm.LogLevelWarn
	case slog.LevelError:
		return pterm.LogLevelError
	default:
		return pterm.LogLevelInfo
	}
}
