package logger

import (
	"fmt"
	"log/slog"
	"os"
)

func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// FatalWithLogger logs msg through l, runs cleanup if non-nil, and exits
// the process. cleanup matters here because New's rotating file handler
// buffers writes: without running it first, a fatal record logged right
// before os.Exit can be lost instead of reaching the log file.
func FatalWithLogger(l *slog.Logger, cleanup func(), msg string, args ...any) {
	l.Error(msg, args...)
	if cleanup != nil {
		cleanup()
	}
	os.Exit(1)
}
