package gudavol

import (
	"log/slog"
	"sync/atomic"
)

var loggerPtr atomic.Pointer[slog.Logger]

// SetLogger sets the package logger used by contexts created without
// WithLogger. Passing nil restores the silent default.
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(l)
}

var discard = slog.New(slog.DiscardHandler)

func slogger() *slog.Logger {
	if l := loggerPtr.Load(); l != nil {
		return l
	}
	return discard
}
