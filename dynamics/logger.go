package dynamics

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all records. Enabled reports false so callers skip
// formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger sets the logger used by the engine. By default nothing is
// logged. Pass nil to restore silence.
//
// Levels:
//   - [slog.LevelDebug]: body and joint lifecycle, islands going to sleep,
//     TOI events, contact pool growth
//   - [slog.LevelWarn]: mutations rejected because the world was locked
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current engine logger. The scene package and the CLI
// share it.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
