package logger

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx/fxevent"
)

// fxLogger routes fx lifecycle events through zerolog so DI wiring shows up
// in the same stream as everything else.
type fxLogger struct {
	l zerolog.Logger
}

var _ io.Writer = (*fxLogger)(nil)

func Fx() fxevent.Logger {
	w := fxLogger{
		l: log.Logger.With().Str("evt.name", "fx.init").Logger(),
	}
	return &fxevent.ConsoleLogger{W: w}
}

func (l fxLogger) Write(p []byte) (n int, err error) {
	n = len(p)
	if n > 0 && p[n-1] == '\n' {
		// Trim trailing newline added by the console logger.
		p = p[0 : n-1]
	}
	l.l.Info().Msg(string(p))
	return
}
