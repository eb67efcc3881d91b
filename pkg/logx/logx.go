// Package logx wraps zerolog behind a small package-level API so components
// log the same way without carrying a logger around.
package logx

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Opts controls global logger initialization.
type Opts struct {
	Level  string // "debug", "info", "warn", "error"; default "info"
	Pretty bool   // console writer instead of JSON
}

var defaultOpts = Opts{Level: "info"}

func safe(opts ...Opts) Opts {
	if len(opts) == 0 {
		return defaultOpts
	}
	return opts[0]
}

// Init configures the process-wide logger. Safe to call more than once; the
// last call wins.
func Init(opts ...Opts) {
	o := safe(opts...)
	if o.Pretty {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		log.Logger = log.With().Timestamp().Logger()
	}
	log.Logger = log.Logger.Level(parseLevel(o.Level))
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		fallthrough
	case "info":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}
