// Package logging provides a zerolog wrapper with CLI-friendly defaults.
// Console output goes to stderr so it never mixes with command output;
// an optional log file receives the same events as JSON.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the process-wide logger.
type Options struct {
	Level   string
	LogFile string // optional JSON tee, appended
	NoColor bool
}

var (
	once sync.Once
	root zerolog.Logger
)

// Logger is the project-wide logging type.
type Logger = zerolog.Logger

// Init configures the root logger. Safe to call more than once; only the
// first call takes effect.
func Init(opt Options) {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339

		console := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
			NoColor:    opt.NoColor,
		}

		var w io.Writer = console
		if opt.LogFile != "" {
			f, err := os.OpenFile(opt.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
			if err == nil {
				w = zerolog.MultiLevelWriter(console, f)
			}
		}

		root = zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp().Logger()
	})
}

// Get returns the process-wide root logger.
func Get() *Logger {
	Init(Options{})
	return &root
}

// Named returns a child logger tagged with a component field.
func Named(component string) *Logger {
	ll := Get().With().Str("component", component).Logger()
	return &ll
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
