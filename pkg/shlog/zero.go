package shlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var Zero = NewZeroLogger("", "info", true)

// NewZeroLogger builds the router-wide logger. An empty filepath means stdout.
// Pretty output uses the zerolog console writer, otherwise plain JSON lines are written.
func NewZeroLogger(filepath string, level string, pretty bool) *zerolog.Logger {
	writer, err := newWriter(filepath)
	if err != nil {
		writer = os.Stdout
	}

	var output io.Writer = writer
	if pretty {
		output = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(output).With().Timestamp().Logger().Level(parseLevel(level))

	return &logger
}

// ReloadLogger redirects the global logger to the given file, keeping its level.
func ReloadLogger(filepath string, pretty bool) {
	if filepath == "" {
		return
	}
	Zero = NewZeroLogger(filepath, Zero.GetLevel().String(), pretty)
}

func UpdateZeroLogLevel(logLevel string) error {
	level := parseLevel(logLevel)
	zeroLogger := Zero.With().Logger().Level(level)
	Zero = &zeroLogger
	return nil
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warning", "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
