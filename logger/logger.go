// Package logger configures the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options controls where and how logs are written.
type Options struct {
	Level  string    // debug, info, warn, error, trace; empty means warn
	File   string    // append JSON logs to this file instead of Output
	Pretty bool      // human-readable console output; ignored with File
	Output io.Writer // defaults to os.Stderr
}

// Init builds the logger and installs it as zerolog's global level.
// The returned closer releases the log file, if one was opened.
func Init(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := parseLogLevel(opts.Level)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	var closer io.Closer = nopCloser{}

	switch {
	case opts.File != "":
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		out, closer = file, file
	case opts.Pretty:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.SetGlobalLevel(level)
	log := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Debug().Str("level", level.String()).Str("file", opts.File).Msg("logger initialized")
	return log, closer, nil
}

// parseLogLevel maps a level name. Unknown names are an error.
func parseLogLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning", "":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
