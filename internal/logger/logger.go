// Package logger configures the global zerolog logger.
package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/traefik/traefik/v3/pkg/logs"
)

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Configure configures the global logger writing on the standard error.
func Configure(level, format string) error {
	logger, err := New(os.Stderr, level, format)
	if err != nil {
		return err
	}

	install(logger)

	return nil
}

// ConfigureTraefik configures the global logger of a process routing requests with Traefik:
// JSON events on the standard error, at any zerolog level. Standard library logs emitted by
// Traefik dependencies are forwarded at the debug level.
func ConfigureTraefik(level string) error {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	install(zerolog.New(os.Stderr).With().Timestamp().Logger().Level(logLevel))

	stdlog.SetFlags(stdlog.Lshortfile | stdlog.LstdFlags)
	stdlog.SetOutput(logs.NoLevel(log.Logger, zerolog.DebugLevel))

	return nil
}

// New creates a logger writing on w.
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	var logLevel zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		return zerolog.Logger{}, fmt.Errorf("unsupported log-level value %q, must be one of [debug, info, warn, error]", level)
	}

	switch strings.ToLower(format) {
	case FormatJSON:
	case FormatConsole:
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	default:
		return zerolog.Logger{}, fmt.Errorf("unsupported log-format value %q, must be one of [%s, %s]", format, FormatConsole, FormatJSON)
	}

	logCtx := zerolog.New(w).With().Timestamp()
	if logLevel <= zerolog.DebugLevel {
		logCtx = logCtx.Caller()
	}

	return logCtx.Logger().Level(logLevel), nil
}

func install(logger zerolog.Logger) {
	log.Logger = logger

	zerolog.DefaultContextLogger = &log.Logger
	zerolog.SetGlobalLevel(logger.GetLevel())
}
