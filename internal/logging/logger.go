// Package logging configures the global zerolog logger and the one-shot
// startup summary event.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger from environment variables.
// GRADING_LOG_LEVEL controls the level: debug, info, warn, error (default: info).
// GRADING_LOG_FORMAT=json switches from the console writer to plain JSON
// lines, which is what CloudWatch and Cloud Logging expect.
func Init() {
	InitWith(os.Getenv("GRADING_LOG_LEVEL"), os.Getenv("GRADING_LOG_FORMAT"), os.Stderr)
}

// InitWith is Init with explicit settings and output.
func InitWith(level, format string, out io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if strings.EqualFold(format, "json") {
		zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
