package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger. level is one of debug, info, warn,
// error (default: info).
//
// Inside Lambda (AWS_LAMBDA_FUNCTION_NAME set) records are written as raw
// JSON so CloudWatch Logs Insights can query fields; everywhere else the
// human-readable console writer is used.
func Init(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		out = os.Stdout
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, falling back to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
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
