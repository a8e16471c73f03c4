// Package logging configures the package-global zerolog logger used by
// the mini-allocator for backoff retries, metadata-log growth, and extent
// reclamation events. Grounded on
// NayanaChandrika99-DocReasoner/tree_db/internal/logger/logger.go, trimmed
// to the subset this allocator-only module needs: no gRPC/DB request
// helpers, just level/output setup plus a "component" tag.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the global logger's level and formatting.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to
	// "info" on an unrecognized value.
	Level string
	// Pretty enables zerolog's console writer for local development.
	Pretty bool
	// Output defaults to os.Stderr, matching the teacher's choice of
	// keeping structured logs off stdout.
	Output io.Writer
}

// Init installs cfg as the global zerolog logger, tagging every event
// with component=mini-allocator.
func Init(cfg Config) {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("component", "mini-allocator").
		Logger()
}
