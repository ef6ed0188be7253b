package freeaccess

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the package-level structured logger used to trace phase
// transitions (init_reclamation, update_marks, clear_alloc_pool, trace,
// sweep). It defaults to a quiet, human-readable console writer at info
// level; callers embedding this substrate in a larger service should
// replace it with their own configured logger via SetLogger.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
	With().Timestamp().Logger().
	Level(zerolog.InfoLevel)

// SetLogger replaces the package-level logger.
func SetLogger(l zerolog.Logger) {
	Logger = l
}
