package testutil

import (
	"io"

	"mkb/internal/logging"
)

// SilentLogger returns a logger that discards everything, for wiring
// components under test.
func SilentLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{
		Level:  logging.ErrorLevel,
		Format: logging.HumanFormat,
		Output: io.Discard,
	})
}
