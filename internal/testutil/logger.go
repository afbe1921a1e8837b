// Package testutil provides utilities for testing
package testutil

import (
	"github.com/newsfold/newsfold/internal/logging"
)

// NullLogger returns a logger that discards most output
func NullLogger() *logging.Logger {
	return logging.New(logging.LevelError)
}
