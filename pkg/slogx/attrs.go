package slogx

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Error returns a slog.Attr for the provided error under the "error"
// key.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// ByteString creates a slog.Attr with the given key and a string
// rendering of the byte slice.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

// Stringer creates a slog.Attr from anything implementing fmt.Stringer.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// ExecutionID returns the standard attribute identifying an execution
// in log output.
func ExecutionID(id uuid.UUID) slog.Attr {
	return slog.String("execution_id", id.String())
}

// KeyLoggerName is the key for the logger name attribute.
const KeyLoggerName = "logger"

// LoggerName returns an attribute carrying the logger name.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}
