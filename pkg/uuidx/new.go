package uuidx

import "github.com/google/uuid"

// New generates a version 7 UUID, panicking if generation fails.
// V7 identifiers sort by creation time, which keeps log output for
// concurrently forked executions readable.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a version 7 UUID and returns it as a string.
func NewString() string {
	return New().String()
}
