package httpx

import (
	"errors"
	"fmt"
)

// ErrTooLarge is matched by errors.Is against body size-limit failures.
var ErrTooLarge = errors.New("httpx: request body exceeds configured maximum")

// ErrAlreadyRead fails a second independent read attempt on a body
// whose stream has already been committed.
var ErrAlreadyRead = errors.New("httpx: request body has already been read")

// TooLargeError reports that the request body exceeded the configured
// maximum while accumulating. It is distinguishable from ErrAlreadyRead
// so handlers can answer 413 rather than a 500-class status.
type TooLargeError struct {
	Limit int64
}

// Error implements the error interface.
func (e *TooLargeError) Error() string {
	return fmt.Sprintf("httpx: request body exceeds maximum of %d bytes", e.Limit)
}

// Unwrap makes errors.Is(err, ErrTooLarge) hold.
func (e *TooLargeError) Unwrap() error {
	return ErrTooLarge
}
