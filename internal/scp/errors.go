package scp

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyStore means there is no captured track to serialize.
	ErrEmptyStore = errors.New("scp: no tracks captured")
	// ErrTrackOutOfRange means a track index does not fit the configured geometry.
	ErrTrackOutOfRange = errors.New("scp: track outside geometry")
	// ErrMalformed is wrapped by every Parse failure.
	ErrMalformed = errors.New("scp: malformed image")
)

// OverflowError reports a value that does not fit its serialized field.
type OverflowError struct {
	Field string
	Track int
	Value uint64
	Max   uint64
}

func (e *OverflowError) Error() string {
	if e.Track < 0 {
		return fmt.Sprintf("scp: %s value %d exceeds field maximum %d", e.Field, e.Value, e.Max)
	}
	return fmt.Sprintf("scp: track %d: %s value %d exceeds field maximum %d", e.Track, e.Field, e.Value, e.Max)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
