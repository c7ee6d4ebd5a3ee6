package session

import "errors"

var (
	// ErrNotFound means no session matches the requested identifier.
	ErrNotFound = errors.New("session not found")
	// ErrAmbiguous means a short identifier matches more than one session.
	ErrAmbiguous = errors.New("session identifier is ambiguous")
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
