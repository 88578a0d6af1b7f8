package session

import "errors"

var (
	// ErrNotFound is returned when no session matches.
	ErrNotFound = errors.New("session: not found")

	// ErrInvalidSession is returned for a session missing required fields.
	ErrInvalidSession = errors.New("session: invalid session")
)
