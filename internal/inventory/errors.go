package inventory

import "errors"

var (
	// ErrSessionNotFound is returned when ending a session that was never started.
	ErrSessionNotFound = errors.New("session not found")
)
