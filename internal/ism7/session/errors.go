package session

import "errors"

// Domain errors for the session package.
var (
	// ErrInvalidLoginState is returned when the gateway rejects the logon.
	ErrInvalidLoginState = errors.New("session: logon rejected")

	// ErrBundle is returned when a bundle response reports a failed batch.
	ErrBundle = errors.New("session: bundle failed")

	// ErrKeepAliveTimeout is returned when the gateway stops acknowledging keep-alives.
	ErrKeepAliveTimeout = errors.New("session: keep-alive timeout")

	// ErrNotSubscribed is returned by Write before the session is subscribed.
	ErrNotSubscribed = errors.New("session: not subscribed")

	// ErrClosed is returned by Write once the session has ended.
	ErrClosed = errors.New("session: closed")

	// ErrAlreadyStarted is returned when Run is called twice.
	ErrAlreadyStarted = errors.New("session: already started")
)
