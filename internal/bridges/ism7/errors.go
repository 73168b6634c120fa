package ism7

import "errors"

// Domain errors for the bridge.
var (
	// ErrNoSession is returned for commands received while no gateway
	// session is running.
	ErrNoSession = errors.New("ism7 bridge: no active gateway session")

	// ErrReconnectExhausted is returned by Run when the configured number
	// of consecutive failed connection attempts has been reached.
	ErrReconnectExhausted = errors.New("ism7 bridge: reconnect attempts exhausted")

	// ErrInvalidCommand is returned when a command payload cannot be parsed.
	ErrInvalidCommand = errors.New("ism7 bridge: invalid command payload")

	// ErrTLSConfig is returned when the gateway TLS material cannot be loaded.
	ErrTLSConfig = errors.New("ism7 bridge: invalid TLS configuration")
)
