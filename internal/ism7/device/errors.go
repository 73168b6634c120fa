package device

import "errors"

// Domain errors for the device package.
var (
	// ErrInvalidBusAddress is returned when a bus address string cannot be parsed.
	ErrInvalidBusAddress = errors.New("device: invalid bus address")

	// ErrUnknownTemplate is returned when a configured device template is
	// not in the catalog.
	ErrUnknownTemplate = errors.New("device: unknown device template")

	// ErrInvalidConfig is returned when device configuration is inconsistent.
	ErrInvalidConfig = errors.New("device: invalid configuration")
)
