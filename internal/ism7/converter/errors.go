package converter

import "errors"

// Domain errors for the converter package.
var (
	// ErrNotReady is returned by Value when not every required word has been seen.
	ErrNotReady = errors.New("converter: value not ready")

	// ErrUnsupported is returned by Write for read-only converters.
	ErrUnsupported = errors.New("converter: operation not supported")

	// ErrUnsupportedConversionKind is returned when a numeric kind is unknown.
	ErrUnsupportedConversionKind = errors.New("converter: unsupported conversion kind")

	// ErrInvariantViolation is returned when register content breaks a
	// protocol assumption (e.g. a nibble parameter with a non-zero high byte).
	ErrInvariantViolation = errors.New("converter: protocol invariant violated")

	// ErrNotImplemented is returned by placeholder converters.
	ErrNotImplemented = errors.New("converter: not implemented")

	// ErrParse is returned when a write value cannot be parsed or is out of range.
	ErrParse = errors.New("converter: cannot parse value")

	// ErrUnknownFamily is returned by New for a template with an unknown family.
	ErrUnknownFamily = errors.New("converter: unknown family")

	// ErrInvalidTemplate is returned by New for inconsistent template fields.
	ErrInvalidTemplate = errors.New("converter: invalid template")
)
