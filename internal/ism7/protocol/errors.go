package protocol

import "errors"

// Domain errors for the protocol package.
var (
	// ErrUnsupportedPayloadType is returned for frames the client does not understand.
	ErrUnsupportedPayloadType = errors.New("protocol: unsupported payload type")

	// ErrMalformedPayload is returned when a payload cannot be parsed.
	ErrMalformedPayload = errors.New("protocol: malformed payload")
)
