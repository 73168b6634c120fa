package transport

import (
	"encoding/binary"
	"fmt"
)

// PayloadType identifies the content of a frame.
type PayloadType int16

// Payload types.
const (
	SystemconfigReq  PayloadType = 2
	SystemconfigResp PayloadType = 3
	TgrBundleReq     PayloadType = 4
	TgrBundleResp    PayloadType = 5
	DirectLogonReq   PayloadType = 8
	DirectLogonResp  PayloadType = 9
	KeepAlive        PayloadType = 15
)

// String returns the payload type name.
func (t PayloadType) String() string {
	switch t {
	case SystemconfigReq:
		return "SystemconfigReq"
	case SystemconfigResp:
		return "SystemconfigResp"
	case TgrBundleReq:
		return "TgrBundleReq"
	case TgrBundleResp:
		return "TgrBundleResp"
	case DirectLogonReq:
		return "DirectLogonReq"
	case DirectLogonResp:
		return "DirectLogonResp"
	case KeepAlive:
		return "KeepAlive"
	default:
		return fmt.Sprintf("PayloadType(%d)", int16(t))
	}
}

// Frame layout.
const (
	// HeaderSize is the int32 length plus the int16 payload type.
	HeaderSize = 6

	// MaxPayloadSize bounds the declared payload length.
	MaxPayloadSize = 16 << 20
)

// Frame is one decoded wire frame.
type Frame struct {
	Type    PayloadType
	Payload []byte
}

// Encode frames a payload for the wire.
//
// Parameters:
//   - t: Payload type
//   - payload: Payload bytes (XML or keep-alive sequence)
//
// Returns:
//   - []byte: Header followed by payload
func Encode(t PayloadType, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint16(buf[4:6], uint16(t))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Reader extracts frames from a byte stream delivered in arbitrary chunks.
// A trailing partial frame is kept until the rest arrives.
//
// Reader is not safe for concurrent use.
type Reader struct {
	buf []byte
}

// Feed appends received bytes.
func (r *Reader) Feed(b []byte) {
	r.buf = append(r.buf, b...)
}

// Buffered returns the number of bytes not yet consumed.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// Next returns the next complete frame.
//
// Returns:
//   - Frame: The decoded frame; its payload does not alias the buffer
//   - bool: false if no complete frame is buffered yet
//   - error: ErrFraming if the declared length is negative or too large
func (r *Reader) Next() (Frame, bool, error) {
	if len(r.buf) < HeaderSize {
		return Frame{}, false, nil
	}

	length := int32(binary.BigEndian.Uint32(r.buf[0:4]))
	if length < 0 || length > MaxPayloadSize {
		return Frame{}, false, fmt.Errorf("%w: declared length %d", ErrFraming, length)
	}

	end := HeaderSize + int(length)
	if len(r.buf) < end {
		return Frame{}, false, nil
	}

	f := Frame{
		Type:    PayloadType(int16(binary.BigEndian.Uint16(r.buf[4:6]))),
		Payload: append([]byte(nil), r.buf[HeaderSize:end]...),
	}

	rest := copy(r.buf, r.buf[end:])
	r.buf = r.buf[:rest]
	return f, true, nil
}
