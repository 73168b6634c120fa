package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"fmt"

	"github.com/nerrad567/ism7-bridge/internal/ism7/transport"
)

// keepAliveSize is the payload size of a keep-alive frame.
const keepAliveSize = 2

// Decode parses the payload of a server frame into a typed message.
//
// Parameters:
//   - f: Frame read from the transport
//
// Returns:
//   - Message: *LogonResponse, *SystemConfigResponse, *BundleResponse or *KeepAliveMessage
//   - error: ErrUnsupportedPayloadType for any other frame type,
//     ErrMalformedPayload if the payload cannot be parsed
func Decode(f transport.Frame) (Message, error) {
	var msg Message
	switch f.Type {
	case transport.KeepAlive:
		if len(f.Payload) != keepAliveSize {
			return nil, fmt.Errorf("%w: keep-alive of %d bytes", ErrMalformedPayload, len(f.Payload))
		}
		return &KeepAliveMessage{Sequence: int16(binary.BigEndian.Uint16(f.Payload))}, nil
	case transport.DirectLogonResp:
		msg = &LogonResponse{}
	case transport.SystemconfigResp:
		msg = &SystemConfigResponse{}
	case transport.TgrBundleResp:
		msg = &BundleResponse{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPayloadType, f.Type)
	}

	if err := xml.Unmarshal(bytes.TrimSpace(f.Payload), msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, f.Type, err)
	}
	return msg, nil
}

// EncodeLogon frames a logon request.
func EncodeLogon(password string) ([]byte, error) {
	return encodeXML(transport.DirectLogonReq, &LogonRequest{Password: password})
}

// EncodeSystemConfig frames a system-config request.
func EncodeSystemConfig(sid string) ([]byte, error) {
	return encodeXML(transport.SystemconfigReq, &SystemConfigRequest{SID: sid})
}

// EncodeBundle frames a telegram bundle request.
func EncodeBundle(req *BundleRequest) ([]byte, error) {
	return encodeXML(transport.TgrBundleReq, req)
}

// EncodeKeepAlive frames a keep-alive with the given sequence number.
func EncodeKeepAlive(seq int16) []byte {
	payload := make([]byte, keepAliveSize)
	binary.BigEndian.PutUint16(payload, uint16(seq))
	return transport.Encode(transport.KeepAlive, payload)
}

func encodeXML(t transport.PayloadType, v any) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", t, err)
	}
	payload := make([]byte, 0, len(xml.Header)+len(body))
	payload = append(payload, xml.Header...)
	payload = append(payload, body...)
	return transport.Encode(t, payload), nil
}
