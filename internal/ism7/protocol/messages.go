package protocol

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// StateOK is the success state of logon responses, bundles and bundle items.
const StateOK = "ok"

// IsOK reports whether a state attribute means success. Case-insensitive.
func IsOK(state string) bool {
	return strings.EqualFold(strings.TrimSpace(state), StateOK)
}

// BundleType selects the semantics of a telegram bundle request.
type BundleType string

// Bundle types.
const (
	BundlePull  BundleType = "pull"
	BundlePush  BundleType = "push"
	BundleWrite BundleType = "write"
)

// Kind discriminates decoded server messages.
type Kind int

// Message kinds.
const (
	KindLogonResponse Kind = iota + 1
	KindSystemConfigResponse
	KindBundleResponse
	KindKeepAlive
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindLogonResponse:
		return "logon-response"
	case KindSystemConfigResponse:
		return "systemconfig-response"
	case KindBundleResponse:
		return "bundle-response"
	case KindKeepAlive:
		return "keep-alive"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message is a decoded server message.
type Message interface {
	Kind() Kind
}

// LogonRequest authenticates the session.
type LogonRequest struct {
	XMLName  xml.Name `xml:"direct-logon-request"`
	Password string   `xml:"passwd"`
}

// LogonResponse answers a LogonRequest.
type LogonResponse struct {
	XMLName  xml.Name `xml:"direct-logon-response"`
	State    string   `xml:"state,attr"`
	SID      string   `xml:"sid,attr"`
	ErrorMsg string   `xml:"errormsg,attr,omitempty"`
}

// Kind implements Message.
func (*LogonResponse) Kind() Kind { return KindLogonResponse }

// SystemConfigRequest asks for the bus configuration.
type SystemConfigRequest struct {
	XMLName xml.Name `xml:"read-systemconfig-request"`
	SID     string   `xml:"sid,attr"`
}

// SystemConfigResponse lists the devices on the heating bus.
type SystemConfigResponse struct {
	XMLName    xml.Name    `xml:"read-systemconfig-response"`
	BusDevices []BusDevice `xml:"busconfig>busDevices>busDevice"`
}

// Kind implements Message.
func (*SystemConfigResponse) Kind() Kind { return KindSystemConfigResponse }

// BusDevice is one device on the heating bus.
type BusDevice struct {
	// BusAddress is the read bus address, e.g. "0x08".
	BusAddress string `xml:"ba"`

	// SoftwareVersion and SoftwareRevision identify the firmware.
	SoftwareVersion  string `xml:"sv"`
	SoftwareRevision string `xml:"sr"`

	// Config is the device configuration number.
	Config string `xml:"cfg"`

	// DeviceID is the device type id.
	DeviceID string `xml:"did"`
}

// BundleRequest reads, subscribes to or writes a batch of telegrams.
type BundleRequest struct {
	XMLName      xml.Name    `xml:"tbreq"`
	BundleID     string      `xml:"bn,attr"`
	Gateway      string      `xml:"gw,attr"`
	AbortOnError bool        `xml:"ae,attr"`
	Type         BundleType  `xml:"ty,attr"`
	Reads        []ReadItem  `xml:"ird,omitempty"`
	Writes       []WriteItem `xml:"iwr,omitempty"`
}

// ReadItem requests one telegram. PushInterval (seconds) applies to push bundles.
type ReadItem struct {
	Service      string `xml:"se,attr"`
	BusAddress   string `xml:"ba,attr"`
	TelegramID   int    `xml:"in,attr"`
	PushInterval int    `xml:"pi,attr,omitempty"`
}

// WriteItem writes one telegram.
type WriteItem struct {
	Service    string `xml:"se,attr"`
	BusAddress string `xml:"ba,attr"`
	TelegramID int    `xml:"in,attr"`
	Low        string `xml:"dl,attr"`
	High       string `xml:"dh,attr"`
	Sequence   string `xml:"snr,attr,omitempty"`
}

// BundleResponse answers a BundleRequest. Push bundles produce one
// response per refresh, all carrying the request's bundle id.
type BundleResponse struct {
	XMLName   xml.Name       `xml:"tbres"`
	Timestamp string         `xml:"ts,attr"`
	Gateway   string         `xml:"gw,attr"`
	BundleID  string         `xml:"bn,attr"`
	State     string         `xml:"st,attr"`
	ErrorMsg  string         `xml:"emsg,attr,omitempty"`
	Items     []ResponseItem `xml:"irs"`
}

// Kind implements Message.
func (*BundleResponse) Kind() Kind { return KindBundleResponse }

// ResponseItem is one telegram of a bundle response.
type ResponseItem struct {
	Service    string `xml:"se,attr"`
	BusAddress string `xml:"ba,attr"`
	State      string `xml:"st,attr"`
	TelegramID int    `xml:"in,attr"`
	Low        string `xml:"dl,attr"`
	High       string `xml:"dh,attr"`
	Sequence   string `xml:"snr,attr,omitempty"`
}

// OK reports whether the item was read or written successfully.
func (i ResponseItem) OK() bool { return IsOK(i.State) }

// Bytes parses the dl/dh attributes.
func (i ResponseItem) Bytes() (low, high byte, err error) {
	if low, err = ParseHexByte(i.Low); err != nil {
		return 0, 0, fmt.Errorf("telegram %d dl: %w", i.TelegramID, err)
	}
	if high, err = ParseHexByte(i.High); err != nil {
		return 0, 0, fmt.Errorf("telegram %d dh: %w", i.TelegramID, err)
	}
	return low, high, nil
}

// ServiceNumber parses the se attribute. It returns nil when unqualified.
func (i ResponseItem) ServiceNumber() (*int, error) {
	return ParseService(i.Service)
}

// KeepAliveMessage carries a keep-alive sequence number.
type KeepAliveMessage struct {
	Sequence int16
}

// Kind implements Message.
func (*KeepAliveMessage) Kind() Kind { return KindKeepAlive }

// FormatHexByte formats b as "0xNN".
func FormatHexByte(b byte) string {
	return fmt.Sprintf("0x%02X", b)
}

// ParseHexByte parses a "0xNN" byte. The prefix is optional.
func ParseHexByte(s string) (byte, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	v, err := strconv.ParseUint(h, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: hex byte %q", ErrMalformedPayload, s)
	}
	return byte(v), nil
}

// FormatService formats a service number for the se attribute. nil yields "".
func FormatService(service *int) string {
	if service == nil {
		return ""
	}
	return fmt.Sprintf("0x%02X", *service)
}

// ParseService parses an se attribute. An empty value yields nil.
func ParseService(s string) (*int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	b, err := ParseHexByte(s)
	if err != nil {
		return nil, err
	}
	v := int(b)
	return &v, nil
}
