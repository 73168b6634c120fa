package device

import (
	"fmt"
	"strconv"
	"strings"
)

// BusAddress identifies a sub-device on the heating bus.
// It is written as a hex byte string, e.g. "0x35".
type BusAddress uint8

// writeAddressOffset is subtracted from a read address when no explicit
// write address is configured.
const writeAddressOffset = 5

// ParseBusAddress parses a bus address string.
//
// Accepts formats:
//   - "0x35" or "0X35": hex with prefix
//   - "35": hex without prefix
//
// Parameters:
//   - s: Bus address string
//
// Returns:
//   - BusAddress: Parsed address
//   - error: ErrInvalidBusAddress if parsing fails
func ParseBusAddress(s string) (BusAddress, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(strings.TrimPrefix(h, "0x"), "0X")
	if h == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBusAddress, s)
	}
	v, err := strconv.ParseUint(h, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBusAddress, s)
	}
	return BusAddress(v), nil
}

// String returns the address in "0xNN" form.
func (a BusAddress) String() string {
	return fmt.Sprintf("0x%02X", uint8(a))
}

// DefaultWriteAddress derives the write address for a read address.
func DefaultWriteAddress(read BusAddress) (BusAddress, error) {
	if read < writeAddressOffset {
		return 0, fmt.Errorf("%w: cannot derive write address from %s", ErrInvalidBusAddress, read)
	}
	return read - writeAddressOffset, nil
}
