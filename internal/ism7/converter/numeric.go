package converter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Numeric kinds of the single-word family.
const (
	KindUS       = "US"       // unsigned
	KindSS       = "SS"       // signed
	KindSS10     = "SS10"     // signed / 10
	KindUS10     = "US10"     // unsigned / 10
	KindSS100    = "SS100"    // signed / 100
	KindSSPR     = "SSPR"     // signed / 255 (write: * 256)
	KindUS4      = "US4"      // unsigned / 4
	KindIntDiv60 = "IntDiv60" // unsigned / 60
	KindBit0to3  = "Bit0to3"  // low nibble of the low byte
	KindBit4to7  = "Bit4to7"  // high nibble of the low byte
)

// Divisors of the SSPR kind. Reads use 255, writes 256; keep them different.
const (
	ssprReadDivisor  = 255
	ssprWriteDivisor = 256
)

// single decodes one 16-bit register word.
type single struct {
	id   int
	kind string
	word uint16
	has  bool
}

func (c *single) TelegramIDs() []int { return []int{c.id} }

func (c *single) CanProcess(telegramID int) bool { return telegramID == c.id }

func (c *single) AddTelegram(telegramID int, low, high byte) {
	if telegramID != c.id {
		return
	}
	c.word = uint16(high)<<8 | uint16(low)
	c.has = true
}

func (c *single) HasValue() bool { return c.has }

func (c *single) Value() (any, error) {
	if !c.has {
		return nil, ErrNotReady
	}
	v, err := decodeWord(c.kind, c.word)
	if err != nil {
		return nil, fmt.Errorf("telegram %d: %w", c.id, err)
	}
	c.has = false
	return v, nil
}

func (c *single) Write(value string) ([]Telegram, error) {
	w, err := encodeWord(c.kind, value)
	if err != nil {
		return nil, fmt.Errorf("telegram %d: %w", c.id, err)
	}
	return []Telegram{telegramFromWord(c.id, w)}, nil
}

func (c *single) Clone() Converter {
	cp := *c
	return &cp
}

// decodeWord converts a register word according to its numeric kind.
func decodeWord(kind string, w uint16) (any, error) {
	switch kind {
	case KindUS:
		return int(w), nil
	case KindSS:
		return int(int16(w)), nil
	case KindSS10:
		return float64(int16(w)) / 10, nil
	case KindUS10:
		return float64(w) / 10, nil
	case KindSS100:
		return float64(int16(w)) / 100, nil
	case KindSSPR:
		return float64(int16(w)) / ssprReadDivisor, nil
	case KindUS4:
		return float64(w) / 4, nil
	case KindIntDiv60:
		return float64(w) / 60, nil
	case KindBit0to3, KindBit4to7:
		if high := w >> 8; high != 0 {
			return nil, fmt.Errorf("%w: %s with high byte 0x%02X", ErrInvariantViolation, kind, high)
		}
		if kind == KindBit0to3 {
			return int(w & 0x0F), nil
		}
		return int((w >> 4) & 0x0F), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedConversionKind, kind)
	}
}

// encodeWord converts a write value into a register word according to its
// numeric kind, inverting the decode scale.
func encodeWord(kind string, value string) (uint16, error) {
	var (
		factor float64
		signed bool
	)
	switch kind {
	case KindUS:
		factor = 1
	case KindSS:
		factor, signed = 1, true
	case KindSS10:
		factor, signed = 10, true
	case KindUS10:
		factor = 10
	case KindSS100:
		factor, signed = 100, true
	case KindSSPR:
		factor, signed = ssprWriteDivisor, true
	case KindUS4:
		factor = 4
	case KindIntDiv60:
		factor = 60
	case KindBit0to3, KindBit4to7:
		return 0, fmt.Errorf("%w: write of %s", ErrUnsupported, kind)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedConversionKind, kind)
	}

	v, err := parseNumber(value)
	if err != nil {
		return 0, err
	}

	raw := math.Round(v * factor)
	if signed {
		if raw < math.MinInt16 || raw > math.MaxInt16 {
			return 0, fmt.Errorf("%w: %q out of range for %s", ErrParse, value, kind)
		}
		return uint16(int16(raw)), nil
	}
	if raw < 0 || raw > math.MaxUint16 {
		return 0, fmt.Errorf("%w: %q out of range for %s", ErrParse, value, kind)
	}
	return uint16(raw), nil
}

// parseNumber parses a decimal write value. A comma decimal separator is accepted.
func parseNumber(value string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrParse, value)
	}
	return v, nil
}
