package converter

import (
	"fmt"
	"math"
)

// numeric32 combines two register words into an unsigned 32-bit value.
// Both words must be refreshed after every Value call.
type numeric32 struct {
	low, high         int
	kind              string
	lowWord, highWord uint16
	hasLow, hasHigh   bool
}

func (c *numeric32) TelegramIDs() []int { return sortedIDs(c.low, c.high) }

func (c *numeric32) CanProcess(telegramID int) bool {
	return telegramID == c.low || telegramID == c.high
}

func (c *numeric32) AddTelegram(telegramID int, low, high byte) {
	w := uint16(high)<<8 | uint16(low)
	switch telegramID {
	case c.low:
		c.lowWord, c.hasLow = w, true
	case c.high:
		c.highWord, c.hasHigh = w, true
	}
}

func (c *numeric32) HasValue() bool { return c.hasLow && c.hasHigh }

func (c *numeric32) Value() (any, error) {
	if !c.HasValue() {
		return nil, ErrNotReady
	}
	if c.kind != KindUS {
		return nil, fmt.Errorf("%w: numeric32 %q", ErrUnsupportedConversionKind, c.kind)
	}
	v := uint32(c.highWord)<<16 | uint32(c.lowWord)
	c.lowWord, c.highWord = 0, 0
	c.hasLow, c.hasHigh = false, false
	return v, nil
}

func (c *numeric32) Write(value string) ([]Telegram, error) {
	if c.kind != KindUS {
		return nil, fmt.Errorf("%w: numeric32 %q", ErrUnsupportedConversionKind, c.kind)
	}
	v, err := parseNumber(value)
	if err != nil {
		return nil, err
	}
	raw := math.Round(v)
	if raw < 0 || raw > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %q out of range for numeric32", ErrParse, value)
	}
	u := uint32(raw)
	return []Telegram{
		telegramFromWord(c.low, uint16(u)),
		telegramFromWord(c.high, uint16(u>>16)),
	}, nil
}

func (c *numeric32) Clone() Converter {
	cp := *c
	return &cp
}
