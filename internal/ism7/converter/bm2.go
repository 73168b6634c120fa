package converter

import "fmt"

// date decodes a BM2 packed date word:
// bits 0-4 day, bits 5-8 month, bits 9-15 years since 2000. Read-only.
type date struct {
	id   int
	word uint16
	has  bool
}

func (c *date) TelegramIDs() []int { return []int{c.id} }

func (c *date) CanProcess(telegramID int) bool { return telegramID == c.id }

func (c *date) AddTelegram(telegramID int, low, high byte) {
	if telegramID != c.id {
		return
	}
	c.word = uint16(high)<<8 | uint16(low)
	c.has = true
}

func (c *date) HasValue() bool { return c.has }

func (c *date) Value() (any, error) {
	if !c.has {
		return nil, ErrNotReady
	}
	c.has = false
	day := c.word & 0x1F
	month := (c.word >> 5) & 0x0F
	year := 2000 + int(c.word>>9)
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}

func (c *date) Write(string) ([]Telegram, error) {
	return nil, ErrUnsupported
}

func (c *date) Clone() Converter {
	cp := *c
	return &cp
}

// clock decodes a BM2 time word: high byte hours, low byte minutes. Read-only.
type clock struct {
	id   int
	low  byte
	high byte
	has  bool
}

func (c *clock) TelegramIDs() []int { return []int{c.id} }

func (c *clock) CanProcess(telegramID int) bool { return telegramID == c.id }

func (c *clock) AddTelegram(telegramID int, low, high byte) {
	if telegramID != c.id {
		return
	}
	c.low, c.high = low, high
	c.has = true
}

func (c *clock) HasValue() bool { return c.has }

func (c *clock) Value() (any, error) {
	if !c.has {
		return nil, ErrNotReady
	}
	c.has = false
	return fmt.Sprintf("%02d:%02d", c.high, c.low), nil
}

func (c *clock) Write(string) ([]Telegram, error) {
	return nil, ErrUnsupported
}

func (c *clock) Clone() Converter {
	cp := *c
	return &cp
}
