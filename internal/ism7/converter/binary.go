package converter

// binaryFlag reports one bit of a register word as a boolean. Read-only.
type binaryFlag struct {
	id   int
	bit  uint
	on   int
	word uint16
	has  bool
}

func (c *binaryFlag) TelegramIDs() []int { return []int{c.id} }

func (c *binaryFlag) CanProcess(telegramID int) bool { return telegramID == c.id }

func (c *binaryFlag) AddTelegram(telegramID int, low, high byte) {
	if telegramID != c.id {
		return
	}
	c.word = uint16(high)<<8 | uint16(low)
	c.has = true
}

func (c *binaryFlag) HasValue() bool { return c.has }

func (c *binaryFlag) Value() (any, error) {
	if !c.has {
		return nil, ErrNotReady
	}
	c.has = false
	return int((c.word>>c.bit)&1) == c.on, nil
}

func (c *binaryFlag) Write(string) ([]Telegram, error) {
	return nil, ErrUnsupported
}

func (c *binaryFlag) Clone() Converter {
	cp := *c
	return &cp
}
