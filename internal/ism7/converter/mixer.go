package converter

// Mixer states.
const (
	MixerOpened = "opened"
	MixerClosed = "closed"
	MixerIdle   = "-"
)

// mixer reports a valve drive from its open and close words. Words are kept
// across reads; a value is reported again once either word is refreshed.
type mixer struct {
	open, close              int
	openWord, closeWord      uint16
	hasOpen, hasClose, fresh bool
}

func (c *mixer) TelegramIDs() []int { return sortedIDs(c.open, c.close) }

func (c *mixer) CanProcess(telegramID int) bool {
	return telegramID == c.open || telegramID == c.close
}

func (c *mixer) AddTelegram(telegramID int, low, high byte) {
	w := uint16(high)<<8 | uint16(low)
	switch telegramID {
	case c.open:
		c.openWord, c.hasOpen = w, true
	case c.close:
		c.closeWord, c.hasClose = w, true
	default:
		return
	}
	c.fresh = true
}

func (c *mixer) HasValue() bool { return c.hasOpen && c.hasClose && c.fresh }

func (c *mixer) Value() (any, error) {
	if !c.HasValue() {
		return nil, ErrNotReady
	}
	c.fresh = false
	switch {
	case c.openWord != 0:
		return MixerOpened, nil
	case c.closeWord != 0:
		return MixerClosed, nil
	default:
		return MixerIdle, nil
	}
}

func (c *mixer) Write(string) ([]Telegram, error) {
	return nil, ErrUnsupported
}

func (c *mixer) Clone() Converter {
	cp := *c
	return &cp
}
