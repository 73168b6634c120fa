package converter

// null backs parameters without a known encoding.
type null struct{}

func (null) TelegramIDs() []int { return nil }

func (null) CanProcess(int) bool { return false }

func (null) AddTelegram(int, byte, byte) {}

func (null) HasValue() bool { return false }

func (null) Value() (any, error) { return nil, ErrNotImplemented }

func (null) Write(string) ([]Telegram, error) { return nil, ErrNotImplemented }

func (n null) Clone() Converter { return n }
