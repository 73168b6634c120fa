package converter

import (
	"fmt"
	"slices"
)

// Family identifies the codec implementation behind a converter template.
type Family string

// Converter families.
const (
	FamilyNumeric   Family = "numeric"
	FamilyBitField  Family = "bitfield"
	FamilyBinary    Family = "binary"
	FamilyDate      Family = "date"
	FamilyTime      Family = "time"
	FamilyNumeric32 Family = "numeric32"
	FamilyMixer     Family = "mixer"
	FamilyMulti     Family = "multi"
	FamilyNull      Family = "null"
)

// Multi-word variants (Template.Type for FamilyMulti).
const (
	MultiSolarYield  = "solar"
	MultiDateTime    = "datetime"
	MultiTimeProgram = "timeprogram"
	MultiText        = "text"
)

// Telegram is a single register update or register write.
type Telegram struct {
	// ID is the telegram number addressing the 16-bit register.
	ID int

	// Low is the low byte of the register word.
	Low byte

	// High is the high byte of the register word.
	High byte
}

// Word returns the 16-bit register value.
func (t Telegram) Word() uint16 {
	return uint16(t.High)<<8 | uint16(t.Low)
}

// String returns a human-readable representation of the telegram.
func (t Telegram) String() string {
	return fmt.Sprintf("Telegram{ID:%d, Low:0x%02X, High:0x%02X}", t.ID, t.Low, t.High)
}

// telegramFromWord splits a 16-bit word into a Telegram for id.
func telegramFromWord(id int, w uint16) Telegram {
	return Telegram{ID: id, Low: byte(w), High: byte(w >> 8)}
}

// Template describes the binary encoding of one parameter.
// Templates come from the static catalog and are never mutated.
type Template struct {
	// CTID is the converter template id. It matches the PTID it encodes.
	CTID int `yaml:"ctid"`

	// Family selects the codec.
	Family Family `yaml:"family"`

	// Type is the numeric kind (US, SS10, ...), the bit-field kind
	// (Bit0to3, Bit4to7), the numeric32 kind (US) or the multi-word variant.
	Type string `yaml:"type"`

	// Telegram is the telegram id of single-word families.
	Telegram int `yaml:"telegram"`

	// TelegramLow and TelegramHigh are the two telegram ids of numeric32.
	TelegramLow  int `yaml:"telegram_low"`
	TelegramHigh int `yaml:"telegram_high"`

	// Open and Close are the telegram ids of the mixer family.
	Open  int `yaml:"open"`
	Close int `yaml:"close"`

	// Telegrams is the ordered telegram id set of the multi family.
	Telegrams []int `yaml:"telegrams"`

	// Bit and OnValue configure the binary family. OnValue defaults to 1.
	Bit     int  `yaml:"bit"`
	OnValue *int `yaml:"on_value,omitempty"`

	// ServiceRead and ServiceWrite qualify telegrams that share an id.
	ServiceRead  *int `yaml:"service_read,omitempty"`
	ServiceWrite *int `yaml:"service_write,omitempty"`
}

// Logger is the logging interface used by placeholder converters.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Converter decodes accumulated register words into a value and encodes
// values into register writes.
type Converter interface {
	// TelegramIDs returns the telegram ids this converter consumes, ascending.
	TelegramIDs() []int

	// CanProcess reports whether telegramID belongs to this converter.
	CanProcess(telegramID int) bool

	// AddTelegram absorbs one register update.
	AddTelegram(telegramID int, low, high byte)

	// HasValue reports whether enough words have been absorbed.
	HasValue() bool

	// Value decodes the current value and resets the accumulation state.
	// It returns ErrNotReady if HasValue is false.
	Value() (any, error)

	// Write encodes value into register writes.
	Write(value string) ([]Telegram, error)

	// Clone returns an independent copy including accumulation state.
	Clone() Converter
}

// New creates a converter for the template.
//
// Numeric kinds are not validated here: an unknown kind fails the decode or
// encode call with ErrUnsupportedConversionKind, which only affects that
// operation.
//
// Parameters:
//   - t: Converter template from the catalog
//   - logger: Optional logger (may be nil)
//
// Returns:
//   - Converter: New converter with empty state
//   - error: ErrUnknownFamily if the family is not recognised,
//     ErrInvalidTemplate if the template fields are inconsistent
func New(t Template, logger Logger) (Converter, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	switch t.Family {
	case FamilyNumeric, FamilyBitField:
		return &single{id: t.Telegram, kind: t.Type}, nil
	case FamilyBinary:
		if t.Bit < 0 || t.Bit > 15 {
			return nil, fmt.Errorf("%w: binary ctid %d bit %d out of range", ErrInvalidTemplate, t.CTID, t.Bit)
		}
		on := 1
		if t.OnValue != nil {
			on = *t.OnValue
		}
		return &binaryFlag{id: t.Telegram, bit: uint(t.Bit), on: on}, nil
	case FamilyDate:
		return &date{id: t.Telegram}, nil
	case FamilyTime:
		return &clock{id: t.Telegram}, nil
	case FamilyNumeric32:
		if t.TelegramLow == t.TelegramHigh {
			return nil, fmt.Errorf("%w: numeric32 ctid %d needs two distinct telegrams", ErrInvalidTemplate, t.CTID)
		}
		return &numeric32{low: t.TelegramLow, high: t.TelegramHigh, kind: t.Type}, nil
	case FamilyMixer:
		return &mixer{open: t.Open, close: t.Close}, nil
	case FamilyMulti:
		return newMulti(t.Type, t.Telegrams, logger), nil
	case FamilyNull, "":
		return null{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (ctid %d)", ErrUnknownFamily, t.Family, t.CTID)
	}
}

// sortedIDs returns the unique telegram ids in ascending order.
func sortedIDs(ids ...int) []int {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
