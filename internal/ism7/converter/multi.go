package converter

import (
	"fmt"
	"maps"
	"slices"
)

// multi stores one word per declared telegram id.
type multi struct {
	ids   []int
	words map[int]uint16
}

func (m *multi) TelegramIDs() []int { return slices.Clone(m.ids) }

func (m *multi) CanProcess(telegramID int) bool {
	_, ok := slices.BinarySearch(m.ids, telegramID)
	return ok
}

func (m *multi) store(telegramID int, low, high byte) bool {
	if !m.CanProcess(telegramID) {
		return false
	}
	m.words[telegramID] = uint16(high)<<8 | uint16(low)
	return true
}

func (m *multi) clone() multi {
	return multi{ids: slices.Clone(m.ids), words: maps.Clone(m.words)}
}

func newMulti(variant string, ids []int, logger Logger) Converter {
	base := multi{ids: sortedIDs(ids...), words: make(map[int]uint16)}
	if variant == MultiSolarYield {
		return &solarYield{multi: base}
	}
	return &placeholder{multi: base, variant: variant, logger: logger}
}

// solarYield sums up to three words as Wh + kWh*1000 + MWh*1000000, in
// ascending telegram id order. A value is reported as soon as any word has
// arrived since the last read. Words are kept across reads.
type solarYield struct {
	multi
	fresh bool
}

func (s *solarYield) AddTelegram(telegramID int, low, high byte) {
	if s.store(telegramID, low, high) {
		s.fresh = true
	}
}

func (s *solarYield) HasValue() bool { return s.fresh }

func (s *solarYield) Value() (any, error) {
	if !s.fresh {
		return nil, ErrNotReady
	}
	s.fresh = false

	var (
		total  int64
		factor int64 = 1
	)
	for i, id := range s.ids {
		if i == 3 {
			break
		}
		total += int64(s.words[id]) * factor
		factor *= 1000
	}
	return total, nil
}

func (s *solarYield) Write(string) ([]Telegram, error) {
	return nil, ErrUnsupported
}

func (s *solarYield) Clone() Converter {
	return &solarYield{multi: s.clone(), fresh: s.fresh}
}

// placeholder covers the multi-word variants that have no decoder yet
// (datetime, timeprogram, text). Updates are logged and discarded.
type placeholder struct {
	multi
	variant string
	logger  Logger
}

func (p *placeholder) AddTelegram(telegramID int, low, high byte) {
	if !p.CanProcess(telegramID) {
		return
	}
	p.logger.Debug("telegram for unimplemented converter",
		"variant", p.variant,
		"telegram", telegramID,
		"low", low,
		"high", high,
	)
}

func (p *placeholder) HasValue() bool { return false }

func (p *placeholder) Value() (any, error) {
	return nil, fmt.Errorf("%w: multi-word %q", ErrNotImplemented, p.variant)
}

func (p *placeholder) Write(string) ([]Telegram, error) {
	return nil, fmt.Errorf("%w: multi-word %q", ErrNotImplemented, p.variant)
}

func (p *placeholder) Clone() Converter {
	return &placeholder{multi: p.clone(), variant: p.variant, logger: p.logger}
}
