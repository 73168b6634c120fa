// Package converter implements the binary codecs that turn ISM7 register
// words ("telegrams") into typed values and back.
//
// Every parameter exposed by the gateway is backed by one converter. A
// converter declares the telegram ids it consumes, absorbs register updates
// as they arrive and reports a value once it has seen every word it needs:
//
//	c, err := converter.New(tmpl, logger)
//	if err != nil {
//	    return err
//	}
//	c.AddTelegram(12, 0xD7, 0x00)
//	if c.HasValue() {
//	    v, err := c.Value() // 21.5 for an SS10 converter
//	}
//
// # Families
//
// The set of families is closed. Each [Family] has one implementation and
// [New] is the only place that maps a template to it:
//
//   - numeric: single 16-bit word (US, SS, SS10, US10, SS100, SSPR, US4, IntDiv60)
//   - bitfield: nibble of the low byte (Bit0to3, Bit4to7)
//   - binary: one bit of the word compared against an "on" value
//   - date, time: BM2 packed date and hour/minute pair
//   - numeric32: two words combined into an unsigned 32-bit value
//   - mixer: open/close word pair reported as "opened", "closed" or "-"
//   - multi: ordered word set (solar yield; datetime, timeprogram and text are placeholders)
//   - null: no telegrams, never has a value
//
// # State
//
// Converters hold accumulation state and are not safe for concurrent use.
// The device registry clones one converter per running parameter and
// serialises access to it.
package converter
