// Package transport implements ISM7 wire framing.
//
// Every frame is a big-endian int32 payload length, a big-endian int16
// payload type and the payload:
//
//	+--------+------+---------+
//	| length | type | payload |
//	| 4 B    | 2 B  | length  |
//	+--------+------+---------+
//
// All payload types except KeepAlive carry UTF-8 XML. KeepAlive carries a
// big-endian int16 sequence number.
package transport
