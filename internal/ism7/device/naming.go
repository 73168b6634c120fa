package device

import "strings"

var umlauts = strings.NewReplacer(
	" ", "_",
	"ä", "ae", "ö", "oe", "ü", "ue",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ß", "ss",
)

// MQTTName converts a display name into a topic-safe segment.
// Spaces become underscores, German umlauts are transliterated and every
// character outside [A-Za-z0-9_-] is dropped.
//
// Example:
//
//	MQTTName("Warmwasser Solltemperatur (°C)") // "Warmwasser_Solltemperatur_C"
//	MQTTName("Außentemperatur")                // "Aussentemperatur"
func MQTTName(s string) string {
	s = umlauts.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
