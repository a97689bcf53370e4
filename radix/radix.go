// Package radix packs raw bytes into a mixed radix-13 / radix-10 digit
// string laid over a text template, terminated by an end-of-sequence
// marker that the decoder recognises in its pool.
package radix

// Digits13 maps radix-13 digit values to characters. The decoder stub
// recovers the value from the character code, so the order is fixed.
const Digits13 = "nacevxzmorsuw"

const Digits10 = "0123456789"

// Marker bounds. A marker must not fit in a byte and must survive being
// rebuilt digit by digit in the smallest radix.
const (
	MinEOS = 0x100
	MaxEOS = 0xff * 10
)

var value13 [256]int8

func init() {
	for i := range value13 {
		value13[i] = -1
	}
	for d := 0; d < len(Digits13); d++ {
		value13[Digits13[d]] = int8(d)
	}
}

// Digit classifies a text character: its value and radix, or ok=false
// for characters the decoder skips.
func Digit(c byte) (value, radix int, ok bool) {
	if v := value13[c]; v >= 0 {
		return int(v), 13, true
	}
	if c >= '0' && c <= '9' {
		return int(c - '0'), 10, true
	}
	return 0, 0, false
}

// slot is the meaning of one template position.
type slot struct {
	radix   int
	literal byte
}

// Template is the character class layout of the final text: '.' holds a
// radix-13 digit, '*' a radix-10 digit, anything else is copied verbatim.
// Positions past the end are radix-13.
type Template []byte

func (t Template) at(pos int) slot {
	if pos >= len(t) || t[pos] == '.' {
		return slot{radix: 13}
	}
	if t[pos] == '*' {
		return slot{radix: 10}
	}
	return slot{literal: t[pos]}
}

func digitChar(radix, d int) byte {
	if radix == 10 {
		return Digits10[d]
	}
	return Digits13[d]
}
