// Package serialize renders search results as assembler include files.
package serialize

import (
	"bytes"
	"fmt"
)

// Width values for Hex.
const (
	Auto = 0
	Byte = 1
	Word = 2
)

// Hex formats n as 0x plus the last four lowercase hex digits when n does
// not fit a byte or width is Word, else the last two. Negative values are
// taken modulo 0x10000.
func Hex(n int, width int) string {
	if n < 0 {
		n &= 0xffff
	}
	s := fmt.Sprintf("0000%x", n)
	if n >= 0x100 || width == Word {
		return "0x" + s[len(s)-4:]
	}
	return "0x" + s[len(s)-2:]
}

// Char quotes the character with code n for the assembler.
func Char(n int) string {
	return "'" + string(rune(n)) + "'"
}

// Include accumulates `KEY = value \t// comment` lines.
type Include struct {
	buf bytes.Buffer
}

func (inc *Include) Comment(format string, args ...any) {
	inc.buf.WriteString("// " + fmt.Sprintf(format, args...) + "\n")
}

// Field writes one assignment; an empty comment leaves the tail off.
func (inc *Include) Field(key, value, comment string) {
	inc.buf.WriteString(key + " = " + value)
	if comment != "" {
		inc.buf.WriteString(" \t// " + comment)
	}
	inc.buf.WriteString("\n")
}

func (inc *Include) Line(s string) {
	inc.buf.WriteString(s + "\n")
}

func (inc *Include) Blank() { inc.buf.WriteString("\n") }

func (inc *Include) Bytes() []byte { return inc.buf.Bytes() }

func (inc *Include) String() string { return inc.buf.String() }
