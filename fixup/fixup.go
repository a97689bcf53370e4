// Package fixup finds the words of a stage image that cannot be stored as
// safe text and must instead be patched in at run time.
package fixup

import (
	"fmt"

	"smile/fault"
	"smile/safety"
)

// CRLF is the line break word. Lines of the encoded text end with it
// anyway, so it never needs patching.
const CRLF = 0x0a0d

// Patched is what an unsafe high byte is assumed to hold once its word
// has been claimed by a fixup.
const Patched = 'n'

// Want is the number of fixups the stage-1 patch code provides.
const Want = 3

type Record struct {
	Addr int
	Word uint16
}

func (r Record) String() string {
	return fmt.Sprintf("%#04x: %#04x", r.Addr, r.Word)
}

// Scan walks data, whose first byte lives at base, and returns a fixup for
// every unsafe byte. Two adjacent unsafe bytes share one word. An unsafe
// byte just before the two-byte trailer is covered by the word ending at
// it, since the trailer must stay intact.
func Scan(tab *safety.Table, data []byte, base int) []Record {
	img := append([]byte(nil), data...)
	n := len(img)
	var out []Record
	for i := 0; i < n; i++ {
		if tab.Safe8(int(img[i])) {
			continue
		}
		addr := base + i
		switch {
		case i+1 < n && !tab.Safe8(int(img[i+1])):
			out = append(out, Record{addr, word(img, i)})
			img[i+1] = Patched
		case i == n-3:
			out = append(out, Record{addr - 1, word(img, i-1)})
		default:
			out = append(out, Record{addr, word(img, i)})
		}
	}
	return out
}

// word reads little-endian at i; bytes past the image read as zero.
func word(img []byte, i int) uint16 {
	var lo, hi byte
	if i >= 0 && i < len(img) {
		lo = img[i]
	}
	if i+1 >= 0 && i+1 < len(img) {
		hi = img[i+1]
	}
	return uint16(lo) | uint16(hi)<<8
}

// DropLineBreaks removes CRLF words, preserving order.
func DropLineBreaks(recs []Record) []Record {
	out := recs[:0:0]
	for _, r := range recs {
		if r.Word != CRLF {
			out = append(out, r)
		}
	}
	return out
}

// Locate scans, drops line breaks and enforces exactly Want fixups.
func Locate(tab *safety.Table, data []byte, base int) ([3]Record, error) {
	var fx [3]Record
	recs := DropLineBreaks(Scan(tab, data, base))
	if len(recs) != Want {
		err := fault.Mismatch("fixup", "found %d fixups, supporting only %d", len(recs), Want)
		for _, r := range recs {
			err.WithDetail(r.String())
		}
		return fx, err
	}
	copy(fx[:], recs)
	return fx, nil
}
