// Package safety scores byte and word values by how well they survive
// as plain text. A score of 0 means the value must never appear in an
// encoded artifact; 1 is the most desirable tier, 3 the least.
package safety

import (
	"fmt"

	"smile/fault"
)

// Default tiers. Alphabet is their concatenation.
const (
	Tier1    = "acemnorsuvwxz"
	Tier2    = "bdfghijklpqty"
	Tier3    = "0123456789"
	Alphabet = Tier1 + Tier2 + Tier3
)

// Digit sets used by the string codecs. Radix13 is ordered by digit
// value for the codec search; radix.Digits13 carries the decode order.
const (
	Radix13 = "acemnorsuvwxz"
	Radix10 = "0123456789"
)

type Table struct {
	alphabet string
	safe8    [256]uint8
	safe16   [65536]uint8
}

var defaultTable *Table

func init() {
	t, err := New(Tier1, Tier2, Tier3)
	if err != nil {
		panic(fmt.Sprintf("safety: default alphabet: %v", err))
	}
	defaultTable = t
}

// Default returns the shared table for Alphabet. It is never mutated.
func Default() *Table { return defaultTable }

// New builds the byte and word tables from three groups of distinct
// bytes scoring 1, 2 and 3. A group may be empty but not all of them.
func New(tier1, tier2, tier3 string) (*Table, error) {
	t := &Table{alphabet: tier1 + tier2 + tier3}
	if t.alphabet == "" {
		return nil, fault.Range("safety", "empty alphabet")
	}
	for score, group := range []string{tier1, tier2, tier3} {
		for i := 0; i < len(group); i++ {
			c := group[i]
			if t.safe8[c] != 0 {
				return nil, fault.Range("safety", "duplicate character %q in alphabet", c)
			}
			t.safe8[c] = uint8(score + 1)
		}
	}
	for w := 0; w < 65536; w++ {
		hi, lo := t.safe8[w>>8], t.safe8[w&0xff]
		if hi != 0 && lo != 0 {
			t.safe16[w] = hi + lo
		}
	}
	return t, nil
}

// Byte returns the score of v, or 0 when v is unsafe. Values outside
// 0..255 are unsafe; address arithmetic routinely produces them.
func (t *Table) Byte(v int) int {
	if v < 0 || v > 0xff {
		return 0
	}
	return int(t.safe8[v])
}

// Word returns the sum of both byte scores when both are safe, else 0.
func (t *Table) Word(v int) int {
	if v < 0 || v > 0xffff {
		return 0
	}
	return int(t.safe16[v])
}

func (t *Table) Safe8(v int) bool  { return t.Byte(v) != 0 }
func (t *Table) Safe16(v int) bool { return t.Word(v) != 0 }

// Bytes returns the safe byte values in ascending order.
func (t *Table) Bytes() []int {
	var out []int
	for v := 0; v < 256; v++ {
		if t.safe8[v] != 0 {
			out = append(out, v)
		}
	}
	return out
}

// Words returns the safe word values in ascending order.
func (t *Table) Words() []int {
	out := make([]int, 0, len(t.alphabet)*len(t.alphabet))
	for v := 0; v < 65536; v++ {
		if t.safe16[v] != 0 {
			out = append(out, v)
		}
	}
	return out
}
