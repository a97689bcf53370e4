// Package codec searches for the shortest safe text that a stage decoder
// turns back into a given byte sequence.
package codec

import (
	"smile/safety"
)

// Model selects which decoder loop the text is written for.
type Model int

const (
	// Head is the stage-2 decoder: the output head doubles as the
	// generator hash and every character pair feeds it entropy.
	Head Model = iota
	// Accum is the stage-3 decoder: characters fold into an accumulator
	// that is mixed into the next generator round.
	Accum
)

func (m Model) String() string {
	if m == Accum {
		return "accum"
	}
	return "head"
}

const (
	DefaultMaxStep   = 6
	DefaultHeadHash  = 0x316b
	DefaultSeedText  = 0x6e
	DefaultAccumHash = 0x316b
)

// Template position classes.
const (
	TemplateDot  = '.'
	TemplateStar = '*'
)

type Params struct {
	Model    Model
	Hash     uint16
	SeedText uint16
	MaxStep  int
	// Template and Offset dictate the character class per text position
	// for the Head model: '.' or past the end is radix-13, '*' radix-10,
	// anything else is emitted literally.
	Template []byte
	Offset   int
	// Base is where the simulator loads hash and text.
	Base uint16
	// First stops the seed driver at the first success.
	First bool
}

var (
	radix13 = []byte(safety.Radix13)
	radix10 = []byte(safety.Radix10)
)

// Seeds returns every two-character radix-13 word, high character major.
func Seeds() []uint16 {
	out := make([]uint16, 0, len(radix13)*len(radix13))
	for _, hi := range radix13 {
		for _, lo := range radix13 {
			out = append(out, uint16(hi)<<8|uint16(lo))
		}
	}
	return out
}

// charset returns the characters allowed at text position pos.
func (p *Params) charset(pos int) []byte {
	if p.Model == Accum {
		return radix13
	}
	t := p.Offset + pos
	if t >= len(p.Template) || p.Template[t] == TemplateDot {
		return radix13
	}
	if p.Template[t] == TemplateStar {
		return radix10
	}
	return p.Template[t : t+1]
}

func (p *Params) maxStep() int {
	if p.MaxStep <= 0 {
		return DefaultMaxStep
	}
	return p.MaxStep
}
