package radix

import (
	"bytes"
	"math"

	"smile/fault"
)

type Result struct {
	Text  []byte
	EOS   int
	Start int
	End   int
	Tried int
}

// Markers returns the candidate end-of-sequence values: just eos when it
// is set, otherwise the whole accepted range.
func Markers(eos int) []int {
	if eos != 0 {
		return []int{eos}
	}
	out := make([]int, 0, MaxEOS-MinEOS+1)
	for e := MinEOS; e <= MaxEOS; e++ {
		out = append(out, e)
	}
	return out
}

// Search finds the shortest text starting at template position start that
// round-trips data. Ends are tried upward from the information bound,
// markers upward within each end; the first exact round trip wins.
func Search(data []byte, tmpl Template, start int, markers []int) (Result, error) {
	for _, e := range markers {
		if e < MinEOS || e > MaxEOS {
			return Result{}, fault.Range("radix", "end-of-sequence %#04x outside [%#04x, %#04x]", e, MinEOS, MaxEOS)
		}
	}
	lo := start + int(math.Ceil(float64(len(data)*8)/math.Log2(13)))
	hi := start + 4*(len(data)+2)
	for _, c := range tmpl {
		if c != '.' && c != '*' {
			hi++
		}
	}

	res := Result{Start: start}
	for end := lo; end <= hi; end++ {
		for _, e := range markers {
			text, err := Encode(data, e, tmpl, start, end)
			if err != nil {
				continue
			}
			res.Tried++
			got, found := Decode(text, e)
			if found && bytes.Equal(got, data) {
				res.Text, res.EOS, res.End = text, e, end
				return res, nil
			}
		}
	}
	return res, fault.Exhausted("radix", "no marker encodes %d bytes between %d and %d", len(data), lo, hi)
}
