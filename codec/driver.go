package codec

import (
	"fmt"

	"smile/fault"
	"smile/simulate"
)

// SeedResult is the outcome for one seed that produced a text.
type SeedResult struct {
	Seed   uint16
	Length int
	Best   bool
}

type Result struct {
	Seed  uint16
	Text  []byte
	Tried []SeedResult
	Stats SearchStats
}

// Best searches every seed and keeps the strictly shortest text; on equal
// length the earlier seed stays. Every text is replayed on the decoder
// before it is considered.
func Best(target []byte, p Params, seeds []uint16) (Result, error) {
	if seeds == nil {
		seeds = Seeds()
	}
	var best Result
	found := false
	for _, seed := range seeds {
		if found && p.First {
			break
		}
		text, st := Search(target, seed, p)
		best.Stats.Expanded += st.Expanded
		best.Stats.Layers += st.Layers
		if text == nil {
			continue
		}
		if err := Validate(target, seed, p, text); err != nil {
			return best, err
		}
		sr := SeedResult{Seed: seed, Length: len(text)}
		if !found || len(text) < len(best.Text) {
			found = true
			best.Seed = seed
			best.Text = text
			sr.Best = true
		}
		best.Tried = append(best.Tried, sr)
	}
	if !found {
		return best, fault.Exhausted(p.Model.String(), "no seed encodes %d bytes from hash %#04x", len(target), p.Hash)
	}
	return best, nil
}

// Decode replays text on the decoder the params describe.
func Decode(seed uint16, p Params, text []byte) simulate.Result {
	if p.Model == Accum {
		return simulate.AccumDecoder{Base: p.Base, Seed: seed, Hash: p.Hash}.Decode(text)
	}
	return simulate.HeadDecoder{Base: p.Base, Seed: seed, SeedText: p.SeedText, Hash: p.Hash}.Decode(text)
}

// Validate fails with a ValidationFailure unless text decodes to target
// and the decoder stops on its terminal condition.
func Validate(target []byte, seed uint16, p Params, text []byte) error {
	res := Decode(seed, p, text)
	cmp := simulate.Compare(target, res.Output)
	if cmp.Passed && res.Terminated {
		return nil
	}
	err := fault.Invalid(p.Model.String(), "seed %#04x: decode mismatch at %d (want %d bytes, got %d, terminated=%v)",
		seed, cmp.FirstMismatch, cmp.WantLen, cmp.GotLen, res.Terminated)
	err.WithDetail(fmt.Sprintf("text %q", text))
	err.WithDetail(simulate.Dump("encode", target)...)
	err.WithDetail(simulate.Dump("decode", res.Output)...)
	return err
}
