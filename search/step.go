package search

import (
	"smile/fault"
	"smile/safety"
)

// Order selects the loop nesting of a step. Both visit byte immediates
// before word immediates; the nesting decides which candidate arrives
// first when scores tie.
type Order int

const (
	// ParentMajor: for each parent, all byte then all word immediates.
	ParentMajor Order = iota
	// ImmediateMajor: for each byte immediate all parents, then for each
	// word immediate all parents.
	ImmediateMajor
)

// Validator rejects a freshly computed candidate.
type Validator func(c *Candidate) bool

// Step describes one generator instruction. Apply fills State, Hash and
// Value of the successor; scoring and linkage are done by Run.
type Step struct {
	Name    string
	Penalty int
	Order   Order
	Apply   func(parent *Candidate, imm uint16) Candidate
	Valid   []Validator
}

type Stats struct {
	Step      string
	Parents   int
	Updates   int
	Survivors int
}

// Run applies s to every parent with every safe immediate and returns the
// survivor table. An empty result is a SearchExhausted fault.
func Run(tab *safety.Table, arena *Arena, parents []int32, s Step) (*Table, Stats, error) {
	out := NewTable(arena)
	st := Stats{Step: s.Name, Parents: len(parents)}

	ps := make([]Candidate, len(parents))
	for i, pi := range parents {
		ps[i] = *arena.At(pi)
	}
	bytes, words := tab.Bytes(), tab.Words()

	try := func(k int, imm int, word bool) {
		p := &ps[k]
		c := s.Apply(p, uint16(imm))
		for _, v := range s.Valid {
			if !v(&c) {
				return
			}
		}
		c.Imm = uint16(imm)
		c.Word = word
		c.Parent = parents[k]
		if word {
			c.Score = p.Score + tab.Word(imm) + s.Penalty
		} else {
			c.Score = p.Score + tab.Byte(imm)
		}
		if out.Offer(c) {
			st.Updates++
		}
	}

	switch s.Order {
	case ImmediateMajor:
		for _, imm := range bytes {
			for k := range ps {
				try(k, imm, false)
			}
		}
		for _, imm := range words {
			for k := range ps {
				try(k, imm, true)
			}
		}
	default:
		for k := range ps {
			for _, imm := range bytes {
				try(k, imm, false)
			}
			for _, imm := range words {
				try(k, imm, true)
			}
		}
	}

	st.Survivors = out.Len()
	if st.Updates == 0 {
		return nil, st, fault.Exhausted(s.Name, "no surviving candidates from %d parents", len(parents))
	}
	return out, st, nil
}
