package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smile/fault"
	"smile/safety"
)

func entropyStep(penalty int) Step {
	return Step{
		Name:    "entropy",
		Penalty: penalty,
		Apply: func(p *Candidate, imm uint16) Candidate {
			si := p.Hash * imm
			h := si ^ p.Hash
			return Candidate{State: h, Hash: h, Value: si}
		},
	}
}

func TestRunMinimality(t *testing.T) {
	tab := safety.Default()
	arena := NewArena()
	root := arena.Root(0x20cd, 0x20cd)

	out, st, err := Run(tab, arena, []int32{root}, entropyStep(256))
	require.NoError(t, err)
	assert.Equal(t, out.Len(), st.Survivors)
	assert.GreaterOrEqual(t, st.Updates, st.Survivors)

	// recompute every candidate and check nothing beats the survivor,
	// and that the survivor is the first to reach its score
	type seen struct {
		score int
		imm   uint16
	}
	first := map[uint16]seen{}
	visit := func(imm int, score int) {
		si := uint16(0x20cd) * uint16(imm)
		h := si ^ 0x20cd
		if s, ok := first[h]; !ok || score < s.score {
			first[h] = seen{score, uint16(imm)}
		}
	}
	for _, imm := range tab.Bytes() {
		visit(imm, tab.Byte(imm))
	}
	for _, imm := range tab.Words() {
		visit(imm, tab.Word(imm)+256)
	}

	assert.Equal(t, len(first), out.Len())
	for h, want := range first {
		idx, ok := out.Get(h)
		require.True(t, ok, "state %#04x missing", h)
		c := arena.At(idx)
		if c.Score != want.score || c.Imm != want.imm {
			t.Errorf("state %#04x: got score %d imm %#x, want score %d imm %#x", h, c.Score, c.Imm, want.score, want.imm)
		}
		assert.Equal(t, root, c.Parent)
		assert.Equal(t, c.Imm > 0xff, c.Word)
	}
}

func TestRunExhausted(t *testing.T) {
	// A zero hash generates si=0 for every immediate, so patching the
	// unsafe byte 'A' can never produce a safe byte.
	tab := safety.Default()
	arena := NewArena()
	root := arena.Root(0, 0)
	target := []byte{0x41}

	s := entropyStep(256)
	s.Name = "patch"
	s.Valid = []Validator{func(c *Candidate) bool {
		return tab.Safe8(int(target[0] ^ byte(c.Value)))
	}}

	out, st, err := Run(tab, arena, []int32{root}, s)
	assert.Nil(t, out)
	assert.Equal(t, 0, st.Survivors)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.SearchExhausted))
	assert.Contains(t, err.Error(), "patch")
}

func TestRunOrderBreaksTies(t *testing.T) {
	tab := safety.Default()

	pick := Step{
		Name: "pick",
		Apply: func(p *Candidate, imm uint16) Candidate {
			return Candidate{State: 1, Hash: p.Hash}
		},
		Valid: []Validator{},
	}
	// only (hash 1, 'c') and (hash 2, 'a') are allowed; both score 1
	run := func(order Order) *Candidate {
		arena := NewArena()
		roots := []int32{arena.Root(1, 1), arena.Root(2, 2)}
		s := pick
		s.Order = order
		s.Apply = func(p *Candidate, imm uint16) Candidate {
			ok := (p.Hash == 1 && imm == 'c') || (p.Hash == 2 && imm == 'a')
			if !ok {
				return Candidate{State: 2, Hash: 0xffff}
			}
			return Candidate{State: 1, Hash: p.Hash}
		}
		s.Valid = []Validator{func(c *Candidate) bool { return c.Hash != 0xffff }}
		out, _, err := Run(tab, arena, roots, s)
		require.NoError(t, err)
		idx, ok := out.Get(1)
		require.True(t, ok)
		return arena.At(idx)
	}

	pm := run(ParentMajor)
	assert.Equal(t, uint16('c'), pm.Imm)
	assert.Equal(t, uint16(1), pm.Hash)

	im := run(ImmediateMajor)
	assert.Equal(t, uint16('a'), im.Imm)
	assert.Equal(t, uint16(2), im.Hash)
}

func TestOfferStrictlyLower(t *testing.T) {
	arena := NewArena()
	tbl := NewTable(arena)

	assert.True(t, tbl.Offer(Candidate{State: 7, Score: 5, Imm: 1}))
	assert.False(t, tbl.Offer(Candidate{State: 7, Score: 5, Imm: 2}))
	assert.False(t, tbl.Offer(Candidate{State: 7, Score: 6, Imm: 3}))
	assert.True(t, tbl.Offer(Candidate{State: 7, Score: 4, Imm: 4}))

	idx, ok := tbl.Get(7)
	require.True(t, ok)
	assert.Equal(t, uint16(4), arena.At(idx).Imm)
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, 1, arena.Len())

	_, ok = tbl.Get(8)
	assert.False(t, ok)
}

func TestLineage(t *testing.T) {
	arena := NewArena()
	r := arena.Root(0x20cd, 0x20cd)
	a := arena.Add(Candidate{Imm: 0x61, Parent: r})
	b := arena.Add(Candidate{Imm: 0x6e6e, Word: true, Parent: a})
	c := arena.Add(Candidate{Imm: 0x7a7a, Word: true, Parent: b})

	chain := arena.Lineage(c)
	require.Len(t, chain, 4)
	assert.Equal(t, uint16(0x20cd), chain[0].Hash)
	assert.Equal(t, uint16(0x7a7a), chain[3].Imm)
	assert.Equal(t, 2, arena.Words(c))
	assert.Equal(t, a, arena.Ancestor(c, 2))
	assert.Equal(t, None, arena.Ancestor(c, 9))
}

func TestChainCarriesParents(t *testing.T) {
	tab := safety.Default()
	arena := NewArena()
	root := arena.Root(0x20cd, 0x20cd)

	keep := Step{
		Name: "keep",
		Apply: func(p *Candidate, imm uint16) Candidate {
			return Candidate{State: p.State, Hash: p.Hash, Value: p.Hash * imm}
		},
	}
	tables, stats, err := Chain(tab, arena, []int32{root}, entropyStep(10), keep)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Len(t, stats, 2)

	// keyed by the parent's state, so one survivor per parent
	assert.Equal(t, tables[0].Len(), tables[1].Len())
	tables[1].Each(func(idx int32, c *Candidate) {
		p := arena.At(c.Parent)
		assert.Equal(t, p.State, c.State)
		assert.Equal(t, root, p.Parent)
		// cheapest immediate is a tier-1 byte
		assert.Equal(t, p.Score+1, c.Score)
	})
}

func TestChainStopsOnExhaustion(t *testing.T) {
	tab := safety.Default()
	arena := NewArena()
	root := arena.Root(0x20cd, 0x20cd)

	never := Step{
		Name:  "never",
		Apply: func(p *Candidate, imm uint16) Candidate { return Candidate{} },
		Valid: []Validator{func(*Candidate) bool { return false }},
	}
	tables, stats, err := Chain(tab, arena, []int32{root}, entropyStep(10), never, entropyStep(10))
	assert.True(t, fault.Is(err, fault.SearchExhausted))
	assert.Len(t, tables, 1)
	assert.Len(t, stats, 2)
}

func TestCrossMatchesNaive(t *testing.T) {
	arena := NewArena()
	head, tail := NewTable(arena), NewTable(arena)
	for i, s := range []int{258, 3, 260, 257, 2, 259} {
		head.Offer(Candidate{State: uint16(i * 3), Score: s, Hash: uint16(i)})
	}
	for i, s := range []int{5, 261, 4, 4, 520, 262, 6} {
		tail.Offer(Candidate{State: uint16(i * 5), Score: s})
	}

	headOK := func(c *Candidate) bool { return c.Hash != 4 }
	for _, want := range []int{0, 1, 2, 3} {
		keep := func(score int) bool { return score>>8 == want }

		naive := Pair{Head: None, Tail: None}
		count := 0
		head.Each(func(hi int32, h *Candidate) {
			tail.Each(func(ti int32, tc *Candidate) {
				if !headOK(h) {
					return
				}
				score := h.Score + tc.Score
				if !keep(score) {
					return
				}
				count++
				if naive.Head == None || score < naive.Score {
					naive = Pair{Head: hi, Tail: ti, Score: score}
				}
			})
		})

		got, err := Cross(head, tail, headOK, keep)
		if count == 0 {
			assert.True(t, fault.Is(err, fault.SearchExhausted), "words=%d", want)
			continue
		}
		require.NoError(t, err, "words=%d", want)
		assert.Equal(t, count, got.Count, "words=%d", want)
		assert.Equal(t, naive, got.Best, "words=%d", want)
	}
}
