// Package search enumerates multiply/xor generator transitions and keeps,
// per resulting 16-bit state, the cheapest way to reach it.
package search

// None marks a candidate without a predecessor.
const None int32 = -1

// Candidate is one immediate applied to one predecessor. State is the key
// the candidate is filed under; Hash and Value carry whatever the step
// model wants the next step (or the renderer) to see.
type Candidate struct {
	Score  int
	Imm    uint16
	Word   bool
	State  uint16
	Hash   uint16
	Value  uint16
	Parent int32
}

// Arena owns every candidate of a search run. Candidates refer to their
// predecessor by index so chains share ancestors without pointers.
type Arena struct {
	nodes []Candidate
}

func NewArena() *Arena {
	return &Arena{nodes: make([]Candidate, 0, 1<<16)}
}

func (a *Arena) Add(c Candidate) int32 {
	a.nodes = append(a.nodes, c)
	return int32(len(a.nodes) - 1)
}

// Root adds a predecessor-less candidate with score 0.
func (a *Arena) Root(state, hash uint16) int32 {
	return a.Add(Candidate{State: state, Hash: hash, Parent: None})
}

func (a *Arena) At(i int32) *Candidate { return &a.nodes[i] }

func (a *Arena) Len() int { return len(a.nodes) }

// Lineage returns the chain ending at i, oldest first.
func (a *Arena) Lineage(i int32) []Candidate {
	var out []Candidate
	for ; i != None; i = a.nodes[i].Parent {
		out = append(out, a.nodes[i])
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// Ancestor walks n links up from i.
func (a *Arena) Ancestor(i int32, n int) int32 {
	for ; n > 0 && i != None; n-- {
		i = a.nodes[i].Parent
	}
	return i
}

// Words counts word-sized immediates along the chain ending at i.
func (a *Arena) Words(i int32) int {
	n := 0
	for ; i != None; i = a.nodes[i].Parent {
		if a.nodes[i].Word {
			n++
		}
	}
	return n
}
