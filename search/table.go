package search

// Table holds at most one candidate per 16-bit state.
type Table struct {
	arena *Arena
	slot  [65536]int32
	n     int
}

func NewTable(a *Arena) *Table {
	t := &Table{arena: a}
	for i := range t.slot {
		t.slot[i] = None
	}
	return t
}

func (t *Table) Arena() *Arena { return t.arena }

func (t *Table) Len() int { return t.n }

func (t *Table) Get(state uint16) (int32, bool) {
	i := t.slot[state]
	return i, i != None
}

// Offer files c under c.State if the slot is empty or c is strictly
// cheaper than the incumbent. Equal scores keep the incumbent.
func (t *Table) Offer(c Candidate) bool {
	cur := t.slot[c.State]
	if cur == None {
		t.slot[c.State] = t.arena.Add(c)
		t.n++
		return true
	}
	if c.Score < t.arena.nodes[cur].Score {
		// nothing links to a candidate of the table being built
		t.arena.nodes[cur] = c
		return true
	}
	return false
}

// Indices returns the arena index of every survivor in ascending state order.
func (t *Table) Indices() []int32 {
	out := make([]int32, 0, t.n)
	for _, i := range t.slot {
		if i != None {
			out = append(out, i)
		}
	}
	return out
}

// Each visits survivors in ascending state order.
func (t *Table) Each(fn func(idx int32, c *Candidate)) {
	for _, i := range t.slot {
		if i != None {
			fn(i, &t.arena.nodes[i])
		}
	}
}
