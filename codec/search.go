package codec

import (
	"sort"
)

type node struct {
	prev int32
	ch   byte
}

type state struct {
	hash  uint16
	accum byte
	code  int
	step  int
	node  int32
}

// layer holds the states of one text length, at most one per hash.
type layer struct {
	slot   [65536]int32
	states []state
	keys   []int
}

func newLayer() *layer {
	l := &layer{}
	for i := range l.slot {
		l.slot[i] = -1
	}
	return l
}

func (l *layer) reset() {
	for _, k := range l.keys {
		l.slot[k] = -1
	}
	l.states = l.states[:0]
	l.keys = l.keys[:0]
}

// offer keeps the state that consumed more of the target.
func (l *layer) offer(ix uint16, s state) bool {
	cur := l.slot[ix]
	if cur == -1 {
		l.slot[ix] = int32(len(l.states))
		l.states = append(l.states, s)
		l.keys = append(l.keys, int(ix))
		return true
	}
	if s.code > l.states[cur].code {
		l.states[cur] = s
		return true
	}
	return false
}

// SearchStats describes one per-seed search.
type SearchStats struct {
	Expanded int
	Layers   int
}

type searcher struct {
	p      *Params
	target []byte
	seed   uint16
	nodes  []node
	stats  SearchStats
}

// charAt returns character k of the text ending at node n, where val is
// the character at position length being consumed; 0 beyond that.
func (s *searcher) charAt(n int32, length, k int, val byte) byte {
	if k == length {
		return val
	}
	if k > length {
		return 0
	}
	for i := length - 1; i > k; i-- {
		n = s.nodes[n].prev
	}
	return s.nodes[n].ch
}

func (s *searcher) text(n int32, length int) []byte {
	out := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		out[i] = s.nodes[n].ch
		n = s.nodes[n].prev
	}
	return out
}

// Search runs the layered search for one seed and returns the shortest
// text, or nil when every branch dies.
func Search(target []byte, seed uint16, p Params) ([]byte, SearchStats) {
	s := &searcher{p: &p, target: target, seed: seed}
	text := s.run()
	return text, s.stats
}

func (s *searcher) run() []byte {
	maxStep := s.p.maxStep()
	cur, next := newLayer(), newLayer()
	cur.offer(0, state{hash: s.p.Hash, node: -1})

	for length := 0; len(cur.keys) > 0; length++ {
		s.stats.Layers++
		sort.Ints(cur.keys)
		for _, k := range cur.keys {
			obj := cur.states[cur.slot[k]]
			s.stats.Expanded++
			for _, val := range s.p.charset(length) {
				hash, accum, code, step, ok := s.advance(obj, length, val, maxStep)
				if !ok {
					continue
				}
				var ix uint16
				if s.p.Model == Accum {
					if accum == 0 {
						if code == len(s.target) {
							return append(s.text(obj.node, length), val)
						}
						continue
					}
					ix = hash ^ uint16(val)
				} else {
					if hash == 0 {
						if code == len(s.target) {
							return append(s.text(obj.node, length), val)
						}
						continue
					}
					ix = hash
				}
				st := state{hash: hash, accum: accum, code: code, step: step}
				if next.slot[ix] == -1 || code > next.states[next.slot[ix]].code {
					s.nodes = append(s.nodes, node{prev: obj.node, ch: val})
					st.node = int32(len(s.nodes) - 1)
					next.offer(ix, st)
				}
			}
		}
		cur.reset()
		cur, next = next, cur
	}
	return nil
}

// advance simulates one decoder round consuming val after a text of
// the given length. ok is false when the branch dies.
func (s *searcher) advance(obj state, length int, val byte, maxStep int) (hash uint16, accum byte, code, step int, ok bool) {
	si := s.seed * obj.hash
	hash = obj.hash ^ si
	if s.p.Model == Accum {
		hash ^= uint16(obj.accum)
	}
	step = obj.step + 1
	code = obj.code

	if hash&0x8000 != 0 {
		if code == len(s.target) {
			// underflow
			return 0, 0, 0, 0, false
		}
		if byte(hash) != s.target[code] {
			// false byte ready
			return 0, 0, 0, 0, false
		}
		// the head's next byte is the memory cell right behind it,
		// which may be the character just read
		hash = hash>>8 | uint16(s.charAt(obj.node, length, code, val))<<8
		code++
		step = 0
	}
	if step > maxStep {
		return 0, 0, 0, 0, false
	}

	if s.p.Model == Accum {
		accum = obj.accum ^ (val - 0x30)
		return hash, accum, code, step, true
	}

	// The entropy word is read from the cell before the character. Once
	// the head has caught up with the text that cell belongs to the head.
	bp := uint16(val) << 8
	switch code {
	case length + 1:
		bp |= hash & 0xff
	case length:
		bp |= hash >> 8
	default:
		bp |= uint16(s.nodes[obj.node].ch)
	}
	hash ^= bp * s.p.SeedText
	return hash, 0, code, step, true
}
