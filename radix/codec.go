package radix

import (
	"errors"
)

var errNoRoom = errors.New("radix: text does not fit between start and end")

// writer fills template positions right to left.
type writer struct {
	tmpl  Template
	start int
	pos   int
	out   []byte
}

// next skips literal positions and returns the radix of the next free
// digit position without consuming it.
func (w *writer) next() (int, error) {
	for {
		if w.pos <= w.start {
			return 0, errNoRoom
		}
		s := w.tmpl.at(w.pos - 1)
		if s.radix != 0 {
			return s.radix, nil
		}
		w.out = append(w.out, s.literal)
		w.pos--
	}
}

func (w *writer) put(radix, d int) {
	w.out = append(w.out, digitChar(radix, d))
	w.pos--
}

// extract emits digits while the pool still spans the next radix.
func (w *writer) extract(pool int) (int, error) {
	for {
		r, err := w.next()
		if err != nil {
			return 0, err
		}
		if pool < r {
			return pool, nil
		}
		w.put(r, pool%r)
		pool /= r
	}
}

// Encode lays data out over tmpl so that the text ends just before
// position end and starts exactly at start. The marker is pushed first,
// then the bytes last to first; leading positions are zero padded.
func Encode(data []byte, eos int, tmpl Template, start, end int) ([]byte, error) {
	w := &writer{tmpl: tmpl, start: start, pos: end}
	pool, err := w.extract(eos)
	if err != nil {
		return nil, err
	}
	for i := len(data) - 1; i >= 0; i-- {
		pool, err = w.extract(pool<<8 | int(data[i]))
		if err != nil {
			return nil, err
		}
	}
	for pool > 0 {
		r, err := w.next()
		if err != nil {
			return nil, err
		}
		w.put(r, pool%r)
		pool /= r
	}
	for w.pos > start {
		s := tmpl.at(w.pos - 1)
		if s.radix == 0 {
			w.out = append(w.out, s.literal)
		} else {
			w.out = append(w.out, digitChar(s.radix, 0))
		}
		w.pos--
	}

	for l, r := 0, len(w.out)-1; l < r; l, r = l+1, r-1 {
		w.out[l], w.out[r] = w.out[r], w.out[l]
	}
	return w.out, nil
}

// Decode folds digits into the pool and emits a byte whenever the pool
// outgrows one, until the pool equals the marker. found is false when
// the text runs out first.
func Decode(text []byte, eos int) (data []byte, found bool) {
	pool := 0
	for _, c := range text {
		d, r, ok := Digit(c)
		if !ok {
			continue
		}
		pool = pool*r + d
		if pool >= 0x100 {
			if pool == eos {
				return data, true
			}
			data = append(data, byte(pool))
			pool >>= 8
		}
	}
	return data, false
}
