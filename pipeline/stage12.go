package pipeline

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"smile/fault"
	"smile/report"
	"smile/safety"
	"smile/search"
	"smile/serialize"
)

// Stage12Params describe the stage 1+2 image the combined loader patches:
// three unsafe words and the end of the modifiable range.
type Stage12Params struct {
	Addr     [3]int
	Word     [3]uint16
	Size     int
	InitHash uint16
	InitDI   uint16
}

func DefaultStage12Params() Stage12Params {
	return Stage12Params{
		Addr:     [3]int{0x0128, 0x012d, 0x0132},
		Word:     [3]uint16{0x4304, 0x4b47, 0xe575},
		Size:     0x0134 + 1,
		InitHash: 0x20cd,
		InitDI:   0xfffe,
	}
}

// Stage12Penalty is the extra cost of a word immediate.
const Stage12Penalty = 10

// Anchor bounds for the %di offset: the whole modifiable range must be
// reachable with a lower case offset.
const (
	anchorLo = 0x61
	anchorHi = 0x7a
	// slack left while words are still being counted
	anchorSlack = 6
)

func (p Stage12Params) rangeLen() int { return p.Size - p.Addr[0] }

func (p Stage12Params) anchored(di, slack int) (ofs int, ok bool) {
	ofs = (p.Addr[0] - di) & 0xffff
	return ofs, ofs >= anchorLo-slack && ofs+p.rangeLen() <= anchorHi-slack
}

type Stage12 struct {
	Params Stage12Params
	// Chain holds the five selected steps, step-1 first.
	Chain [5]search.Candidate
	// DI is the %di estimate of step-2 compensated for word immediates.
	DI    int
	OfsDI int
	Words int
	Score int
	Stats []search.Stats
}

// SearchStage12 finds the cheapest five step loader for p.
func SearchStage12(tab *safety.Table, p Stage12Params) (*Stage12, error) {
	s := &Stage12{Params: p}
	arena := search.NewArena()
	root := arena.Root(p.InitHash, p.InitHash)

	entropy := func(c *search.Candidate, imm uint16) search.Candidate {
		si := c.Hash * imm
		h := si ^ c.Hash
		return search.Candidate{State: h, Hash: h, Value: si}
	}
	// the hash is not updated by the patch steps
	generate := func(c *search.Candidate, imm uint16) search.Candidate {
		return search.Candidate{State: c.Hash, Hash: c.Hash, Value: c.Hash * imm}
	}
	patch := func(words ...uint16) search.Validator {
		return func(c *search.Candidate) bool {
			for _, w := range words {
				if !tab.Safe16(int(w ^ c.Value)) {
					return false
				}
			}
			return true
		}
	}

	tables, stats, err := search.Chain(tab, arena, []int32{root},
		// imul $IMM1,(%bx),%si; xor %si,(%bx)
		search.Step{Name: "step-1", Penalty: Stage12Penalty, Apply: entropy},
		// imul $IMM2,(%bx),%si; xor OFSDI(%bx,%si),%di
		search.Step{
			Name:    "step-2",
			Penalty: Stage12Penalty,
			Apply: func(c *search.Candidate, imm uint16) search.Candidate {
				h := c.Hash*imm ^ c.Hash
				return search.Candidate{State: h, Hash: c.Hash, Value: p.InitDI ^ h}
			},
			Valid: []search.Validator{func(c *search.Candidate) bool {
				_, ok := p.anchored(int(c.Value), anchorSlack)
				return ok
			}},
		},
		search.Step{Name: "step-3", Penalty: Stage12Penalty, Apply: entropy},
		search.Step{Name: "step-4", Penalty: Stage12Penalty, Apply: generate, Valid: []search.Validator{patch(p.Word[0], p.Word[1])}},
		search.Step{Name: "step-5", Penalty: Stage12Penalty, Apply: generate, Valid: []search.Validator{patch(p.Word[2])}},
	)
	s.Stats = stats
	if err != nil {
		return s, err
	}

	best := search.None
	selected := 0
	// %di is compensated by the word immediates actually taken, not by the
	// score remainder. With the default image this selects OFSDI 'e' and
	// IMM1 0x7a68, where a score%10 rule would pick 'f' and 0x7872.
	tables[4].Each(func(idx int32, c *search.Candidate) {
		words := arena.Words(idx)
		di := int(arena.At(arena.Ancestor(idx, 3)).Value) - words
		ofs, ok := p.anchored(di, 0)
		if !ok {
			return
		}
		selected++
		if best == search.None || c.Score < s.Score {
			best = idx
			s.Score, s.DI, s.OfsDI, s.Words = c.Score, di, ofs, words
		}
	})
	s.Stats = append(s.Stats, search.Stats{Step: "select", Parents: tables[4].Len(), Updates: selected, Survivors: selected})
	if best == search.None {
		return s, fault.Exhausted("stage12", "no candidate keeps %%di anchored after word compensation")
	}
	copy(s.Chain[:], arena.Lineage(best)[1:])
	return s, nil
}

// Include renders the stage 1+2 loader configuration.
func (s *Stage12) Include() *serialize.Include {
	hex := func(n uint16) string { return serialize.Hex(int(n), serialize.Auto) }
	ch := serialize.Char
	p := s.Params
	c := s.Chain

	var inc serialize.Include
	inc.Comment("STAGE-1 config")
	inc.Comment("SI=%s,%s,%s,%s", hex(c[0].Value), hex(c[2].Value), hex(c[3].Value), hex(c[4].Value))
	inc.Field("OFSDI", ch(s.OfsDI), "multiplier for initial %di")
	inc.Field("HEAD", ch(p.Size-s.DI), "%di offset to encoded stage3 DATA")
	for i := range c {
		n := strconv.Itoa(i + 1)
		inc.Field("IMM"+n, hex(c[i].Imm), "multiplier for step-"+n)
	}
	inc.Blank()
	inc.Comment("Patch config")
	for i := range p.Addr {
		n := strconv.Itoa(i + 1)
		si := int(c[3].Value)
		step := "4"
		if i == 2 {
			si, step = int(c[4].Value), "5"
		}
		w := int(p.Word[i])
		inc.Field("OFSMEM"+n, ch(p.Addr[i]-s.DI), "patch offset for step-"+step)
		inc.Field("FIX"+n+"H", ch(w>>8^si>>8), "patch for HI-byte")
		inc.Field("FIX"+n+"L", ch(w&0xff^si&0xff), "patch for LO-byte")
	}
	return &inc
}

// Stage12 writes the loader include to incPath, or to r.Out when empty.
func (r *Runner) Stage12(o Options, incPath string) error {
	s, err := SearchStage12(r.Safety, DefaultStage12Params())
	if s != nil {
		for _, st := range s.Stats {
			r.Log.Debug("search step", zap.String("step", st.Step), zap.Int("parents", st.Parents),
				zap.Int("candidates", st.Updates), zap.Int("survivors", st.Survivors))
		}
	}
	if err != nil {
		return err
	}
	r.Log.Info("selected", zap.String("stage", "stage12"), zap.Int("score", s.Score),
		zap.Int("words", s.Words), zap.String("di", serialize.Hex(s.DI, serialize.Word)))

	inc := s.Include()
	rs := report.Stage{Name: "stage12", Steps: stepReport(s.Stats)}
	if incPath == "" {
		if _, err := r.Out.Write(inc.Bytes()); err != nil {
			return fmt.Errorf("write include: %w", err)
		}
	} else {
		if err := writeOutput(incPath, inc.Bytes()); err != nil {
			return err
		}
		rs.Outputs = []string{incPath}
	}
	r.Report.Add(rs)
	return nil
}
