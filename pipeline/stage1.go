package pipeline

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"smile/config"
	"smile/fault"
	"smile/fixup"
	"smile/report"
	"smile/safety"
	"smile/search"
	"smile/serialize"
)

// Stage1Params place stage 1 and the stage 3 hash in memory.
type Stage1Params struct {
	Stage1Base int
	Stage3Base int
	InitSI     int
	InitHash   int
	SeedHead   int
	SeedText   int
	Stage3EOS  int
}

func DefaultStage1Params() Stage1Params {
	return Stage1Params{
		Stage1Base: 0x0100,
		Stage3Base: 0x0130,
		InitSI:     0x0100,
		InitHash:   0x20cd,
		SeedHead:   0x6e6e,
		SeedText:   0x6e,
		Stage3EOS:  0x0100,
	}
}

// Stage1Penalty is added to the score of every word immediate. It is large
// enough that score>>8 counts the word immediates of a chain.
const Stage1Penalty = 256

// ExcludedHashes are stage 2 hashes the head codec cannot encode from.
var ExcludedHashes = []uint16{0x6668, 0x6962, 0x6534, 0x6632, 0x3236}

func excluded(h uint16) bool {
	for _, x := range ExcludedHashes {
		if x == h {
			return true
		}
	}
	return false
}

// Check validates the parameters that do not depend on the image.
func (p Stage1Params) Check(tab *safety.Table) error {
	if d := p.Stage3Base - p.Stage1Base; d < 0x30 || d > 0x39 {
		return fault.Range("stage1", "STAGE3BASE is out of range (%s, STAGE1BASE %s)",
			serialize.Hex(p.Stage3Base, serialize.Word), serialize.Hex(p.Stage1Base, serialize.Word))
	}
	if !tab.Safe16(p.SeedHead) {
		return fault.Range("stage1", "SEEDHEAD %s is not ascii-safe", serialize.Hex(p.SeedHead, serialize.Word))
	}
	if !tab.Safe8(p.SeedText) {
		return fault.Range("stage1", "SEEDTEXT %s is not ascii-safe", serialize.Hex(p.SeedText, serialize.Byte))
	}
	if p.Stage3EOS < 0x0100 || p.Stage3EOS > 0xff*10 {
		return fault.Range("stage1", "STAGE3EOS %s is out of range", serialize.Hex(p.Stage3EOS, serialize.Word))
	}
	if !tab.Safe8((p.Stage3Base - p.InitSI) & 0xffff) {
		return fault.Range("stage1", "STAGE3BASE is %%si unreachable")
	}
	return nil
}

// NumPromote is how many immediates must be words for stage 3 to start at
// Stage3Base when the image (with its two byte trailer) is imageLen long.
func (p Stage1Params) NumPromote(imageLen int) (int, error) {
	n := p.Stage3Base - (p.Stage1Base + imageLen - 2)
	if n > 4 {
		return n, fault.Range("stage1", "STAGE3BASE too far away (%d bytes to promote)", n)
	}
	if n < -9 {
		return n, fault.Range("stage1", "STAGE3BASE too close by (%d bytes to promote)", n)
	}
	return n, nil
}

// Stage3Offset is the template position following stage 2 and the head.
func (p Stage1Params) Stage3Offset() int { return p.Stage3Base - p.Stage1Base + 2 }

// Stage1 is the selected stage 1 configuration.
type Stage1 struct {
	Params     Stage1Params
	NumPromote int
	Fixups     [3]fixup.Record

	// Load is the %di loader: Imm is SEEDDI, Hash the head hash, Value %di.
	Load search.Candidate
	// Entropy, Patch12 and Patch3 are the %si generator chain.
	Entropy search.Candidate
	Patch12 search.Candidate
	Patch3  search.Candidate

	Score  int
	Combos int
	Stats  []search.Stats
}

// SearchStage1 finds the cheapest stage 1 for image, whose fixups start
// at Stage1Base+NumPromote.
func SearchStage1(tab *safety.Table, p Stage1Params, image []byte) (*Stage1, error) {
	if err := p.Check(tab); err != nil {
		return nil, err
	}
	numPromote, err := p.NumPromote(len(image))
	if err != nil {
		return nil, err
	}
	fx, err := fixup.Locate(tab, image, p.Stage1Base+numPromote)
	if err != nil {
		return nil, err
	}
	s := &Stage1{Params: p, NumPromote: numPromote, Fixups: fx}

	arena := search.NewArena()

	// step-1A: imul $SEEDDI,OFSHASH(%bp,%di),%di
	var heads []int32
	for _, w := range tab.Words() {
		heads = append(heads, arena.Root(uint16(w), uint16(w)))
	}
	reach := func(addr int) search.Validator {
		return func(c *search.Candidate) bool { return tab.Safe8(addr - int(c.Value)) }
	}
	loads, st, err := search.Run(tab, arena, heads, search.Step{
		Name:    "step-1",
		Penalty: Stage1Penalty,
		Order:   search.ImmediateMajor,
		Apply: func(c *search.Candidate, imm uint16) search.Candidate {
			di := c.Hash * imm
			return search.Candidate{State: di, Hash: c.Hash, Value: di}
		},
		Valid: []search.Validator{
			reach(fx[0].Addr), reach(fx[1].Addr), reach(fx[2].Addr), reach(p.Stage3Base + 2),
		},
	})
	s.Stats = append(s.Stats, st)
	if err != nil {
		return s, err
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
	generate := func(c *search.Candidate, imm uint16) search.Candidate {
		si := c.Hash * imm
		return search.Candidate{State: si, Hash: c.Hash, Value: si}
	}
	root := arena.Root(uint16(p.InitHash), uint16(p.InitHash))
	tables, stats, err := search.Chain(tab, arena, []int32{root},
		// step-1B: imul $SEEDSI,(%bx),%si; xor %si,(%bx)
		search.Step{
			Name:    "step-2",
			Penalty: Stage1Penalty,
			Apply: func(c *search.Candidate, imm uint16) search.Candidate {
				si := c.Hash * imm
				h := si ^ c.Hash
				return search.Candidate{State: h, Hash: h, Value: si}
			},
		},
		// step-1C: imul $SEEDFIX12,(%bx),%si
		search.Step{
			Name:    "step-3",
			Penalty: Stage1Penalty,
			Apply:   generate,
			Valid:   []search.Validator{patch(fx[0].Word, fx[1].Word)},
		},
		// step-1D: imul $SEEDFIX3,(%bx),%si
		search.Step{
			Name:    "step-4",
			Penalty: Stage1Penalty,
			Apply:   generate,
			Valid:   []search.Validator{patch(fx[2].Word)},
		},
	)
	s.Stats = append(s.Stats, stats...)
	if err != nil {
		return s, err
	}

	cross, err := search.Cross(loads, tables[2],
		func(c *search.Candidate) bool { return !excluded(c.Hash) },
		func(score int) bool { return score>>8 == numPromote },
	)
	if err != nil {
		return s, fault.Exhausted("stage1", "failed to create stage1: no chain with %d word immediates", numPromote)
	}
	s.Score, s.Combos = cross.Best.Score, cross.Count
	s.Stats = append(s.Stats, search.Stats{Step: "cross", Parents: loads.Len(), Updates: cross.Count, Survivors: 1})

	s.Load = *arena.At(cross.Best.Head)
	chain := arena.Lineage(cross.Best.Tail)
	s.Entropy, s.Patch12, s.Patch3 = chain[1], chain[2], chain[3]

	if err := s.verify(tab); err != nil {
		return s, err
	}
	return s, nil
}

// verify replays the selected chain the way the stage 1 code executes it.
func (s *Stage1) verify(tab *safety.Table) error {
	p := s.Params
	fail := func(format string, args ...any) error {
		return fault.Invalid("stage1", format, args...).WithDetail(s.Include("verify").String())
	}
	if di := s.Load.Hash * s.Load.Imm; di != s.Load.Value {
		return fail("%%di %#04x, loader yields %#04x", s.Load.Value, di)
	}
	si := uint16(p.InitHash) * s.Entropy.Imm
	hash := si ^ uint16(p.InitHash)
	if si != s.Entropy.Value || hash != s.Entropy.Hash {
		return fail("entropy step yields %%si %#04x hash %#04x", si, hash)
	}
	for i, c := range []search.Candidate{s.Patch12, s.Patch12, s.Patch3} {
		si := hash * c.Imm
		if si != c.Value {
			return fail("patch %d: %%si %#04x, want %#04x", i+1, si, c.Value)
		}
		if !tab.Safe16(int(s.Fixups[i].Word ^ si)) {
			return fail("patch %d leaves %#04x unsafe", i+1, s.Fixups[i].Word^si)
		}
		if !tab.Safe8(s.Fixups[i].Addr - int(s.Load.Value)) {
			return fail("patch %d offset unreachable", i+1)
		}
	}
	return nil
}

func (s *Stage1) DI() int { return int(s.Load.Value) }

func (s *Stage1) OfsHash() int { return (s.Params.Stage3Base - s.Params.InitSI) & 0xffff }

func (s *Stage1) OfsHead() int { return (s.Params.Stage3Base - s.DI()) & 0xffff }

func (s *Stage1) OfsText() int { return (s.Params.Stage3Base + 2 - s.DI()) & 0xffff }

func (s *Stage1) HashHead() int { return int(s.Load.Hash) }

// Include renders the stage 1 assembler configuration.
func (s *Stage1) Include(program string) *serialize.Include {
	hex, ch := serialize.Hex, serialize.Char
	w := serialize.Word
	p := s.Params
	di := s.DI()
	fix12, fix3 := int(s.Patch12.Value), int(s.Patch3.Value)

	var inc serialize.Include
	inc.Comment("Generated by %q", program)
	inc.Comment("Stage-1")
	inc.Field("NUMPROMOTE", strconv.Itoa(s.NumPromote), "Number of bytes promoted to word")
	inc.Field("OFSHASH", ch(s.OfsHash()), "%si offset containing stage1 number generator hash, hash="+hex(s.HashHead(), serialize.Auto))
	inc.Field("SEEDDI", hex(int(s.Load.Imm), serialize.Auto), "multiplier for step-1A. %di="+hex(di, w))
	inc.Field("SEEDSI", hex(int(s.Entropy.Imm), serialize.Auto),
		fmt.Sprintf("multiplier for step-1B. %%si=%s, hash=%s", hex(int(s.Entropy.Value), w), hex(int(s.Entropy.Hash), w)))
	inc.Field("SEEDFIX12", hex(int(s.Patch12.Imm), serialize.Auto), "multiplier for step-1C. %si="+hex(fix12, w))
	inc.Field("SEEDFIX3", hex(int(s.Patch3.Imm), serialize.Auto), "multiplier for step-1D. %si="+hex(fix3, w))
	for i, si := range []int{fix12, fix12, fix3} {
		n := strconv.Itoa(i + 1)
		inc.Field("OFSFIX"+n, ch(s.Fixups[i].Addr-di), "patch offset for step-2"+string(rune('B'+i)))
		inc.Field("FIX"+n+"H", hex(si>>8, serialize.Byte), "patch for HI-byte")
		inc.Field("FIX"+n+"L", hex(si&0xff, serialize.Byte), "patch for LO-byte")
	}
	inc.Comment("Stage-2A")
	inc.Field("OFSHEAD", ch(s.OfsHead()), "%di offset to output HEAD containing stage2 number generator hash")
	inc.Field("HASHHEAD", hex(s.HashHead(), w), "")
	inc.Field("HASHHEADH", ch(s.HashHead()>>8), "decoder hash HI-byte")
	inc.Field("HASHHEADL", ch(s.HashHead()&0xff), "decoder hash LO-byte")
	inc.Line("#if !defined(SEEDHEAD)")
	inc.Field("SEEDHEAD", hex(p.SeedHead, w), "supplied by genStage2.js")
	inc.Line("#endif")
	inc.Comment("Stage-2B")
	inc.Field("OFSTEXT", ch(s.OfsText()), "%di offset to input TEXT containing the next character")
	inc.Field("SEEDTEXT", hex(p.SeedText, serialize.Byte), "ascii-safe user defined")
	inc.Comment("Stage-3")
	inc.Field("STAGE3EOS", hex(p.Stage3EOS, w), "stage3 end-of-sequence token")
	return &inc
}

// Provides are the linkage values later stages read.
func (s *Stage1) Provides() []config.Value {
	return []config.Value{
		{Key: "OFSHASH", Value: s.OfsHash(), Width: serialize.Byte},
		{Key: "OFSHEAD", Value: s.OfsHead(), Width: serialize.Byte},
		{Key: "OFSTEXT", Value: s.OfsText(), Width: serialize.Byte},
		{Key: "HASHHEAD", Value: s.HashHead(), Width: serialize.Word},
		{Key: "STAGE3OFFSET", Value: s.Params.Stage3Offset(), Width: serialize.Auto},
	}
}

// Stage1 writes the stage 1 include for the stage 1+2 image.
func (r *Runner) Stage1(o Options, incPath, imagePath string) error {
	l, err := r.open(o)
	if err != nil {
		return err
	}
	d := DefaultStage1Params()
	p := Stage1Params{
		Stage1Base: l.value("STAGE1BASE", d.Stage1Base),
		Stage3Base: l.value("STAGE3BASE", d.Stage3Base),
		InitSI:     l.value("INITSI", d.InitSI),
		InitHash:   l.value("INITHASH", d.InitHash),
		SeedHead:   l.value("SEEDHEAD", d.SeedHead),
		SeedText:   l.value("SEEDTEXT", d.SeedText),
		Stage3EOS:  l.value("STAGE3EOS", d.Stage3EOS),
	}
	w := serialize.Word
	r.Log.Info("using",
		zap.String("stage", "stage1"),
		zap.String("STAGE1BASE", serialize.Hex(p.Stage1Base, w)),
		zap.String("STAGE3BASE", serialize.Hex(p.Stage3Base, w)),
		zap.String("INITSI", serialize.Hex(p.InitSI, w)),
		zap.String("INITHASH", serialize.Hex(p.InitHash, w)),
		zap.String("SEEDHEAD", serialize.Hex(p.SeedHead, w)),
		zap.String("SEEDTEXT", serialize.Hex(p.SeedText, w)),
		zap.String("STAGE3EOS", serialize.Hex(p.Stage3EOS, w)),
	)

	image, err := readInput(imagePath)
	if err != nil {
		return err
	}
	s, err := SearchStage1(r.Safety, p, image)
	if s != nil {
		for _, st := range s.Stats {
			r.Log.Debug("search step", zap.String("step", st.Step), zap.Int("parents", st.Parents),
				zap.Int("candidates", st.Updates), zap.Int("survivors", st.Survivors))
		}
	}
	if err != nil {
		return err
	}
	for _, f := range s.Fixups {
		r.Log.Info("fixup", zap.String("addr", serialize.Hex(f.Addr, w)), zap.String("word", serialize.Hex(int(f.Word), w)))
	}
	r.Log.Info("selected", zap.String("stage", "stage1"), zap.Int("score", s.Score), zap.Int("combos", s.Combos))

	if err := writeOutput(incPath, s.Include(r.Program+" stage1").Bytes()); err != nil {
		return err
	}
	updated, vals, err := r.provide("stage1", l, s.Provides()...)
	if err != nil {
		return err
	}
	r.Report.Add(report.Stage{
		Name:     "stage1",
		Inputs:   []string{imagePath},
		Outputs:  []string{incPath},
		Steps:    stepReport(s.Stats),
		Provides: vals,
		Updated:  updated,
	})
	return nil
}
