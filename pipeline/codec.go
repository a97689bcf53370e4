package pipeline

import (
	"errors"

	"go.uber.org/zap"

	"smile/codec"
	"smile/config"
	"smile/fault"
	"smile/report"
	"smile/serialize"
	"smile/template"
)

// Stage2Params drive the head codec that encodes stage 3.
type Stage2Params struct {
	Stage3Base   int
	HashHead     int
	SeedText     int
	Stage3Offset int
}

func DefaultStage2Params() Stage2Params {
	return Stage2Params{
		Stage3Base: 0x0130,
		HashHead:   codec.DefaultHeadHash,
		SeedText:   codec.DefaultSeedText,
	}
}

// DefaultStage3Hash is the initial output word of the accumulator decoder.
const DefaultStage3Hash = codec.DefaultAccumHash

func (r *Runner) logSeeds(stage string, res codec.Result) {
	for _, t := range res.Tried {
		r.Log.Debug("seed", zap.String("stage", stage), zap.String("seed", serialize.Hex(int(t.Seed), serialize.Word)),
			zap.Int("length", t.Length), zap.Bool("best", t.Best))
	}
}

func seedReport(res codec.Result) []report.Seed {
	out := make([]report.Seed, len(res.Tried))
	for i, t := range res.Tried {
		out[i] = report.Seed{Seed: serialize.Hex(int(t.Seed), serialize.Word), Length: t.Length, Best: t.Best}
	}
	return out
}

// Stage2 encodes the stage 3 image for the head decoder, laying the text
// over the template from STAGE3OFFSET on.
func (r *Runner) Stage2(o Options, ascPath, comPath, tmplPath string) error {
	l, err := r.open(o)
	if err != nil {
		return err
	}
	d := DefaultStage2Params()
	p := Stage2Params{
		Stage3Base:   l.value("STAGE3BASE", d.Stage3Base),
		HashHead:     l.value("HASHHEAD", d.HashHead),
		SeedText:     l.value("SEEDTEXT", d.SeedText),
		Stage3Offset: l.value("STAGE3OFFSET", d.Stage3Offset),
	}
	r.Log.Info("using",
		zap.String("stage", "stage2"),
		zap.String("STAGE3BASE", serialize.Hex(p.Stage3Base, serialize.Word)),
		zap.String("HASHHEAD", serialize.Hex(p.HashHead, serialize.Word)),
		zap.String("SEEDTEXT", serialize.Hex(p.SeedText, serialize.Byte)),
		zap.Int("STAGE3OFFSET", p.Stage3Offset),
	)

	data, err := readInput(comPath)
	if err != nil {
		return err
	}
	tmpl, err := template.Load(tmplPath)
	if err != nil {
		return err
	}

	res, err := codec.Best(data, codec.Params{
		Model:    codec.Head,
		Hash:     uint16(p.HashHead),
		SeedText: uint16(p.SeedText),
		MaxStep:  o.MaxStep,
		Template: tmpl,
		Offset:   p.Stage3Offset,
		Base:     uint16(p.Stage3Base),
		First:    o.First,
	}, nil)
	r.logSeeds("stage2", res)
	if err != nil {
		var fe *fault.Error
		if errors.As(err, &fe) && fe.Kind == fault.SearchExhausted {
			fe.WithDetail("add HASHHEAD " + serialize.Hex(p.HashHead, serialize.Word) + " to the excluded stage1 hashes")
		}
		return err
	}
	r.Log.Info("selected", zap.String("stage", "stage2"), zap.String("seed", serialize.Hex(int(res.Seed), serialize.Word)),
		zap.ByteString("text", res.Text), zap.Int("length", len(res.Text)))

	if err := writeOutput(ascPath, res.Text); err != nil {
		return err
	}
	updated, vals, err := r.provide("stage2", l,
		config.Value{Key: "SEEDHEAD", Value: int(res.Seed), Width: serialize.Word},
		config.Value{Key: "STAGE4BASE", Value: p.Stage3Base + len(data), Width: serialize.Word},
		config.Value{Key: "STAGE4OFFSET", Value: p.Stage3Offset + len(res.Text)},
	)
	if err != nil {
		return err
	}
	r.Report.Add(report.Stage{
		Name:     "stage2",
		Inputs:   []string{comPath, tmplPath},
		Outputs:  []string{ascPath},
		Seeds:    seedReport(res),
		Provides: vals,
		Length:   len(res.Text),
		Updated:  updated,
	})
	return nil
}

// Stage3 encodes an image for the accumulator decoder.
func (r *Runner) Stage3(o Options, ascPath, comPath string) error {
	l, err := r.open(o)
	if err != nil {
		return err
	}
	hash := l.value("HASHSTAGE3", DefaultStage3Hash)
	base := l.value("STAGE4BASE", 0x0100)
	r.Log.Info("using", zap.String("stage", "stage3"), zap.String("HASHSTAGE3", serialize.Hex(hash, serialize.Word)))

	data, err := readInput(comPath)
	if err != nil {
		return err
	}
	res, err := codec.Best(data, codec.Params{
		Model:   codec.Accum,
		Hash:    uint16(hash),
		MaxStep: o.MaxStep,
		Base:    uint16(base),
		First:   o.First,
	}, nil)
	r.logSeeds("stage3", res)
	if err != nil {
		return err
	}
	r.Log.Info("selected", zap.String("stage", "stage3"), zap.String("seed", serialize.Hex(int(res.Seed), serialize.Word)),
		zap.ByteString("text", res.Text), zap.Int("length", len(res.Text)))

	if err := writeOutput(ascPath, res.Text); err != nil {
		return err
	}
	updated, vals, err := r.provide("stage3", l,
		config.Value{Key: "SEEDSTAGE3", Value: int(res.Seed), Width: serialize.Word},
	)
	if err != nil {
		return err
	}
	r.Report.Add(report.Stage{
		Name:     "stage3",
		Inputs:   []string{comPath},
		Outputs:  []string{ascPath},
		Seeds:    seedReport(res),
		Provides: vals,
		Length:   len(res.Text),
		Updated:  updated,
	})
	return nil
}
