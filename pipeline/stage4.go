package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"smile/config"
	"smile/radix"
	"smile/report"
	"smile/serialize"
	"smile/template"
)

// Stage4 lays the payload over the template as radix digits, starting
// where the stage 2 text ended.
func (r *Runner) Stage4(o Options, ascPath, comPath, tmplPath string) error {
	l, err := r.open(o)
	if err != nil {
		return err
	}
	start := l.value("STAGE4OFFSET", 0)
	eos := l.value("STAGE3EOS", 0)
	r.Log.Info("using", zap.String("stage", "stage4"), zap.Int("STAGE4OFFSET", start),
		zap.String("STAGE3EOS", serialize.Hex(eos, serialize.Word)))

	data, err := readInput(comPath)
	if err != nil {
		return err
	}
	tmpl, err := template.Load(tmplPath)
	if err != nil {
		return err
	}

	res, err := radix.Search(data, radix.Template(tmpl), start, radix.Markers(eos))
	if err != nil {
		return err
	}
	r.Log.Info("selected", zap.String("stage", "stage4"), zap.String("eos", serialize.Hex(res.EOS, serialize.Word)),
		zap.Int("length", len(res.Text)), zap.Int("end", res.End), zap.Int("tried", res.Tried))

	if err := writeOutput(ascPath, res.Text); err != nil {
		return err
	}
	updated, vals, err := r.provide("stage4", l,
		config.Value{Key: "STAGE3EOS", Value: res.EOS, Width: serialize.Word},
		config.Value{Key: "STAGE5OFFSET", Value: res.End},
	)
	if err != nil {
		return err
	}
	r.Report.Add(report.Stage{
		Name:     "stage4",
		Inputs:   []string{comPath, tmplPath},
		Outputs:  []string{ascPath},
		Steps:    []report.Step{{Name: "encode", Updates: res.Tried, Survivors: 1}},
		Provides: vals,
		Length:   len(res.Text),
		Updated:  updated,
	})
	return nil
}

// Template converts an image into a template. Without an output path the
// template goes to r.Out.
func (r *Runner) Template(imagePath, outPath string) error {
	t, err := template.Convert(imagePath)
	if err != nil {
		return err
	}
	st := template.Count(t)
	r.Log.Info("template", zap.String("image", imagePath), zap.Int("rows", st.Rows),
		zap.Int("radix13", st.Dots), zap.Int("radix10", st.Stars))

	out := append(t, '\n')
	rs := report.Stage{Name: "template", Inputs: []string{imagePath}, Length: len(out)}
	if outPath == "" {
		if _, err := r.Out.Write(out); err != nil {
			return fmt.Errorf("write template: %w", err)
		}
	} else {
		if err := writeOutput(outPath, out); err != nil {
			return err
		}
		rs.Outputs = []string{outPath}
	}
	r.Report.Add(rs)
	return nil
}
