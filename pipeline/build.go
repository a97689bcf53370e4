package pipeline

import (
	"os"
	"sort"

	"go.uber.org/zap"

	"smile/fault"
	"smile/manifest"
)

// Build runs the stages of m in order against one linkage file, which is
// created empty when missing, and saves the report when m names one.
func (r *Runner) Build(m *manifest.Manifest) error {
	cfg := m.ConfigPath()
	ok, err := exists(cfg)
	if err != nil {
		return fault.Wrap(fault.IO, "stat "+cfg, err)
	}
	if !ok {
		if err := writeOutput(cfg, nil); err != nil {
			return err
		}
		r.Log.Info("created configuration file", zap.String("path", cfg))
	}

	for i, s := range m.Stages {
		set := Overrides{}
		keys := make([]string, 0, len(s.Set))
		for k, v := range s.Set {
			set[k] = int(v)
			keys = append(keys, k)
		}
		sort.Strings(keys)
		r.Log.Info("build stage", zap.Int("index", i+1), zap.String("stage", s.Name), zap.Strings("set", keys))

		o := Options{Config: cfg, Set: set, MaxStep: s.MaxStep, First: s.First}
		if err := r.Run(s.Name, m.Args(s), o); err != nil {
			return err
		}
	}

	if path := m.ReportPath(); path != "" {
		if err := r.Report.Save(path); err != nil {
			return err
		}
		r.Log.Info("wrote report", zap.String("path", path))
	}
	return nil
}

// BuildDir loads the manifest found at or above dir and builds it.
func (r *Runner) BuildDir(dir string) error {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return err
	}
	if m == nil {
		return fault.Wrap(fault.IO, "build", &os.PathError{Op: "find", Path: dir + "/" + manifest.FileName, Err: os.ErrNotExist})
	}
	return r.Build(m)
}
