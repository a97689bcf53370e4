// Package pipeline runs the stage generators: it resolves parameters from
// flags, the linkage file and built-in defaults, drives the searches and
// writes their artifacts.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"smile/config"
	"smile/fault"
	"smile/report"
	"smile/safety"
	"smile/search"
	"smile/serialize"
)

// Overrides are values requested explicitly on the command line or in the
// manifest, keyed by their linkage file name. They beat the linkage file.
type Overrides map[string]int

// Options are shared by every stage invocation.
type Options struct {
	// Config is the linkage file. Empty runs the stage stand-alone.
	Config  string
	Set     Overrides
	MaxStep int
	First   bool
}

type Runner struct {
	Log     *zap.Logger
	Safety  *safety.Table
	Report  *report.Report
	Program string
	// Out receives artifacts that have no output path.
	Out io.Writer
}

func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		Log:     log,
		Safety:  safety.Default(),
		Report:  report.New(),
		Program: "smile",
		Out:     os.Stdout,
	}
}

// Run dispatches a stage by name with its positional arguments.
func (r *Runner) Run(name string, args []string, o Options) error {
	need := func(min, max int) error {
		if len(args) < min || len(args) > max {
			return fault.Range(name, "want %d to %d arguments, got %d", min, max, len(args))
		}
		return nil
	}
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch name {
	case "stage1":
		if err := need(2, 2); err != nil {
			return err
		}
		return r.Stage1(o, args[0], args[1])
	case "stage12":
		if err := need(0, 1); err != nil {
			return err
		}
		return r.Stage12(o, arg(0))
	case "stage2":
		if err := need(3, 3); err != nil {
			return err
		}
		return r.Stage2(o, args[0], args[1], args[2])
	case "stage3":
		if err := need(2, 2); err != nil {
			return err
		}
		return r.Stage3(o, args[0], args[1])
	case "stage4":
		if err := need(3, 3); err != nil {
			return err
		}
		return r.Stage4(o, args[0], args[1], args[2])
	case "template":
		if err := need(1, 2); err != nil {
			return err
		}
		return r.Template(args[0], arg(1))
	}
	return fault.Range("run", "unknown stage %q", name)
}

// linkage resolves parameters for one stage run.
type linkage struct {
	file *config.File
	set  Overrides
}

func (r *Runner) open(o Options) (*linkage, error) {
	l := &linkage{set: o.Set}
	if o.Config == "" {
		return l, nil
	}
	f, err := config.Load(o.Config)
	if err != nil {
		return nil, err
	}
	l.file = f
	return l, nil
}

// value returns the explicit override, else a non-zero linkage value, else def.
func (l *linkage) value(key string, def int) int {
	if v, ok := l.set[key]; ok {
		return v
	}
	if l.file != nil {
		if v, ok := l.file.Override(key); ok {
			return v
		}
	}
	return def
}

// provide records vals in the linkage file, rewriting it only when
// something changed.
func (r *Runner) provide(stage string, l *linkage, vals ...config.Value) (bool, []report.Value, error) {
	rv := make([]report.Value, len(vals))
	fields := make([]zap.Field, len(vals))
	for i, v := range vals {
		rv[i] = report.Value{Key: v.Key, Value: serialize.Hex(v.Value, v.Width)}
		fields[i] = zap.String(v.Key, rv[i].Value)
	}
	r.Log.Info("provides", append([]zap.Field{zap.String("stage", stage)}, fields...)...)

	if l.file == nil || !l.file.Provide(vals...) {
		return false, rv, nil
	}
	if err := l.file.Save(); err != nil {
		return false, rv, err
	}
	r.Log.Info("updated configuration file", zap.String("path", l.file.Path))
	return true, rv, nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(fault.IO, fmt.Sprintf("failed to load input %q", path), err)
	}
	return data, nil
}

func writeOutput(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fault.Wrap(fault.IO, fmt.Sprintf("failed to save %q", path), err)
	}
	return nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func stepReport(stats []search.Stats) []report.Step {
	out := make([]report.Step, len(stats))
	for i, s := range stats {
		out[i] = report.Step{Name: s.Step, Parents: s.Parents, Updates: s.Updates, Survivors: s.Survivors}
	}
	return out
}
