// Package manifest handles smile.toml project files.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"smile/fault"
)

const FileName = "smile.toml"

// Stage names a build step may run, in their natural order.
var StageNames = []string{"template", "stage1", "stage12", "stage4", "stage3", "stage2"}

// Manifest represents a smile.toml project.
type Manifest struct {
	Project Project `toml:"project"`
	Stages  []Stage `toml:"stage"`

	// Dir is the directory containing smile.toml (set at load time).
	Dir string `toml:"-"`
}

type Project struct {
	Name   string `toml:"name"`
	Config string `toml:"config"`
	Report string `toml:"report"`
}

// Stage is one generator invocation. Args are the positional paths,
// relative to the manifest directory. Set holds numeric overrides keyed
// by their linkage file name (STAGE3BASE = 0x0130).
type Stage struct {
	Name    string           `toml:"name"`
	Args    []string         `toml:"args"`
	Set     map[string]int64 `toml:"set"`
	MaxStep int              `toml:"maxstep"`
	First   bool             `toml:"first"`
}

// Load parses smile.toml from dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(fault.IO, fmt.Sprintf("cannot read %s", path), err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fault.Wrap(fault.IO, fmt.Sprintf("parse error in %s", path), err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Project.Config == "" {
		m.Project.Config = "smile.cfg"
	}
	for i, s := range m.Stages {
		if !known(s.Name) {
			return nil, fault.Range("manifest", "%s: stage %d has unknown name %q", path, i+1, s.Name)
		}
	}
	return &m, nil
}

func known(name string) bool {
	for _, n := range StageNames {
		if n == name {
			return true
		}
	}
	return false
}

// FindAndLoad walks up from startDir to find smile.toml. Returns nil if
// there is none.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Path resolves p against the manifest directory.
func (m *Manifest) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

func (m *Manifest) ConfigPath() string { return m.Path(m.Project.Config) }

func (m *Manifest) ReportPath() string { return m.Path(m.Project.Report) }

// Args returns the stage's positional paths resolved against the
// manifest directory.
func (m *Manifest) Args(s Stage) []string {
	out := make([]string, len(s.Args))
	for i, a := range s.Args {
		out[i] = m.Path(a)
	}
	return out
}
