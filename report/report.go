// Package report records what each generator run searched and produced.
// Reports are written as YAML, or as canonical CBOR when the file name
// ends in .cbor.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"smile/fault"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("report: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type Report struct {
	Tool   string  `yaml:"tool" cbor:"tool"`
	Stages []Stage `yaml:"stages" cbor:"stages"`
}

// Stage is the record of one generator invocation.
type Stage struct {
	Name     string   `yaml:"name" cbor:"name"`
	Inputs   []string `yaml:"inputs,omitempty" cbor:"inputs,omitempty"`
	Outputs  []string `yaml:"outputs,omitempty" cbor:"outputs,omitempty"`
	Steps    []Step   `yaml:"steps,omitempty" cbor:"steps,omitempty"`
	Seeds    []Seed   `yaml:"seeds,omitempty" cbor:"seeds,omitempty"`
	Provides []Value  `yaml:"provides,omitempty" cbor:"provides,omitempty"`
	Length   int      `yaml:"length,omitempty" cbor:"length,omitempty"`
	Updated  bool     `yaml:"updated" cbor:"updated"`
}

// Step holds the counters of one search step or the final selection.
type Step struct {
	Name      string `yaml:"name" cbor:"name"`
	Parents   int    `yaml:"parents" cbor:"parents"`
	Updates   int    `yaml:"updates" cbor:"updates"`
	Survivors int    `yaml:"survivors" cbor:"survivors"`
}

type Seed struct {
	Seed   string `yaml:"seed" cbor:"seed"`
	Length int    `yaml:"length" cbor:"length"`
	Best   bool   `yaml:"best,omitempty" cbor:"best,omitempty"`
}

// Value is a provided linkage key with its rendered value. A slice keeps
// the order the stage produced them in.
type Value struct {
	Key   string `yaml:"key" cbor:"key"`
	Value string `yaml:"value" cbor:"value"`
}

func New() *Report { return &Report{Tool: "smile"} }

func (r *Report) Add(s Stage) { r.Stages = append(r.Stages, s) }

// Marshal encodes r in the format implied by path.
func (r *Report) Marshal(path string) ([]byte, error) {
	if isCBOR(path) {
		return cborEncMode.Marshal(r)
	}
	return yaml.Marshal(r)
}

func isCBOR(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".cbor")
}

// Save writes r to path, creating the directory if needed.
func (r *Report) Save(path string) error {
	data, err := r.Marshal(path)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fault.Wrap(fault.IO, "failed to create report directory", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fault.Wrap(fault.IO, fmt.Sprintf("failed to write report %q", path), err)
	}
	return nil
}

// Load reads a report written by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(fault.IO, fmt.Sprintf("failed to read report %q", path), err)
	}
	var r Report
	if isCBOR(path) {
		err = cbor.Unmarshal(data, &r)
	} else {
		err = yaml.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse report %q: %w", path, err)
	}
	return &r, nil
}
