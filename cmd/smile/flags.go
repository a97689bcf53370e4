package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"smile/config"
	"smile/pipeline"
	"smile/serialize"
)

// hexValue is a numeric flag that accepts 0x prefixed hex or decimal and
// prints its default the way the include files do.
type hexValue struct {
	v     int
	width int
}

var _ pflag.Value = (*hexValue)(nil)

func (h *hexValue) String() string { return serialize.Hex(h.v, h.width) }

func (h *hexValue) Set(s string) error {
	v, ok := config.ParseInt(s)
	if !ok {
		return fmt.Errorf("invalid number %q", s)
	}
	h.v = v
	return nil
}

func (h *hexValue) Type() string { return "hex" }

type param struct {
	key   string
	def   int
	width int
	usage string
}

// linkFlags registers one flag per linkage key plus --config, --maxstep
// and --first, and turns the ones given into pipeline.Options.
type linkFlags struct {
	config  string
	maxStep int
	first   bool
	values  map[string]*hexValue
}

func addLinkFlags(cmd *cobra.Command, search bool, params ...param) *linkFlags {
	lf := &linkFlags{values: map[string]*hexValue{}}
	cmd.Flags().StringVar(&lf.config, "config", "", "Makefile configuration.")
	for _, p := range params {
		v := &hexValue{v: p.def, width: p.width}
		lf.values[p.key] = v
		cmd.Flags().Var(v, p.key, p.usage)
	}
	if search {
		cmd.Flags().IntVar(&lf.maxStep, "maxstep", 6, "Maximum number of number generator steps to reach output byte.")
		cmd.Flags().BoolVar(&lf.first, "first", false, "Stop after first found combo")
	}
	return lf
}

func (lf *linkFlags) options(cmd *cobra.Command) pipeline.Options {
	o := pipeline.Options{Config: lf.config, MaxStep: lf.maxStep, First: lf.first, Set: pipeline.Overrides{}}
	for key, v := range lf.values {
		if cmd.Flags().Changed(key) {
			o.Set[key] = v.v
		}
	}
	return o
}
