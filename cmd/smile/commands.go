package main

import (
	"os"

	"github.com/spf13/cobra"

	"smile/pipeline"
	"smile/serialize"
)

func runStage(name string, lf *linkFlags) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		var o pipeline.Options
		if lf != nil {
			o = lf.options(cmd)
		}
		return runner.Run(name, args, o)
	}
}

func stage1Cmd() *cobra.Command {
	d := pipeline.DefaultStage1Params()
	w := serialize.Word
	cmd := &cobra.Command{
		Use:   "stage1 <stage1.inc> <stage12.com>",
		Short: "Search the stage 1 loader and patch configuration",
		Args:  cobra.ExactArgs(2),
	}
	lf := addLinkFlags(cmd, false,
		param{"STAGE1BASE", d.Stage1Base, w, "Designed start stage1."},
		param{"STAGE3BASE", d.Stage3Base, w, "Designed start stage3."},
		param{"INITSI", d.InitSI, w, "Initial value of %si."},
		param{"INITHASH", d.InitHash, w, "Initial value of (%bx)."},
		param{"SEEDHEAD", d.SeedHead, w, "Word seed for output number generator."},
		param{"SEEDTEXT", d.SeedText, serialize.Byte, "Byte seed for input number generator."},
		param{"STAGE3EOS", d.Stage3EOS, w, "End-of-sequence token."},
	)
	cmd.RunE = runStage("stage1", lf)
	return cmd
}

func stage12Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage12 [stage12.inc]",
		Short: "Search the combined stage 1+2 loader; writes to stdout without a path",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStage("stage12", nil),
	}
}

func stage2Cmd() *cobra.Command {
	d := pipeline.DefaultStage2Params()
	w := serialize.Word
	cmd := &cobra.Command{
		Use:   "stage2 <stage3.asc> <stage3.com> <template.txt>",
		Short: "Encode stage 3 for the stage 2 head decoder",
		Args:  cobra.ExactArgs(3),
	}
	lf := addLinkFlags(cmd, true,
		param{"STAGE3BASE", d.Stage3Base, w, "Designed start stage3."},
		param{"HASHHEAD", d.HashHead, w, "Initial value of hash output number generator."},
		param{"SEEDTEXT", d.SeedText, serialize.Byte, "Byte seed for input number generator."},
		param{"STAGE3OFFSET", d.Stage3Offset, serialize.Auto, "Starting position in template"},
	)
	cmd.RunE = runStage("stage2", lf)
	return cmd
}

func stage3Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage3 <stage2.asc> <stage2.com>",
		Short: "Encode an image for the stage 3 accumulator decoder",
		Args:  cobra.ExactArgs(2),
	}
	lf := addLinkFlags(cmd, true,
		param{"HASHSTAGE3", pipeline.DefaultStage3Hash, serialize.Word, "Initial value of the output word."},
		param{"STAGE4BASE", 0x0100, serialize.Word, "Load address used when replaying the decoder."},
	)
	cmd.RunE = runStage("stage3", lf)
	return cmd
}

func stage4Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage4 <payload.asc> <payload.com> <template.txt>",
		Short: "Lay the payload over the template as radix-13/radix-10 digits",
		Args:  cobra.ExactArgs(3),
	}
	lf := addLinkFlags(cmd, false,
		param{"STAGE4OFFSET", 0, serialize.Auto, "Starting position in template"},
		param{"STAGE3EOS", 0, serialize.Word, "End-of-sequence token, 0 searches for one."},
	)
	cmd.RunE = runStage("stage4", lf)
	return cmd
}

func templateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template <image.png> [template.txt]",
		Short: "Convert an image into a text template",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runStage("template", nil),
	}
}

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [dir]",
		Short: "Run the stages listed in smile.toml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			} else if wd, err := os.Getwd(); err == nil {
				dir = wd
			}
			return runner.BuildDir(dir)
		},
	}
}
