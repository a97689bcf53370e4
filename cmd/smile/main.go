package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"smile/fault"
	"smile/pipeline"
)

var (
	verbose    bool
	reportPath string

	logger *zap.Logger
	runner *pipeline.Runner
)

var rootCmd = &cobra.Command{
	Use:   "smile",
	Short: "smile - ascii-safe self-decoding binaries",
	Long: `smile builds programs whose every byte is a lower case letter, digit or
line break. Each stage generator searches the multiply/xor number generator
space of one decoder stage and links its findings to the next stage through
a KEY=value configuration file.`,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		runner = pipeline.NewRunner(logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if reportPath != "" {
			if err := runner.Report.Save(reportPath); err != nil {
				return err
			}
			logger.Info("wrote report", zap.String("path", reportPath))
		}
		_ = logger.Sync()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&reportPath, "report", "", "Write a run report (.yaml or .cbor)")

	rootCmd.AddCommand(stage1Cmd())
	rootCmd.AddCommand(stage12Cmd())
	rootCmd.AddCommand(stage2Cmd())
	rootCmd.AddCommand(stage3Cmd())
	rootCmd.AddCommand(stage4Cmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(buildCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("failed",
				zap.String("kind", fault.KindOf(err).String()),
				zap.Error(err),
				zap.Strings("detail", fault.Details(err)))
			_ = logger.Sync()
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
