package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shakedown",
	Short: "shakedown - ground-state consolidation for defect bond distortions",
	Long: `shakedown post-processes bond-distortion relaxation runs of crystal
point defects. It parses the per-charge-state energy series, selects
significant energy-lowering distortions, merges structurally equivalent
ground states discovered across charge states, and re-seeds the merged
structures into the charge states that missed them.`,
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
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", true,
		"per-charge-state informational reporting")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to a shakedown config YAML (defaults apply when absent)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
