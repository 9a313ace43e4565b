package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shakedown/internal/lowering"
	"shakedown/internal/report"
	"shakedown/internal/watch"
)

// watchCmd keeps the consolidation current while relaxation results drip in.
var watchCmd = &cobra.Command{
	Use:   "watch [results-root]",
	Short: "Re-run consolidation whenever new energy logs appear",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		cfg, err := loadRunConfig(cmd)
		if err != nil {
			return err
		}

		run := func() {
			rep := report.New(logger, cfg.Verbose)
			engine, err := lowering.New(root, cfg, rep)
			if err != nil {
				logger.Error("engine setup failed", zap.Error(err))
				return
			}
			charges := runScan(root)
			groups := engine.Consolidate(charges)
			if cfg.WriteInputFiles {
				engine.WriteRetestInputs(groups, charges)
			}
			logger.Info("consolidation pass complete",
				zap.Int("defects", len(groups)),
				zap.Int("warnings", len(rep.Warnings())))
		}

		run()

		w, err := watch.New(root, run)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().Float64Var(&minEDiff, "min-e-diff", 0.05,
		"significance threshold in eV for counting a distortion as energy-lowering")
	watchCmd.Flags().Float64Var(&stol, "stol", 0.5,
		"structure-matching site tolerance")
	watchCmd.Flags().Float64Var(&minDist, "min-dist", 0.2,
		"acceptance distance in angstroms for declaring two structures equal")
	watchCmd.Flags().StringVar(&code, "code", "vasp",
		"external calculation code (vasp, cp2k, espresso, fhi-aims, castep)")
	watchCmd.Flags().BoolVar(&writeInputFiles, "write-input-files", false,
		"write re-seeded inputs after each pass")
	rootCmd.AddCommand(watchCmd)
}
