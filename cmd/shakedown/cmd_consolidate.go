package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shakedown/internal/config"
	"shakedown/internal/lowering"
	"shakedown/internal/report"
)

var (
	minEDiff        float64
	stol            float64
	minDist         float64
	code            string
	writeInputFiles bool
)

// consolidateCmd runs the full pass: scan, select, merge, re-seed.
var consolidateCmd = &cobra.Command{
	Use:   "consolidate [results-root]",
	Short: "Merge energy-lowering ground states across charge states",
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

		rep := report.New(logger, cfg.Verbose)
		engine, err := lowering.New(root, cfg, rep)
		if err != nil {
			return err
		}

		charges := runScan(root)
		groups := engine.Consolidate(charges)
		for defect, defectGroups := range groups {
			for _, g := range defectGroups {
				fmt.Printf("%s: charges %v, distortions %v, energy diffs %v, excluded %v\n",
					defect, g.Charges, g.Distortions, g.EnergyDiffs, g.ExcludedCharges())
			}
		}
		if cfg.WriteInputFiles {
			engine.WriteRetestInputs(groups, charges)
		}
		return nil
	},
}

// loadRunConfig merges the config file (or defaults) with any explicitly
// set command-line flags. Flags win.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("min-e-diff") {
		cfg.MinEDiff = minEDiff
	}
	if cmd.Flags().Changed("stol") {
		cfg.Stol = stol
	}
	if cmd.Flags().Changed("min-dist") {
		cfg.MinDist = minDist
	}
	if cmd.Flags().Changed("code") {
		cfg.Code = code
	}
	if cmd.Flags().Changed("write-input-files") {
		cfg.WriteInputFiles = writeInputFiles
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = verbose
	}
	return cfg, nil
}

func init() {
	consolidateCmd.Flags().Float64Var(&minEDiff, "min-e-diff", 0.05,
		"significance threshold in eV for counting a distortion as energy-lowering")
	consolidateCmd.Flags().Float64Var(&stol, "stol", 0.5,
		"structure-matching site tolerance")
	consolidateCmd.Flags().Float64Var(&minDist, "min-dist", 0.2,
		"acceptance distance in angstroms for declaring two structures equal")
	consolidateCmd.Flags().StringVar(&code, "code", "vasp",
		"external calculation code (vasp, cp2k, espresso, fhi-aims, castep)")
	consolidateCmd.Flags().BoolVar(&writeInputFiles, "write-input-files", false,
		"write re-seeded inputs for charge states missing each merged ground state")
	rootCmd.AddCommand(consolidateCmd)
}
