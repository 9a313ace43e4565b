package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"shakedown/internal/defects"
)

// scanCmd lists the defects and charge states discovered under a results
// root.
var scanCmd = &cobra.Command{
	Use:   "scan [results-root]",
	Short: "List defects and charge states found in a results tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		found := runScan(root)
		if len(found) == 0 {
			fmt.Println("No defect directories found.")
			return nil
		}
		names := make([]string, 0, len(found))
		for defect := range found {
			names = append(names, defect)
		}
		sort.Strings(names)
		for _, defect := range names {
			fmt.Printf("%s: %v\n", defect, found[defect])
		}
		return nil
	},
}

func runScan(root string) map[string][]int {
	return defects.ScanDirectories(root)
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
