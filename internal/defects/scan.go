package defects

import (
	"os"
	"sort"
)

// ScanDirectories walks the immediate children of root and collects every
// "<defect>_<charge>" calculation directory into a defect -> charges map.
// Unrelated entries are skipped. A missing root yields an empty map.
func ScanDirectories(root string) map[string][]int {
	found := make(map[string][]int)
	entries, err := os.ReadDir(root)
	if err != nil {
		return found
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		defect, charge, ok := SplitSpeciesDir(e.Name())
		if !ok {
			continue
		}
		found[defect] = append(found[defect], charge)
	}
	for defect := range found {
		sort.Ints(found[defect])
	}
	return found
}

// ChargeOrder returns the deterministic processing order for a defect's
// charge states: ascending magnitude, positive before negative on ties, so a
// neutral charge is always processed first when present.
func ChargeOrder(charges []int) []int {
	ordered := append([]int(nil), charges...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ai, aj := abs(ordered[i]), abs(ordered[j])
		if ai != aj {
			return ai < aj
		}
		return ordered[i] > ordered[j]
	})
	return ordered
}

func abs(q int) int {
	if q < 0 {
		return -q
	}
	return q
}
