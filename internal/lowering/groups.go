// Package lowering is the ground-state consolidation engine: it selects the
// significant energy-lowering distortion per defect charge state and merges
// structurally equivalent ground states discovered across charge states into
// canonical groups, ready for re-seeding the other charge states.
package lowering

import (
	"strconv"
	"strings"

	"shakedown/internal/defects"
	"shakedown/internal/structure"
)

// Candidate is the selected ground state of one (defect, charge) pair: the
// winning distortion label, its energy relative to the unperturbed baseline,
// and the relaxed structure.
type Candidate struct {
	Defect     string
	Charge     int
	Distortion defects.Distortion
	EnergyDiff float64
	Structure  *structure.Structure
}

// Group is one merged ground state of a defect. The four lists run parallel
// in discovery order: the seeding charge first, then every charge absorbed
// later. Excluded records charges whose own relaxed structures were all
// definitively different from this group's seed structure.
type Group struct {
	Defect      string
	Charges     []int
	Distortions []defects.Distortion
	EnergyDiffs []float64
	Structures  []*structure.Structure
	Excluded    map[int]struct{}
}

func newGroup(c *Candidate) *Group {
	g := &Group{Defect: c.Defect, Excluded: make(map[int]struct{})}
	g.absorb(c.Charge, c.Distortion, c.EnergyDiff, c.Structure)
	return g
}

// SeedCharge is the charge state whose candidate seeded this group.
func (g *Group) SeedCharge() int { return g.Charges[0] }

// SeedStructure is the group's representative structure.
func (g *Group) SeedStructure() *structure.Structure { return g.Structures[0] }

func (g *Group) absorb(charge int, d defects.Distortion, diff float64, st *structure.Structure) {
	g.Charges = append(g.Charges, charge)
	g.Distortions = append(g.Distortions, d)
	g.EnergyDiffs = append(g.EnergyDiffs, diff)
	g.Structures = append(g.Structures, st)
}

func (g *Group) hasCharge(q int) bool {
	for _, c := range g.Charges {
		if c == q {
			return true
		}
	}
	return false
}

// ExcludedCharges returns the excluded set as a slice, unordered membership
// made deterministic by ascending charge.
func (g *Group) ExcludedCharges() []int {
	out := make([]int, 0, len(g.Excluded))
	for q := range g.Excluded {
		out = append(out, q)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// formatCharges renders a charge list as "[-2, 0]".
func formatCharges(charges []int) string {
	parts := make([]string, len(charges))
	for i, q := range charges {
		parts[i] = strconv.Itoa(q)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
