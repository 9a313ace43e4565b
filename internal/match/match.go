// Package match decides whether two relaxed structures represent the same
// atomic arrangement. Matching is composition- and lattice-aware: sites are
// paired species-by-species under periodic boundary conditions and the
// result is the mean paired displacement in angstroms.
//
// Two thresholds gate the outcome. The site tolerance (stol, scaled by the
// average volume per atom) bounds how far a site may sit from its partner
// before pairing fails outright; the acceptance distance (min_dist) decides
// whether a successfully paired result counts as "the same structure".
package match

import (
	"fmt"
	"math"
	"sort"

	"shakedown/internal/structure"
)

// Lattice comparison tolerances, relative length and degrees.
const (
	latticeLengthTol = 0.2
	latticeAngleTol  = 5.0
)

// IncompatibleError reports structures that can never match: different
// stoichiometry, incompatible lattices, or sites that cannot be paired
// within the site tolerance. Callers treat it as "no match" with a warning.
type IncompatibleError struct {
	Reason string
}

func (e *IncompatibleError) Error() string { return e.Reason }

// Matcher compares structures with fixed tolerances.
type Matcher struct {
	Stol    float64 // site tolerance, in units of (volume per atom)^(1/3)
	MinDist float64 // acceptance distance, angstroms
}

// New returns a Matcher with the given site tolerance and acceptance
// distance.
func New(stol, minDist float64) *Matcher {
	return &Matcher{Stol: stol, MinDist: minDist}
}

// Distance pairs the two structures' sites and returns the mean paired
// displacement in angstroms. It returns an IncompatibleError when the
// structures cannot be paired at all.
func (m *Matcher) Distance(a, b *structure.Structure) (float64, error) {
	if a.NumSites() == 0 || b.NumSites() == 0 {
		return 0, &IncompatibleError{Reason: "empty structure"}
	}
	if !structure.SameComposition(a, b) {
		return 0, &IncompatibleError{Reason: fmt.Sprintf(
			"compositions differ (%s vs %s)", a.Formula(), b.Formula())}
	}
	if !latticesCompatible(a.Lattice, b.Lattice) {
		return 0, &IncompatibleError{Reason: "lattices differ beyond tolerance"}
	}

	// stol is expressed relative to the cube root of the average volume
	// per atom, so the tolerance tracks the cell size.
	norm := math.Cbrt(a.Lattice.Volume() / float64(a.NumSites()))
	cutoff := m.Stol * norm

	total := 0.0
	for _, species := range a.SpeciesOrder() {
		sum, _, err := pairSpecies(a, b, species, cutoff)
		if err != nil {
			return 0, err
		}
		total += sum
	}
	return total / float64(a.NumSites()), nil
}

// Match reports whether the two structures are the same arrangement: paired
// within the site tolerance and with mean displacement below the acceptance
// distance. The returned distance is meaningful whenever err is nil.
func (m *Matcher) Match(a, b *structure.Structure) (dist float64, same bool, err error) {
	dist, err = m.Distance(a, b)
	if err != nil {
		return 0, false, err
	}
	return dist, dist < m.MinDist, nil
}

func latticesCompatible(a, b structure.Lattice) bool {
	la, lb := a.Lengths(), b.Lengths()
	for i := 0; i < 3; i++ {
		if math.Abs(la[i]-lb[i]) > latticeLengthTol*la[i] {
			return false
		}
	}
	aa, ab := a.Angles(), b.Angles()
	for i := 0; i < 3; i++ {
		if math.Abs(aa[i]-ab[i]) > latticeAngleTol {
			return false
		}
	}
	return true
}

// pairSpecies greedily assigns the sites of one species, closest pairs
// first, and returns the summed displacement. Assignment is deterministic:
// ties resolve by site index.
func pairSpecies(a, b *structure.Structure, species string, cutoff float64) (sum float64, n int, err error) {
	var ia, ib []int
	for i, s := range a.Sites {
		if s.Species == species {
			ia = append(ia, i)
		}
	}
	for i, s := range b.Sites {
		if s.Species == species {
			ib = append(ib, i)
		}
	}

	type pair struct {
		i, j int
		d    float64
	}
	pairs := make([]pair, 0, len(ia)*len(ib))
	for _, i := range ia {
		for _, j := range ib {
			d := a.Lattice.MinImageDistance(a.Sites[i].Frac, b.Sites[j].Frac)
			pairs = append(pairs, pair{i: i, j: j, d: d})
		}
	}
	sort.Slice(pairs, func(x, y int) bool {
		if pairs[x].d != pairs[y].d {
			return pairs[x].d < pairs[y].d
		}
		if pairs[x].i != pairs[y].i {
			return pairs[x].i < pairs[y].i
		}
		return pairs[x].j < pairs[y].j
	})

	usedA := make(map[int]bool, len(ia))
	usedB := make(map[int]bool, len(ib))
	for _, p := range pairs {
		if usedA[p.i] || usedB[p.j] {
			continue
		}
		if p.d > cutoff {
			return 0, 0, &IncompatibleError{Reason: fmt.Sprintf(
				"could not pair %s sites within site tolerance", species)}
		}
		usedA[p.i] = true
		usedB[p.j] = true
		sum += p.d
		n++
		if n == len(ia) {
			break
		}
	}
	if n < len(ia) {
		return 0, 0, &IncompatibleError{Reason: fmt.Sprintf(
			"could not pair %s sites within site tolerance", species)}
	}
	return sum, n, nil
}
