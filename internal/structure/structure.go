// Package structure models periodic crystal structures: a lattice in
// angstroms plus fractionally-coordinated sites. It carries just enough
// geometry for structure matching and for the calculation-code codecs.
package structure

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Lattice holds the three lattice vectors as rows, in angstroms.
type Lattice [3][3]float64

// Site is one atom: species symbol plus fractional coordinates.
type Site struct {
	Species string
	Frac    [3]float64
}

// Structure is a periodic arrangement of atoms.
type Structure struct {
	Comment string
	Lattice Lattice
	Sites   []Site
}

// Volume returns the cell volume in cubic angstroms.
func (l Lattice) Volume() float64 {
	return math.Abs(l[0][0]*(l[1][1]*l[2][2]-l[1][2]*l[2][1]) -
		l[0][1]*(l[1][0]*l[2][2]-l[1][2]*l[2][0]) +
		l[0][2]*(l[1][0]*l[2][1]-l[1][1]*l[2][0]))
}

// Lengths returns the lengths of the three lattice vectors.
func (l Lattice) Lengths() [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = math.Sqrt(l[i][0]*l[i][0] + l[i][1]*l[i][1] + l[i][2]*l[i][2])
	}
	return out
}

// Angles returns the cell angles alpha, beta, gamma in degrees.
func (l Lattice) Angles() [3]float64 {
	lengths := l.Lengths()
	dot := func(i, j int) float64 {
		return l[i][0]*l[j][0] + l[i][1]*l[j][1] + l[i][2]*l[j][2]
	}
	angle := func(i, j int) float64 {
		c := dot(i, j) / (lengths[i] * lengths[j])
		c = math.Max(-1, math.Min(1, c))
		return math.Acos(c) * 180 / math.Pi
	}
	return [3]float64{angle(1, 2), angle(0, 2), angle(0, 1)}
}

// Cartesian converts fractional coordinates to cartesian angstroms.
func (l Lattice) Cartesian(frac [3]float64) [3]float64 {
	var out [3]float64
	for k := 0; k < 3; k++ {
		out[k] = frac[0]*l[0][k] + frac[1]*l[1][k] + frac[2]*l[2][k]
	}
	return out
}

// MinImageDistance returns the shortest distance in angstroms between two
// fractional positions under periodic boundary conditions, scanning the
// neighbouring images of the cell.
func (l Lattice) MinImageDistance(a, b [3]float64) float64 {
	var d [3]float64
	for k := 0; k < 3; k++ {
		d[k] = b[k] - a[k]
		d[k] -= math.Round(d[k])
	}
	best := math.Inf(1)
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			for k := -1; k <= 1; k++ {
				cart := l.Cartesian([3]float64{d[0] + float64(i), d[1] + float64(j), d[2] + float64(k)})
				r := math.Sqrt(cart[0]*cart[0] + cart[1]*cart[1] + cart[2]*cart[2])
				if r < best {
					best = r
				}
			}
		}
	}
	return best
}

// NumSites returns the atom count.
func (s *Structure) NumSites() int { return len(s.Sites) }

// Composition returns species -> atom count.
func (s *Structure) Composition() map[string]int {
	comp := make(map[string]int)
	for _, site := range s.Sites {
		comp[site.Species]++
	}
	return comp
}

// SpeciesOrder returns the distinct species in first-appearance order.
func (s *Structure) SpeciesOrder() []string {
	var order []string
	seen := make(map[string]bool)
	for _, site := range s.Sites {
		if !seen[site.Species] {
			seen[site.Species] = true
			order = append(order, site.Species)
		}
	}
	return order
}

// Formula renders the composition alphabetically, e.g. "Cd31 Te32".
func (s *Structure) Formula() string {
	comp := s.Composition()
	species := make([]string, 0, len(comp))
	for sp := range comp {
		species = append(species, sp)
	}
	sort.Strings(species)
	parts := make([]string, len(species))
	for i, sp := range species {
		parts[i] = fmt.Sprintf("%s%d", sp, comp[sp])
	}
	return strings.Join(parts, " ")
}

// SameComposition reports whether two structures have identical stoichiometry.
func SameComposition(a, b *Structure) bool {
	ca, cb := a.Composition(), b.Composition()
	if len(ca) != len(cb) {
		return false
	}
	for sp, n := range ca {
		if cb[sp] != n {
			return false
		}
	}
	return true
}

// FromLengthsAngles reconstructs a lattice in the standard orientation from
// cell lengths (angstroms) and angles (degrees). Used by codecs that store
// the cell as a, b, c, alpha, beta, gamma.
func FromLengthsAngles(a, b, c, alpha, beta, gamma float64) Lattice {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	ca, cb, cg := math.Cos(rad(alpha)), math.Cos(rad(beta)), math.Cos(rad(gamma))
	sg := math.Sin(rad(gamma))
	var l Lattice
	l[0] = [3]float64{a, 0, 0}
	l[1] = [3]float64{b * cg, b * sg, 0}
	cx := c * cb
	cy := c * (ca - cb*cg) / sg
	cz := math.Sqrt(math.Max(0, c*c-cx*cx-cy*cy))
	l[2] = [3]float64{cx, cy, cz}
	return l
}
