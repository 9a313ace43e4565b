// Package defects holds the shared vocabulary of the consolidation pass:
// defect/charge naming, bond-distortion labels, and results-tree discovery.
package defects

import (
	"fmt"
	"strconv"
	"strings"
)

// UnperturbedLabel is the reserved label for the distortion-free baseline.
const UnperturbedLabel = "Unperturbed"

// Distortion identifies one relaxation within a defect/charge directory:
// either the unperturbed baseline or a signed bond-distortion fraction
// (-0.55 means neighbour bonds compressed by 55%).
type Distortion struct {
	IsUnperturbed bool
	Fraction      float64
}

// Unperturbed returns the baseline label.
func Unperturbed() Distortion {
	return Distortion{IsUnperturbed: true}
}

// Fraction returns a numeric bond-distortion label.
func Fraction(f float64) Distortion {
	return Distortion{Fraction: f}
}

// String renders the label the way energy reports do: "Unperturbed" or the
// bare fraction ("-0.55", "-0.075").
func (d Distortion) String() string {
	if d.IsUnperturbed {
		return UnperturbedLabel
	}
	return strconv.FormatFloat(d.Fraction, 'g', -1, 64)
}

// DirName renders the calculation directory name for this label, e.g.
// "Bond_Distortion_-55.0%" or "Unperturbed".
func (d Distortion) DirName() string {
	if d.IsUnperturbed {
		return UnperturbedLabel
	}
	return fmt.Sprintf("Bond_Distortion_%.1f%%", d.Fraction*100)
}

// ReseedDirName names the re-seeded calculation directory for this label
// imported from another charge state, e.g. "Bond_Distortion_-55.0%_from_0".
func (d Distortion) ReseedDirName(seedCharge int) string {
	if d.IsUnperturbed {
		return fmt.Sprintf("%s_from_%d", UnperturbedLabel, seedCharge)
	}
	return fmt.Sprintf("Bond_Distortion_%.1f%%_from_%d", d.Fraction*100, seedCharge)
}

// ParseLabel interprets an energy-log label. Accepted forms:
// "Unperturbed", "Bond_Distortion_-55.0%", "-55.0%", "-0.55".
// Percent forms are converted to fractions.
func ParseLabel(s string) (Distortion, bool) {
	s = strings.TrimSpace(s)
	if s == UnperturbedLabel {
		return Unperturbed(), true
	}
	s = strings.TrimPrefix(s, "Bond_Distortion_")
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Distortion{}, false
	}
	if percent {
		f /= 100
	}
	return Fraction(f), true
}

// SpeciesDir names the per-charge results directory, e.g. "vac_1_Cd_-2".
func SpeciesDir(defect string, charge int) string {
	return fmt.Sprintf("%s_%d", defect, charge)
}

// SplitSpeciesDir parses a "<defect>_<charge>" directory name. The charge is
// the trailing underscore-delimited signed integer; everything before it is
// the defect name.
func SplitSpeciesDir(name string) (defect string, charge int, ok bool) {
	i := strings.LastIndex(name, "_")
	if i <= 0 || i == len(name)-1 {
		return "", 0, false
	}
	q, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return "", 0, false
	}
	return name[:i], q, true
}
