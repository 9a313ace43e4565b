package lowering

import (
	"path/filepath"

	"shakedown/internal/calcio"
	"shakedown/internal/defects"
	"shakedown/internal/energies"
)

// absorbOrExclude compares a group's seed structure against one remaining
// charge state's own relaxed structures. A match absorbs the charge into the
// group with the matched label; a definite miss records the charge as
// excluded; failure to parse any structure skips the charge with a warning.
func (e *Engine) absorbOrExclude(g *Group, q int, rec *energies.Record) {
	species := defects.SpeciesDir(g.Defect, q)
	parsedAny := false

	for _, entry := range comparisonOrder(rec) {
		dir := filepath.Join(e.Root, species, entry.Label.DirName())
		st, err := calcio.ReadRelaxed(e.Codec, dir)
		if err != nil {
			continue
		}
		parsedAny = true

		_, same, err := e.Matcher.Match(g.SeedStructure(), st)
		if err != nil {
			e.Rep.Warn("Structure matcher could not match lattices between the reference "+
				"structure (%s) and %s structures: %v.",
				g.SeedStructure().Formula(), entry.Label, err)
			continue
		}
		if !same {
			continue
		}

		e.Rep.Announce("Ground-state structure found for %s with charges %s has also "+
			"previously been found for charge state %d (according to structure matching). "+
			"Adding this charge to the corresponding low-energy defect group.",
			g.Defect, formatCharges(g.Charges), q)

		diff := 0.0
		if !entry.Label.IsUnperturbed {
			if unperturbed, ok := rec.Unperturbed(); ok {
				diff = entry.Energy - unperturbed
			}
		}
		g.absorb(q, entry.Label, diff, st)
		return
	}

	if parsedAny {
		g.Excluded[q] = struct{}{}
		return
	}
	e.Rep.Announce("Problem parsing structures for %s. This species will be skipped and "+
		"will not be included in the low-energy defect list (check relaxation folders "+
		"with %s files are present).", species, e.Codec.RelaxedFileName())
}

// comparisonOrder returns the record's entries in pass-2 priority order:
// the Unperturbed baseline, then the rattled 0.0 distortion, then the
// remaining labels in original record order.
func comparisonOrder(rec *energies.Record) []energies.Entry {
	var unperturbed, rattled, rest []energies.Entry
	for _, entry := range rec.Entries {
		switch {
		case entry.Label.IsUnperturbed:
			unperturbed = append(unperturbed, entry)
		case entry.Label.Fraction == 0:
			rattled = append(rattled, entry)
		default:
			rest = append(rest, entry)
		}
	}
	out := make([]energies.Entry, 0, len(rec.Entries))
	out = append(out, unperturbed...)
	out = append(out, rattled...)
	out = append(out, rest...)
	return out
}
