package lowering

import (
	"fmt"
	"path/filepath"
	"sort"

	"shakedown/internal/calcio"
	"shakedown/internal/config"
	"shakedown/internal/defects"
	"shakedown/internal/energies"
	"shakedown/internal/match"
	"shakedown/internal/report"
)

// Engine runs the consolidation pass over one results tree.
type Engine struct {
	Root     string
	Codec    calcio.Codec
	Matcher  *match.Matcher
	MinEDiff float64
	Rep      *report.Reporter
}

// New builds an Engine from a results root and run configuration.
func New(root string, cfg *config.Config, rep *report.Reporter) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := calcio.ParseFormat(cfg.Code)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Root:     root,
		Codec:    calcio.For(format),
		Matcher:  match.New(cfg.Stol, cfg.MinDist),
		MinEDiff: cfg.MinEDiff,
		Rep:      rep,
	}, nil
}

// Consolidate finds, per defect, the merged set of energy-lowering ground
// states across the given charge states. A nil or empty map means "scan the
// results tree". Failures (missing logs, unparseable structures, matcher
// incompatibilities) are reported and resolved at the smallest scope; the
// pass always runs to completion.
func (e *Engine) Consolidate(defectCharges map[string][]int) map[string][]*Group {
	if len(defectCharges) == 0 {
		defectCharges = defects.ScanDirectories(e.Root)
	}

	names := make([]string, 0, len(defectCharges))
	for d := range defectCharges {
		names = append(names, d)
	}
	sort.Strings(names)

	groups := make(map[string][]*Group)
	records := make(map[string]map[int]*energies.Record)
	retained := make(map[string][]int)

	for _, defect := range names {
		e.Rep.Announce("\n%s", defect)
		records[defect] = make(map[int]*energies.Record)
		for _, q := range defects.ChargeOrder(defectCharges[defect]) {
			species := defects.SpeciesDir(defect, q)
			rec := energies.ParseFile(e.energiesPath(species), e.Rep)
			if rec == nil {
				e.Rep.Announce("No data parsed for %s. This species will be skipped and will "+
					"not be included in the low-energy defect charge state lists (and so energy "+
					"lowering distortions found for other charge states will not be applied for "+
					"this species).", species)
				continue
			}
			records[defect][q] = rec
			retained[defect] = append(retained[defect], q)

			cand := e.selectCandidate(defect, q, rec)
			if cand == nil {
				continue
			}
			groups[defect] = e.mergeCandidate(groups[defect], cand)
		}
		if len(groups[defect]) == 0 {
			delete(groups, defect)
		}
	}

	e.Rep.Announce("\nComparing and pruning defect structures across charge states...")
	for _, defect := range names {
		for _, g := range groups[defect] {
			for _, q := range retained[defect] {
				if g.hasCharge(q) {
					continue
				}
				e.absorbOrExclude(g, q, records[defect][q])
			}
		}
	}
	return groups
}

// selectCandidate applies the significance test to one charge state's energy
// record and loads the winning structure. Any failure yields nil: a missing
// structure must never produce a false candidate.
func (e *Engine) selectCandidate(defect string, q int, rec *energies.Record) *Candidate {
	species := defects.SpeciesDir(defect, q)
	unperturbed, ok := rec.Unperturbed()
	if !ok {
		e.Rep.Warn("Unperturbed energy not found in %s, cannot determine energy lowering "+
			"for %s. Skipping.", e.energiesPath(species), species)
		return nil
	}
	minEntry, ok := rec.MinDistorted()
	if !ok {
		e.Rep.Warn("No distortion energies found in %s. Skipping %s.",
			e.energiesPath(species), species)
		return nil
	}
	diff := minEntry.Energy - unperturbed
	e.Rep.Detail("%s: Energy difference between minimum, found with %s bond distortion, "+
		"and unperturbed: %.2f eV.", species, minEntry.Label, diff)

	if !(diff < -e.MinEDiff) {
		e.Rep.Detail("No energy lowering distortion with energy difference greater than "+
			"min_e_diff = %.2f eV found for %s with charge %d.", e.MinEDiff, defect, q)
		return nil
	}

	dir := filepath.Join(e.Root, species, minEntry.Label.DirName())
	st, err := calcio.ReadRelaxed(e.Codec, dir)
	if err != nil {
		e.Rep.Announce("Problem parsing final, low-energy structure for %s bond distortion "+
			"of %s at %s. This species will be skipped and will not be included in the "+
			"low-energy defect list (check relaxation calculation and folder).",
			minEntry.Label, species, filepath.Join(dir, e.Codec.RelaxedFileName()))
		return nil
	}
	e.Rep.Announce("Energy lowering distortion found for %s with charge %d. "+
		"Adding to the low-energy defect list.", defect, q)
	return &Candidate{
		Defect:     defect,
		Charge:     q,
		Distortion: minEntry.Label,
		EnergyDiff: diff,
		Structure:  st,
	}
}

// mergeCandidate folds a new candidate into the defect's existing groups,
// first match wins (seed structure before later members, groups in creation
// order). No match starts a singleton group.
func (e *Engine) mergeCandidate(groups []*Group, cand *Candidate) []*Group {
	for _, g := range groups {
		for idx, st := range g.Structures {
			_, same, err := e.Matcher.Match(cand.Structure, st)
			if err != nil {
				e.Rep.Warn("Structure matcher could not match lattices between the "+
					"reference structure (%s) and %s structures: %v.",
					st.Formula(), g.Distortions[idx], err)
				continue
			}
			if same {
				e.Rep.Announce("Low-energy distorted structure for %s already found with "+
					"charge states %s, storing together.",
					defects.SpeciesDir(cand.Defect, cand.Charge), formatCharges(g.Charges))
				g.absorb(cand.Charge, cand.Distortion, cand.EnergyDiff, cand.Structure)
				return groups
			}
		}
	}
	return append(groups, newGroup(cand))
}

func (e *Engine) energiesPath(species string) string {
	return filepath.Join(e.Root, species, fmt.Sprintf("%s.txt", species))
}
