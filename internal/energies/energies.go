// Package energies parses the per-(defect, charge) energy logs written by
// the relaxation runs: plain text, alternating label and total-energy lines.
package energies

import (
	"os"
	"strconv"
	"strings"

	"shakedown/internal/defects"
	"shakedown/internal/report"
)

// Entry is one (label, energy) pair from an energy log.
type Entry struct {
	Label  defects.Distortion
	Energy float64
}

// Record is the ordered energy series for one defect/charge state. Labels
// are unique; a repeated label overwrites the energy but keeps its original
// position.
type Record struct {
	Entries []Entry
}

// Lookup returns the energy recorded for a label.
func (r *Record) Lookup(label defects.Distortion) (float64, bool) {
	for _, e := range r.Entries {
		if e.Label == label {
			return e.Energy, true
		}
	}
	return 0, false
}

// Unperturbed returns the baseline energy, if present.
func (r *Record) Unperturbed() (float64, bool) {
	return r.Lookup(defects.Unperturbed())
}

// MinDistorted returns the lowest-energy non-Unperturbed entry. Ties break
// toward the first entry in file order.
func (r *Record) MinDistorted() (Entry, bool) {
	var best Entry
	found := false
	for _, e := range r.Entries {
		if e.Label.IsUnperturbed {
			continue
		}
		if !found || e.Energy < best.Energy {
			best = e
			found = true
		}
	}
	return best, found
}

// ParseFile reads an energy log. A missing file or a file with no parseable
// pairs is reported through rep and yields a nil Record; downstream stages
// treat nil as "no data for this charge state".
func ParseFile(path string, rep *report.Reporter) *Record {
	data, err := os.ReadFile(path)
	if err != nil {
		rep.Announce("Path %s does not exist", path)
		rep.Warn("No data parsed from %s, returning None", path)
		return nil
	}
	rec := parse(string(data))
	if len(rec.Entries) == 0 {
		rep.Warn("No data parsed from %s, returning None", path)
		return nil
	}
	return rec
}

// parse walks the label/energy line pairs, resynchronizing on malformed
// lines so one bad pair does not discard the rest of the file.
func parse(text string) *Record {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line != "" {
			lines = append(lines, line)
		}
	}

	rec := &Record{}
	positions := make(map[defects.Distortion]int)
	for i := 0; i+1 < len(lines); {
		label, labelOK := defects.ParseLabel(lines[i])
		energy, err := strconv.ParseFloat(lines[i+1], 64)
		if !labelOK || err != nil {
			i++
			continue
		}
		if at, seen := positions[label]; seen {
			rec.Entries[at].Energy = energy
		} else {
			positions[label] = len(rec.Entries)
			rec.Entries = append(rec.Entries, Entry{Label: label, Energy: energy})
		}
		i += 2
	}
	return rec
}
