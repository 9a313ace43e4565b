package lowering

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shakedown/internal/defects"
)

// WriteRetestInputs materializes re-seed inputs: for every merged group and
// every known charge state of its defect not already in the group, a new
// Bond_Distortion_<label>_from_<seed charge> directory is created under that
// charge's results directory, holding the group's representative structure
// in the configured code format plus ancillary settings files copied
// verbatim from the charge's own prior calculation directories. When no
// settings files exist, only the bare structure file is written and the
// fallback is reported.
func (e *Engine) WriteRetestInputs(groups map[string][]*Group, defectCharges map[string][]int) {
	names := make([]string, 0, len(groups))
	for d := range groups {
		names = append(names, d)
	}
	sort.Strings(names)

	for _, defect := range names {
		for _, g := range groups[defect] {
			for _, q := range defectCharges[defect] {
				if g.hasCharge(q) {
					continue
				}
				e.writeRetestInput(g, q)
			}
		}
	}
}

func (e *Engine) writeRetestInput(g *Group, q int) {
	species := defects.SpeciesDir(g.Defect, q)
	speciesDir := filepath.Join(e.Root, species)
	destDir := filepath.Join(speciesDir, g.Distortions[0].ReseedDirName(g.SeedCharge()))

	e.Rep.Announce("Writing low-energy distorted structure to %s", destDir)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		e.Rep.Warn("Could not create %s: %v. Skipping.", destDir, err)
		return
	}

	if !e.copyAncillaryFiles(speciesDir, destDir) {
		e.Rep.Announce("No subfolders with %s input files found in %s, so just writing "+
			"distorted %s file to %s directory.",
			e.Codec.DisplayName(), speciesDir, e.Codec.StructureFileName(), destDir)
	}

	// The structure is written after the ancillary copy so codecs whose
	// structure file doubles as the input template (espresso) can merge
	// into the copied settings.
	if err := e.Codec.WriteStructure(g.SeedStructure(), destDir); err != nil {
		e.Rep.Warn("Could not write structure to %s: %v.", destDir, err)
	}
}

// copyAncillaryFiles searches the charge state's existing calculation
// subdirectories for the codec's settings files and copies the first
// directory's findings verbatim. The Unperturbed directory is preferred;
// remaining directories are tried in lexical order.
func (e *Engine) copyAncillaryFiles(speciesDir, destDir string) bool {
	entries, err := os.ReadDir(speciesDir)
	if err != nil {
		return false
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || filepath.Join(speciesDir, entry.Name()) == destDir {
			continue
		}
		if strings.Contains(entry.Name(), "_from_") {
			continue
		}
		dirs = append(dirs, entry.Name())
	}
	sort.Slice(dirs, func(i, j int) bool {
		if (dirs[i] == defects.UnperturbedLabel) != (dirs[j] == defects.UnperturbedLabel) {
			return dirs[i] == defects.UnperturbedLabel
		}
		return dirs[i] < dirs[j]
	})

	for _, dir := range dirs {
		copied := false
		for _, name := range e.Codec.AncillaryFiles() {
			src := filepath.Join(speciesDir, dir, name)
			if _, err := os.Stat(src); err != nil {
				continue
			}
			if err := copyFile(src, filepath.Join(destDir, name)); err != nil {
				e.Rep.Warn("Could not copy %s to %s: %v.", src, destDir, err)
				continue
			}
			copied = true
		}
		if copied {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
