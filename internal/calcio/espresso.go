package calcio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"shakedown/internal/structure"
)

// espressoCodec stores structures inside Quantum Espresso pw.x input files.
// When the destination already holds a copied template (ancillary settings
// from a previous calculation), only the CELL_PARAMETERS and
// ATOMIC_POSITIONS cards are replaced; the control namelists survive.
type espressoCodec struct{}

func (espressoCodec) Format() Format            { return Espresso }
func (espressoCodec) DisplayName() string       { return "Quantum Espresso" }
func (espressoCodec) StructureFileName() string { return "espresso.pwi" }
func (espressoCodec) RelaxedFileName() string   { return "espresso.pwi" }
func (espressoCodec) AncillaryFiles() []string  { return []string{"espresso.pwi"} }

func (espressoCodec) ReadStructureFile(path string) (*structure.Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := &structure.Structure{}
	lines := strings.Split(string(data), "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "CELL_PARAMETERS"):
			for r := 0; r < 3 && i+1 < len(lines); r++ {
				i++
				row, err := parseFloats(lines[i], 3)
				if err != nil {
					return nil, fmt.Errorf("%s: bad cell row: %w", path, err)
				}
				s.Lattice[r] = [3]float64{row[0], row[1], row[2]}
			}
		case strings.HasPrefix(strings.ToUpper(line), "ATOMIC_POSITIONS"):
			for i+1 < len(lines) {
				fields := strings.Fields(strings.TrimSpace(lines[i+1]))
				if len(fields) < 4 {
					break
				}
				var frac [3]float64
				ok := true
				for k := 0; k < 3; k++ {
					v, err := strconv.ParseFloat(fields[k+1], 64)
					if err != nil {
						ok = false
						break
					}
					frac[k] = v
				}
				if !ok {
					break
				}
				s.Sites = append(s.Sites, structure.Site{Species: fields[0], Frac: frac})
				i++
			}
		}
	}
	if len(s.Sites) == 0 {
		return nil, fmt.Errorf("%s: no atomic positions found", path)
	}
	return s, nil
}

func (c espressoCodec) WriteStructure(s *structure.Structure, dir string) error {
	path := filepath.Join(dir, c.StructureFileName())
	header := defaultEspressoHeader(s)
	if data, err := os.ReadFile(path); err == nil {
		header = stripStructureCards(string(data))
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(header, "\n"))
	b.WriteString("\nCELL_PARAMETERS angstrom\n")
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, "  %16.10f %16.10f %16.10f\n", s.Lattice[i][0], s.Lattice[i][1], s.Lattice[i][2])
	}
	b.WriteString("ATOMIC_POSITIONS crystal\n")
	for _, site := range s.Sites {
		fmt.Fprintf(&b, "%s %16.10f %16.10f %16.10f\n", site.Species, site.Frac[0], site.Frac[1], site.Frac[2])
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func defaultEspressoHeader(s *structure.Structure) string {
	return fmt.Sprintf("&SYSTEM\n  ibrav = 0\n  nat = %d\n  ntyp = %d\n/\n",
		s.NumSites(), len(s.Composition()))
}

// stripStructureCards drops existing CELL_PARAMETERS and ATOMIC_POSITIONS
// cards (and their rows) from a pw.x input, keeping everything else.
func stripStructureCards(text string) string {
	var kept []string
	lines := strings.Split(text, "\n")
	skipRows := 0
	skipPositions := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "CELL_PARAMETERS"):
			skipRows = 3
			skipPositions = false
		case strings.HasPrefix(upper, "ATOMIC_POSITIONS"):
			skipPositions = true
		case skipRows > 0:
			skipRows--
		case skipPositions:
			if fields := strings.Fields(line); len(fields) >= 4 {
				if _, err := strconv.ParseFloat(fields[1], 64); err == nil {
					continue
				}
			}
			skipPositions = false
			kept = append(kept, raw)
		default:
			kept = append(kept, raw)
		}
	}
	return strings.Join(kept, "\n")
}
