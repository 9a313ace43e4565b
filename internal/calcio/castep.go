package calcio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shakedown/internal/structure"
)

// castepCodec handles CASTEP .cell files: LATTICE_CART and POSITIONS_FRAC
// blocks.
type castepCodec struct{}

func (castepCodec) Format() Format            { return CASTEP }
func (castepCodec) DisplayName() string       { return "CASTEP" }
func (castepCodec) StructureFileName() string { return "castep.cell" }
func (castepCodec) RelaxedFileName() string   { return "castep.cell" }
func (castepCodec) AncillaryFiles() []string  { return []string{"castep.param"} }

func (castepCodec) ReadStructureFile(path string) (*structure.Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := &structure.Structure{}
	lines := strings.Split(string(data), "\n")
	var block string
	row := 0
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "%BLOCK"):
			block = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(upper, "%BLOCK")))
		case strings.HasPrefix(upper, "%ENDBLOCK"):
			block = ""
		case block == "LATTICE_CART":
			if upper == "ANG" {
				continue
			}
			if row >= 3 {
				return nil, fmt.Errorf("%s: too many lattice rows", path)
			}
			vals, err := parseFloats(line, 3)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			s.Lattice[row] = [3]float64{vals[0], vals[1], vals[2]}
			row++
		case block == "POSITIONS_FRAC":
			fields := strings.Fields(line)
			if len(fields) < 4 {
				return nil, fmt.Errorf("%s: malformed positions line", path)
			}
			vals, err := parseFloats(strings.Join(fields[1:4], " "), 3)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			s.Sites = append(s.Sites, structure.Site{
				Species: fields[0],
				Frac:    [3]float64{vals[0], vals[1], vals[2]},
			})
		}
	}
	if row != 3 || len(s.Sites) == 0 {
		return nil, fmt.Errorf("%s: incomplete cell file", path)
	}
	return s, nil
}

func (c castepCodec) WriteStructure(s *structure.Structure, dir string) error {
	var b strings.Builder
	b.WriteString("%BLOCK LATTICE_CART\nANG\n")
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, "  %16.10f %16.10f %16.10f\n", s.Lattice[i][0], s.Lattice[i][1], s.Lattice[i][2])
	}
	b.WriteString("%ENDBLOCK LATTICE_CART\n\n%BLOCK POSITIONS_FRAC\n")
	for _, site := range s.Sites {
		fmt.Fprintf(&b, "%s %16.10f %16.10f %16.10f\n", site.Species, site.Frac[0], site.Frac[1], site.Frac[2])
	}
	b.WriteString("%ENDBLOCK POSITIONS_FRAC\n")
	return os.WriteFile(filepath.Join(dir, c.StructureFileName()), []byte(b.String()), 0644)
}
