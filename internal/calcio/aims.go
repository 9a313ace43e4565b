package calcio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shakedown/internal/structure"
)

// aimsCodec handles FHI-aims geometry.in files: lattice_vector lines plus
// atom_frac lines.
type aimsCodec struct{}

func (aimsCodec) Format() Format            { return FHIAims }
func (aimsCodec) DisplayName() string       { return "FHI-aims" }
func (aimsCodec) StructureFileName() string { return "geometry.in" }
func (aimsCodec) RelaxedFileName() string   { return "geometry.in" }
func (aimsCodec) AncillaryFiles() []string  { return []string{"control.in"} }

func (aimsCodec) ReadStructureFile(path string) (*structure.Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := &structure.Structure{}
	row := 0
	for _, raw := range strings.Split(string(data), "\n") {
		fields := strings.Fields(strings.TrimSpace(raw))
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "lattice_vector":
			if row >= 3 || len(fields) < 4 {
				return nil, fmt.Errorf("%s: malformed lattice_vector line", path)
			}
			vals, err := parseFloats(strings.Join(fields[1:4], " "), 3)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			s.Lattice[row] = [3]float64{vals[0], vals[1], vals[2]}
			row++
		case "atom_frac":
			if len(fields) < 5 {
				return nil, fmt.Errorf("%s: malformed atom_frac line", path)
			}
			vals, err := parseFloats(strings.Join(fields[1:4], " "), 3)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			s.Sites = append(s.Sites, structure.Site{
				Species: fields[4],
				Frac:    [3]float64{vals[0], vals[1], vals[2]},
			})
		}
	}
	if row != 3 || len(s.Sites) == 0 {
		return nil, fmt.Errorf("%s: incomplete geometry", path)
	}
	return s, nil
}

func (c aimsCodec) WriteStructure(s *structure.Structure, dir string) error {
	var b strings.Builder
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, "lattice_vector %16.10f %16.10f %16.10f\n",
			s.Lattice[i][0], s.Lattice[i][1], s.Lattice[i][2])
	}
	for _, site := range s.Sites {
		fmt.Fprintf(&b, "atom_frac %16.10f %16.10f %16.10f %s\n",
			site.Frac[0], site.Frac[1], site.Frac[2], site.Species)
	}
	return os.WriteFile(filepath.Join(dir, c.StructureFileName()), []byte(b.String()), 0644)
}
