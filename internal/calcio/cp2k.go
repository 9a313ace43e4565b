package calcio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"shakedown/internal/structure"
)

// cp2kCodec reads and writes structures as minimal CIF files, the way the
// original tooling shuttled structures to CP2K.
type cp2kCodec struct{}

func (cp2kCodec) Format() Format            { return CP2K }
func (cp2kCodec) DisplayName() string       { return "CP2K" }
func (cp2kCodec) StructureFileName() string { return "structure.cif" }
func (cp2kCodec) RelaxedFileName() string   { return "structure.cif" }
func (cp2kCodec) AncillaryFiles() []string  { return []string{"cp2k_input.inp"} }

func (cp2kCodec) ReadStructureFile(path string) (*structure.Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := parseCIF(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (c cp2kCodec) WriteStructure(s *structure.Structure, dir string) error {
	return os.WriteFile(filepath.Join(dir, c.StructureFileName()), []byte(formatCIF(s)), 0644)
}

func formatCIF(s *structure.Structure) string {
	lengths := s.Lattice.Lengths()
	angles := s.Lattice.Angles()
	var b strings.Builder
	b.WriteString("data_structure\n")
	fmt.Fprintf(&b, "_cell_length_a %.8f\n", lengths[0])
	fmt.Fprintf(&b, "_cell_length_b %.8f\n", lengths[1])
	fmt.Fprintf(&b, "_cell_length_c %.8f\n", lengths[2])
	fmt.Fprintf(&b, "_cell_angle_alpha %.6f\n", angles[0])
	fmt.Fprintf(&b, "_cell_angle_beta %.6f\n", angles[1])
	fmt.Fprintf(&b, "_cell_angle_gamma %.6f\n", angles[2])
	b.WriteString("loop_\n")
	b.WriteString(" _atom_site_type_symbol\n")
	b.WriteString(" _atom_site_fract_x\n")
	b.WriteString(" _atom_site_fract_y\n")
	b.WriteString(" _atom_site_fract_z\n")
	for _, site := range s.Sites {
		fmt.Fprintf(&b, " %s %.10f %.10f %.10f\n", site.Species, site.Frac[0], site.Frac[1], site.Frac[2])
	}
	return b.String()
}

// parseCIF understands exactly the subset formatCIF writes: cell parameters
// plus one atom_site loop with symbol and fractional columns.
func parseCIF(text string) (*structure.Structure, error) {
	var a, b, c, alpha, beta, gamma float64
	cellSeen := 0
	readCell := func(line, key string, dst *float64) error {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return fmt.Errorf("cif: malformed %s line", key)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("cif: bad %s value: %w", key, err)
		}
		*dst = v
		cellSeen++
		return nil
	}

	s := &structure.Structure{}
	lines := strings.Split(text, "\n")
	inLoop := false
	var columns []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "_cell_length_a"):
			if err := readCell(line, "_cell_length_a", &a); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "_cell_length_b"):
			if err := readCell(line, "_cell_length_b", &b); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "_cell_length_c"):
			if err := readCell(line, "_cell_length_c", &c); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "_cell_angle_alpha"):
			if err := readCell(line, "_cell_angle_alpha", &alpha); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "_cell_angle_beta"):
			if err := readCell(line, "_cell_angle_beta", &beta); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "_cell_angle_gamma"):
			if err := readCell(line, "_cell_angle_gamma", &gamma); err != nil {
				return nil, err
			}
		case line == "loop_":
			inLoop = true
			columns = nil
		case inLoop && strings.HasPrefix(line, "_"):
			columns = append(columns, line)
		case inLoop:
			fields := strings.Fields(line)
			if len(fields) < 4 || len(columns) < 4 {
				continue
			}
			site := structure.Site{Species: fields[0]}
			for k := 0; k < 3; k++ {
				v, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, fmt.Errorf("cif: bad fractional coordinate: %w", err)
				}
				site.Frac[k] = v
			}
			s.Sites = append(s.Sites, site)
		}
	}
	if cellSeen != 6 {
		return nil, fmt.Errorf("cif: incomplete cell parameters")
	}
	if len(s.Sites) == 0 {
		return nil, fmt.Errorf("cif: no atom sites")
	}
	s.Lattice = structure.FromLengthsAngles(a, b, c, alpha, beta, gamma)
	return s, nil
}
