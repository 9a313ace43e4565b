package calcio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"shakedown/internal/structure"
)

type vaspCodec struct{}

func (vaspCodec) Format() Format            { return VASP }
func (vaspCodec) DisplayName() string       { return "VASP" }
func (vaspCodec) StructureFileName() string { return "POSCAR" }
func (vaspCodec) RelaxedFileName() string   { return "CONTCAR" }
func (vaspCodec) AncillaryFiles() []string  { return []string{"INCAR", "KPOINTS", "POTCAR"} }

func (vaspCodec) ReadStructureFile(path string) (*structure.Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParsePOSCAR(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (c vaspCodec) WriteStructure(s *structure.Structure, dir string) error {
	return os.WriteFile(filepath.Join(dir, c.StructureFileName()), []byte(FormatPOSCAR(s)), 0644)
}

// ParsePOSCAR reads VASP 5+ POSCAR/CONTCAR text: comment, scale, lattice,
// species symbols, counts, optional selective dynamics, then coordinates.
func ParsePOSCAR(text string) (*structure.Structure, error) {
	lines := nonEmptyLines(text)
	if len(lines) < 8 {
		return nil, fmt.Errorf("poscar: truncated file (%d lines)", len(lines))
	}
	scale, err := strconv.ParseFloat(strings.Fields(lines[1])[0], 64)
	if err != nil {
		return nil, fmt.Errorf("poscar: bad scale line: %w", err)
	}

	s := &structure.Structure{Comment: strings.TrimSpace(lines[0])}
	for i := 0; i < 3; i++ {
		row, err := parseFloats(lines[2+i], 3)
		if err != nil {
			return nil, fmt.Errorf("poscar: bad lattice row %d: %w", i+1, err)
		}
		for k := 0; k < 3; k++ {
			s.Lattice[i][k] = row[k] * scale
		}
	}

	species := strings.Fields(lines[5])
	countFields := strings.Fields(lines[6])
	if len(species) != len(countFields) {
		return nil, fmt.Errorf("poscar: species/count mismatch")
	}
	counts := make([]int, len(countFields))
	total := 0
	for i, f := range countFields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("poscar: bad species count %q", f)
		}
		counts[i] = n
		total += n
	}

	idx := 7
	if len(lines) > idx && strings.HasPrefix(strings.ToLower(lines[idx]), "s") {
		idx++ // selective dynamics
	}
	if len(lines) <= idx {
		return nil, fmt.Errorf("poscar: missing coordinate mode line")
	}
	cartesian := strings.HasPrefix(strings.ToLower(lines[idx]), "c") ||
		strings.HasPrefix(strings.ToLower(lines[idx]), "k")
	idx++

	if len(lines) < idx+total {
		return nil, fmt.Errorf("poscar: expected %d coordinate lines, have %d", total, len(lines)-idx)
	}
	for si, sp := range species {
		for n := 0; n < counts[si]; n++ {
			row, err := parseFloats(lines[idx], 3)
			if err != nil {
				return nil, fmt.Errorf("poscar: bad coordinate line %d: %w", idx+1, err)
			}
			var frac [3]float64
			if cartesian {
				frac, err = cartToFrac(s.Lattice, [3]float64{row[0] * scale, row[1] * scale, row[2] * scale})
				if err != nil {
					return nil, err
				}
			} else {
				frac = [3]float64{row[0], row[1], row[2]}
			}
			s.Sites = append(s.Sites, structure.Site{Species: sp, Frac: frac})
			idx++
		}
	}
	return s, nil
}

// FormatPOSCAR renders a structure as VASP 5 POSCAR text in direct
// coordinates.
func FormatPOSCAR(s *structure.Structure) string {
	var b strings.Builder
	comment := s.Comment
	if comment == "" {
		comment = s.Formula()
	}
	fmt.Fprintf(&b, "%s\n1.0\n", comment)
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, "  %18.12f %18.12f %18.12f\n", s.Lattice[i][0], s.Lattice[i][1], s.Lattice[i][2])
	}
	order := s.SpeciesOrder()
	comp := s.Composition()
	fmt.Fprintf(&b, "%s\n", strings.Join(order, " "))
	counts := make([]string, len(order))
	for i, sp := range order {
		counts[i] = strconv.Itoa(comp[sp])
	}
	fmt.Fprintf(&b, "%s\nDirect\n", strings.Join(counts, " "))
	for _, sp := range order {
		for _, site := range s.Sites {
			if site.Species != sp {
				continue
			}
			fmt.Fprintf(&b, "  %18.12f %18.12f %18.12f\n", site.Frac[0], site.Frac[1], site.Frac[2])
		}
	}
	return b.String()
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) != "" {
			out = append(out, raw)
		}
	}
	return out
}

func parseFloats(line string, n int) ([]float64, error) {
	fields := strings.Fields(line)
	if len(fields) < n {
		return nil, fmt.Errorf("expected %d numbers, found %d", n, len(fields))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// cartToFrac inverts the lattice matrix to recover fractional coordinates.
func cartToFrac(l structure.Lattice, cart [3]float64) ([3]float64, error) {
	det := l[0][0]*(l[1][1]*l[2][2]-l[1][2]*l[2][1]) -
		l[0][1]*(l[1][0]*l[2][2]-l[1][2]*l[2][0]) +
		l[0][2]*(l[1][0]*l[2][1]-l[1][1]*l[2][0])
	if det == 0 {
		return [3]float64{}, fmt.Errorf("singular lattice")
	}
	inv := [3][3]float64{}
	inv[0][0] = (l[1][1]*l[2][2] - l[1][2]*l[2][1]) / det
	inv[0][1] = (l[0][2]*l[2][1] - l[0][1]*l[2][2]) / det
	inv[0][2] = (l[0][1]*l[1][2] - l[0][2]*l[1][1]) / det
	inv[1][0] = (l[1][2]*l[2][0] - l[1][0]*l[2][2]) / det
	inv[1][1] = (l[0][0]*l[2][2] - l[0][2]*l[2][0]) / det
	inv[1][2] = (l[0][2]*l[1][0] - l[0][0]*l[1][2]) / det
	inv[2][0] = (l[1][0]*l[2][1] - l[1][1]*l[2][0]) / det
	inv[2][1] = (l[0][1]*l[2][0] - l[0][0]*l[2][1]) / det
	inv[2][2] = (l[0][0]*l[1][1] - l[0][1]*l[1][0]) / det
	// frac = cart * inv (row vector convention; lattice rows are vectors)
	var frac [3]float64
	for k := 0; k < 3; k++ {
		frac[k] = cart[0]*inv[0][k] + cart[1]*inv[1][k] + cart[2]*inv[2][k]
	}
	return frac, nil
}
