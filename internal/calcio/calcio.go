// Package calcio is the read/write boundary to the external relaxation
// codes. Each supported code is one Codec in a closed strategy set exposing
// the same capabilities: read a relaxed structure from a calculation
// directory, write a structure into a new one, and name the ancillary
// settings files worth carrying over when re-seeding.
package calcio

import (
	"fmt"
	"path/filepath"
	"strings"

	"shakedown/internal/structure"
)

// Format selects the external calculation code.
type Format string

const (
	VASP     Format = "vasp"
	CP2K     Format = "cp2k"
	Espresso Format = "espresso"
	FHIAims  Format = "fhi-aims"
	CASTEP   Format = "castep"
)

// Codec is the per-code read/write capability.
type Codec interface {
	Format() Format
	// DisplayName is the human name used in report text, e.g. "VASP".
	DisplayName() string
	// StructureFileName is the file a re-seeded structure is written to.
	StructureFileName() string
	// RelaxedFileName is the file a finished relaxation leaves behind.
	RelaxedFileName() string
	// AncillaryFiles lists the settings files copied verbatim on re-seed.
	AncillaryFiles() []string
	ReadStructureFile(path string) (*structure.Structure, error)
	WriteStructure(s *structure.Structure, dir string) error
}

// ParseFormat resolves a user-supplied code name. Accepts the aliases the
// original tooling recognized (e.g. "quantum_espresso").
func ParseFormat(code string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "", "vasp":
		return VASP, nil
	case "cp2k":
		return CP2K, nil
	case "espresso", "quantum_espresso", "quantum-espresso", "qe":
		return Espresso, nil
	case "fhi-aims", "fhi_aims", "aims":
		return FHIAims, nil
	case "castep":
		return CASTEP, nil
	}
	return "", fmt.Errorf("unrecognized calculation code %q", code)
}

// For returns the codec for a format.
func For(f Format) Codec {
	switch f {
	case CP2K:
		return cp2kCodec{}
	case Espresso:
		return espressoCodec{}
	case FHIAims:
		return aimsCodec{}
	case CASTEP:
		return castepCodec{}
	default:
		return vaspCodec{}
	}
}

// ReadRelaxed loads the relaxed structure left in a calculation directory.
func ReadRelaxed(c Codec, dir string) (*structure.Structure, error) {
	return c.ReadStructureFile(filepath.Join(dir, c.RelaxedFileName()))
}
