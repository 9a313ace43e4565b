package lowering

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"shakedown/internal/calcio"
	"shakedown/internal/config"
	"shakedown/internal/defects"
	"shakedown/internal/report"
	"shakedown/internal/structure"
)

// baseStructure is a 10 Å cubic CdTe cell shared by the engine fixtures.
func baseStructure() *structure.Structure {
	return &structure.Structure{
		Lattice: structure.Lattice{{10, 0, 0}, {0, 10, 0}, {0, 0, 10}},
		Sites: []structure.Site{
			{Species: "Cd", Frac: [3]float64{0, 0, 0}},
			{Species: "Cd", Frac: [3]float64{0.5, 0.5, 0}},
			{Species: "Te", Frac: [3]float64{0.5, 0, 0.5}},
			{Species: "Te", Frac: [3]float64{0, 0.5, 0.5}},
		},
	}
}

// displaced shifts the first site along a by delta (fractional). delta=0.015
// keeps the mean displacement under the default matching threshold,
// delta=0.12 pushes it well over.
func displaced(delta float64) *structure.Structure {
	s := baseStructure()
	s.Sites[0].Frac[0] += delta
	return s
}

func writeLog(t *testing.T, root, species string, pairs ...string) {
	t.Helper()
	dir := filepath.Join(root, species)
	require.NoError(t, os.MkdirAll(dir, 0755))
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "%s\n%s\n", pairs[i], pairs[i+1])
	}
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, species+".txt"), []byte(b.String()), 0644))
}

func writeRelaxed(t *testing.T, root, species, label string, s *structure.Structure) {
	t.Helper()
	dir := filepath.Join(root, species, label)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "CONTCAR"), []byte(calcio.FormatPOSCAR(s)), 0644))
}

func newTestEngine(t *testing.T, root string, cfg *config.Config) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	rep := report.New(zaptest.NewLogger(t), cfg.Verbose)
	eng, err := New(root, cfg, rep)
	require.NoError(t, err)
	return eng
}

func containsSubstring(msgs []string, sub string) bool {
	for _, m := range msgs {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

func TestConsolidate_SingleSignificantDistortion(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-55.0%", "-205.76",
		"Unperturbed", "-205.00")
	writeRelaxed(t, root, "vac_1_Cd_0", "Bond_Distortion_-55.0%", displaced(0.015))

	eng := newTestEngine(t, root, nil)
	groups := eng.Consolidate(map[string][]int{"vac_1_Cd": {0}})

	require.Len(t, groups["vac_1_Cd"], 1)
	g := groups["vac_1_Cd"][0]
	assert.Equal(t, []int{0}, g.Charges)
	assert.Equal(t, defects.Fraction(-0.55), g.Distortions[0])
	assert.InDelta(t, -0.76, g.EnergyDiffs[0], 1e-9)
	assert.True(t, containsSubstring(eng.Rep.Infos(),
		"Energy lowering distortion found for vac_1_Cd with charge 0"))
}

func TestConsolidate_ExactThresholdIsNotSignificant(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-20.0%", "-205.05",
		"Unperturbed", "-205.00")
	writeRelaxed(t, root, "vac_1_Cd_0", "Bond_Distortion_-20.0%", displaced(0.015))

	eng := newTestEngine(t, root, nil)
	groups := eng.Consolidate(map[string][]int{"vac_1_Cd": {0}})

	assert.Empty(t, groups)
}

func TestConsolidate_MissingLogWarnsOnceAndSkips(t *testing.T) {
	root := t.TempDir()
	eng := newTestEngine(t, root, nil)
	groups := eng.Consolidate(map[string][]int{"vac_1_Cd": {0}})

	assert.Empty(t, groups)
	var hits int
	logPath := filepath.Join(root, "vac_1_Cd_0", "vac_1_Cd_0.txt")
	for _, w := range eng.Rep.Warnings() {
		if strings.Contains(w, logPath) {
			hits++
		}
	}
	assert.Equal(t, 1, hits)
	assert.True(t, containsSubstring(eng.Rep.Infos(), "No data parsed for vac_1_Cd_0"))
}

func TestConsolidate_MissingUnperturbedEnergySkips(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-55.0%", "-205.76")

	eng := newTestEngine(t, root, nil)
	groups := eng.Consolidate(map[string][]int{"vac_1_Cd": {0}})

	assert.Empty(t, groups)
	assert.True(t, containsSubstring(eng.Rep.Warnings(),
		"Unperturbed energy not found"))
}

func TestConsolidate_UnparseableStructureYieldsNoCandidate(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-55.0%", "-205.76",
		"Unperturbed", "-205.00")
	// significant energy drop but no relaxed structure on disk

	eng := newTestEngine(t, root, nil)
	groups := eng.Consolidate(map[string][]int{"vac_1_Cd": {0}})

	assert.Empty(t, groups)
	assert.True(t, containsSubstring(eng.Rep.Infos(),
		"Problem parsing final, low-energy structure"))
}

func TestConsolidate_SameDistortionTwoChargesStoredTogether(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-55.0%", "-205.76",
		"Unperturbed", "-205.00")
	writeRelaxed(t, root, "vac_1_Cd_0", "Bond_Distortion_-55.0%", displaced(0.015))

	writeLog(t, root, "vac_1_Cd_-1",
		"Bond_Distortion_-7.5%", "-206.70",
		"Unperturbed", "-205.80")
	writeRelaxed(t, root, "vac_1_Cd_-1", "Bond_Distortion_-7.5%", baseStructure())

	eng := newTestEngine(t, root, nil)
	groups := eng.Consolidate(map[string][]int{"vac_1_Cd": {0, -1}})

	require.Len(t, groups["vac_1_Cd"], 1)
	g := groups["vac_1_Cd"][0]
	assert.Equal(t, []int{0, -1}, g.Charges)
	assert.Equal(t, []defects.Distortion{
		defects.Fraction(-0.55), defects.Fraction(-0.075)}, g.Distortions)
	assert.InDelta(t, -0.76, g.EnergyDiffs[0], 1e-9)
	assert.InDelta(t, -0.90, g.EnergyDiffs[1], 1e-9)
	assert.True(t, containsSubstring(eng.Rep.Infos(),
		"Low-energy distorted structure for vac_1_Cd_-1 already found with charge states [0], storing together"))
}

func TestConsolidate_PruneAbsorbsMatchingUnperturbed(t *testing.T) {
	root := t.TempDir()
	seed := displaced(0.12)
	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-55.0%", "-205.76",
		"Unperturbed", "-205.00")
	writeRelaxed(t, root, "vac_1_Cd_0", "Bond_Distortion_-55.0%", seed)

	// charge -1 found no significant distortion of its own, but its
	// unperturbed ground state is the same structure the neutral charge
	// reached by distorting
	writeLog(t, root, "vac_1_Cd_-1",
		"Bond_Distortion_-7.5%", "-205.70",
		"Unperturbed", "-205.80")
	writeRelaxed(t, root, "vac_1_Cd_-1", "Unperturbed", seed)
	writeRelaxed(t, root, "vac_1_Cd_-1", "Bond_Distortion_-7.5%", baseStructure())

	eng := newTestEngine(t, root, nil)
	groups := eng.Consolidate(map[string][]int{"vac_1_Cd": {0, -1}})

	require.Len(t, groups["vac_1_Cd"], 1)
	g := groups["vac_1_Cd"][0]
	assert.Equal(t, []int{0, -1}, g.Charges)
	assert.Equal(t, defects.Unperturbed(), g.Distortions[1])
	assert.InDelta(t, 0.0, g.EnergyDiffs[1], 1e-12)
	assert.Empty(t, g.ExcludedCharges())
	assert.True(t, containsSubstring(eng.Rep.Infos(),
		"has also previously been found for charge state -1"))
}

func TestConsolidate_PruneExcludesDefiniteMismatch(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-55.0%", "-205.76",
		"Unperturbed", "-205.00")
	writeRelaxed(t, root, "vac_1_Cd_0", "Bond_Distortion_-55.0%", displaced(0.12))

	writeLog(t, root, "vac_1_Cd_-1",
		"Bond_Distortion_-7.5%", "-205.70",
		"Unperturbed", "-205.80")
	writeRelaxed(t, root, "vac_1_Cd_-1", "Unperturbed", baseStructure())
	writeRelaxed(t, root, "vac_1_Cd_-1", "Bond_Distortion_-7.5%", baseStructure())

	eng := newTestEngine(t, root, nil)
	groups := eng.Consolidate(map[string][]int{"vac_1_Cd": {0, -1}})

	require.Len(t, groups["vac_1_Cd"], 1)
	g := groups["vac_1_Cd"][0]
	assert.Equal(t, []int{0}, g.Charges)
	assert.Equal(t, []int{-1}, g.ExcludedCharges())
}

func TestConsolidate_PruneSkipsChargeWithoutStructures(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-55.0%", "-205.76",
		"Unperturbed", "-205.00")
	writeRelaxed(t, root, "vac_1_Cd_0", "Bond_Distortion_-55.0%", displaced(0.12))

	writeLog(t, root, "vac_1_Cd_-1",
		"Bond_Distortion_-7.5%", "-205.70",
		"Unperturbed", "-205.80")
	// no relaxed structures on disk for charge -1

	eng := newTestEngine(t, root, nil)
	groups := eng.Consolidate(map[string][]int{"vac_1_Cd": {0, -1}})

	require.Len(t, groups["vac_1_Cd"], 1)
	g := groups["vac_1_Cd"][0]
	assert.Equal(t, []int{0}, g.Charges)
	assert.Empty(t, g.ExcludedCharges())
	assert.True(t, containsSubstring(eng.Rep.Infos(),
		"Problem parsing structures for vac_1_Cd_-1"))
}

func TestConsolidate_ThreeChargeScenario(t *testing.T) {
	root := t.TempDir()
	deep := displaced(0.12)

	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-55.0%", "-205.76",
		"Bond_Distortion_-20.0%", "-205.05",
		"Bond_Distortion_0.0%", "-205.0034",
		"Unperturbed", "-205.00")
	writeRelaxed(t, root, "vac_1_Cd_0", "Bond_Distortion_-55.0%", deep)
	writeRelaxed(t, root, "vac_1_Cd_0", "Bond_Distortion_0.0%", baseStructure())
	writeRelaxed(t, root, "vac_1_Cd_0", "Unperturbed", baseStructure())

	// insignificant drop, retained for pruning only
	writeLog(t, root, "vac_1_Cd_-1",
		"Bond_Distortion_-7.5%", "-205.70",
		"Unperturbed", "-205.68")
	writeRelaxed(t, root, "vac_1_Cd_-1", "Unperturbed", baseStructure())
	writeRelaxed(t, root, "vac_1_Cd_-1", "Bond_Distortion_-7.5%", baseStructure())

	writeLog(t, root, "vac_1_Cd_-2",
		"Bond_Distortion_-35.0%", "-206.00",
		"Unperturbed", "-205.80")
	writeRelaxed(t, root, "vac_1_Cd_-2", "Bond_Distortion_-35.0%", deep)
	writeRelaxed(t, root, "vac_1_Cd_-2", "Unperturbed", baseStructure())

	eng := newTestEngine(t, root, nil)
	groups := eng.Consolidate(map[string][]int{"vac_1_Cd": {0, -1, -2}})

	require.Len(t, groups["vac_1_Cd"], 1)
	g := groups["vac_1_Cd"][0]
	// ChargeOrder visits 0, -1, -2: neutral seeds, -2 merges in phase 1,
	// -1 is definitively different and lands in the excluded set
	assert.Equal(t, []int{0, -2}, g.Charges)
	assert.Equal(t, []defects.Distortion{
		defects.Fraction(-0.55), defects.Fraction(-0.35)}, g.Distortions)
	assert.InDelta(t, -0.76, g.EnergyDiffs[0], 1e-9)
	assert.InDelta(t, -0.20, g.EnergyDiffs[1], 1e-9)
	assert.Equal(t, []int{-1}, g.ExcludedCharges())
}

func TestConsolidate_TightMinDistSplitsGroups(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-55.0%", "-205.76",
		"Unperturbed", "-205.00")
	writeRelaxed(t, root, "vac_1_Cd_0", "Bond_Distortion_-55.0%", displaced(0.015))

	writeLog(t, root, "vac_1_Cd_-1",
		"Bond_Distortion_-7.5%", "-206.70",
		"Unperturbed", "-205.80")
	writeRelaxed(t, root, "vac_1_Cd_-1", "Bond_Distortion_-7.5%", baseStructure())

	cfg := config.DefaultConfig()
	cfg.MinDist = 0.01
	eng := newTestEngine(t, root, cfg)
	groups := eng.Consolidate(map[string][]int{"vac_1_Cd": {0, -1}})

	require.Len(t, groups["vac_1_Cd"], 2)
	assert.Equal(t, []int{0}, groups["vac_1_Cd"][0].Charges)
	assert.Equal(t, []int{-1}, groups["vac_1_Cd"][1].Charges)
}

func TestConsolidate_ScansRootWhenNoChargesGiven(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-55.0%", "-205.76",
		"Unperturbed", "-205.00")
	writeRelaxed(t, root, "vac_1_Cd_0", "Bond_Distortion_-55.0%", displaced(0.015))

	eng := newTestEngine(t, root, nil)
	groups := eng.Consolidate(nil)

	require.Len(t, groups["vac_1_Cd"], 1)
	assert.Equal(t, []int{0}, groups["vac_1_Cd"][0].Charges)
}

func TestConsolidate_Deterministic(t *testing.T) {
	root := t.TempDir()
	deep := displaced(0.12)
	writeLog(t, root, "vac_1_Cd_0",
		"Bond_Distortion_-55.0%", "-205.76",
		"Unperturbed", "-205.00")
	writeRelaxed(t, root, "vac_1_Cd_0", "Bond_Distortion_-55.0%", deep)
	writeLog(t, root, "vac_1_Cd_-2",
		"Bond_Distortion_-35.0%", "-206.00",
		"Unperturbed", "-205.80")
	writeRelaxed(t, root, "vac_1_Cd_-2", "Bond_Distortion_-35.0%", deep)

	input := map[string][]int{"vac_1_Cd": {-2, 0}}

	first := newTestEngine(t, root, nil).Consolidate(input)
	second := newTestEngine(t, root, nil).Consolidate(input)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("consolidation is not deterministic (-first +second):\n%s", diff)
	}
}
