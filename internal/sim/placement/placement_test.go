package placement

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"blockterrain.ai/internal/sim/grid"
	"blockterrain.ai/internal/sim/noise"
)

func filledField(t *testing.T, s grid.Size, v float64) *noise.Field {
	t.Helper()
	vals := make([]float64, s.Len())
	for i := range vals {
		vals[i] = v
	}
	f, err := noise.NewField(s, vals)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	return f
}

func simplexField(t *testing.T, s grid.Size, seed uint64, threshold float64) *noise.Field {
	t.Helper()
	src, err := noise.NewSource(noise.SourceOpenSimplex, seed)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	scale := []float64{4, 4}
	if s.Is3D() {
		scale = append(scale, 4)
	}
	f, err := noise.Generate(context.Background(), src, noise.Params{Size: s, Scale: scale, Threshold: &threshold})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.CountActive() == 0 {
		t.Fatalf("test field is empty")
	}
	return f
}

// checkPartition asserts that every active cell is covered by exactly one
// block, no inactive cell is covered, and counts match the level grid.
func checkPartition(t *testing.T, f *noise.Field, a *Assignment) {
	t.Helper()
	counts := make([]int, len(a.Counts))
	for i := range a.Levels {
		if l := a.Levels[i]; l != Unassigned {
			counts[l]++
			if a.Owner[i] != i {
				t.Fatalf("representative %d owned by %d", i, a.Owner[i])
			}
		}
		if f.Active(i) {
			if a.CoveredLevel(i) == Unassigned {
				t.Fatalf("active cell %v not covered", f.Size.Coord(i))
			}
		} else if a.Levels[i] != Unassigned || a.Owner[i] != Unassigned {
			t.Fatalf("inactive cell %v carries level %d owner %d", f.Size.Coord(i), a.Levels[i], a.Owner[i])
		}
		if o := a.Owner[i]; o != Unassigned && a.Levels[o] == Unassigned {
			t.Fatalf("cell %d owned by non-representative %d", i, o)
		}
	}
	if diff := cmp.Diff(counts, a.Counts); diff != "" {
		t.Fatalf("counts mismatch (-grid +reported):\n%s", diff)
	}
}

// checkNonOverlap asserts footprints of block size s centered on each
// representative are pairwise disjoint.
func checkNonOverlap(t *testing.T, a *Assignment, levels LevelSet) {
	t.Helper()
	var reps []int
	for i, l := range a.Levels {
		if l != Unassigned {
			reps = append(reps, i)
		}
	}
	for x := 0; x < len(reps); x++ {
		for y := x + 1; y < len(reps); y++ {
			ia, ib := reps[x], reps[y]
			la, lb := a.Levels[ia], a.Levels[ib]
			d := grid.Chebyshev(a.Size.Coord(ia), a.Size.Coord(ib))
			if 2*d < levels.BlockSize(la)+levels.BlockSize(lb) {
				t.Fatalf("blocks overlap: %v@%d and %v@%d at distance %d",
					a.Size.Coord(ia), la, a.Size.Coord(ib), lb, d)
			}
		}
	}
}

func TestLevelSet_Validate(t *testing.T) {
	bad := []LevelSet{nil, {0, 1}, {1, 1}, {2, 1}, {-1}}
	for _, l := range bad {
		if err := l.Validate(); !errors.Is(err, ErrInvalidLevelConfiguration) {
			t.Fatalf("%v: expected ErrInvalidLevelConfiguration, got %v", l, err)
		}
	}
	if err := (LevelSet{1, 2, 4}).Validate(); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}
	if diff := cmp.Diff(LevelSet{1, 2, 4, 8}, PowersOfTwo(4)); diff != "" {
		t.Fatalf("PowersOfTwo mismatch:\n%s", diff)
	}
}

func TestEviction_BoundaryScenario(t *testing.T) {
	s := grid.Size{X: 4, Y: 4}
	f := filledField(t, s, 1)
	levels := LevelSet{1, 2}
	a, err := Eviction{Policy: Diameter{}}.Place(context.Background(), f, levels, 1)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	// Outer radius 4 spans the whole 4x4 grid, so one pick empties level 1.
	if a.Counts[1] != 1 {
		t.Fatalf("level-1 count=%d want 1", a.Counts[1])
	}
	big := a.Representatives(1)[0]
	for _, i := range a.Representatives(0) {
		if d := grid.Chebyshev(s.Coord(i), s.Coord(big)); d <= 2 {
			t.Fatalf("level-0 cell %v inside level-1 reserve (distance %d)", s.Coord(i), d)
		}
	}
	checkPartition(t, f, a)
	checkNonOverlap(t, a, levels)
	if got := a.Assigned(); got != a.Counts[0]+a.Counts[1] {
		t.Fatalf("Assigned=%d counts=%v", got, a.Counts)
	}
}

func TestEviction_EmptyField(t *testing.T) {
	f := filledField(t, grid.Size{X: 6, Y: 5, Z: 3}, 0)
	a, err := Eviction{}.Place(context.Background(), f, LevelSet{1, 2, 4}, 9)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if diff := cmp.Diff([]int{0, 0, 0}, a.Counts); diff != "" {
		t.Fatalf("counts:\n%s", diff)
	}
	for i, l := range a.Levels {
		if l != Unassigned || a.Owner[i] != Unassigned {
			t.Fatalf("cell %d assigned in empty field", i)
		}
	}
}

func TestEviction_SingleLevelIsAllFinest(t *testing.T) {
	f := simplexField(t, grid.Size{X: 10, Y: 10}, 3, 0.4)
	a, err := Eviction{}.Place(context.Background(), f, LevelSet{1}, 3)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if a.Counts[0] != f.CountActive() {
		t.Fatalf("level-0 count=%d want %d", a.Counts[0], f.CountActive())
	}
	checkPartition(t, f, a)
}

func TestEviction_NonOverlapAndPartition(t *testing.T) {
	for _, s := range []grid.Size{{X: 24, Y: 20}, {X: 10, Y: 8, Z: 9}} {
		f := simplexField(t, s, 11, 0.45)
		levels := LevelSet{1, 2, 3}
		for seed := uint64(1); seed <= 4; seed++ {
			a, err := Eviction{Policy: Diameter{}}.Place(context.Background(), f, levels, seed)
			if err != nil {
				t.Fatalf("Place: %v", err)
			}
			checkPartition(t, f, a)
			checkNonOverlap(t, a, levels)
		}
	}
}

func TestEviction_FootprintPolicyPartition(t *testing.T) {
	f := simplexField(t, grid.Size{X: 12, Y: 12, Z: 12}, 5, 0.4)
	levels := LevelSet{1, 3, 5, 9}
	a, err := Eviction{Policy: Footprint{Penetration: 1}}.Place(context.Background(), f, levels, 77)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	checkPartition(t, f, a)
	if a.Counts[3] == 0 {
		t.Fatalf("expected some level-3 blocks, counts=%v", a.Counts)
	}
}

func TestEviction_DeterministicAndSeedSensitive(t *testing.T) {
	f := filledField(t, grid.Size{X: 24, Y: 24}, 1)
	levels := LevelSet{1, 2, 4}
	a, err := Eviction{}.Place(context.Background(), f, levels, 1234)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	b, err := Eviction{}.Place(context.Background(), f, levels, 1234)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same seed differs:\n%s", diff)
	}
	c, err := Eviction{}.Place(context.Background(), f, levels, 4321)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if cmp.Equal(a.Levels, c.Levels) {
		t.Fatalf("different seeds produced identical assignments")
	}
}

func TestEviction_RejectsBadLevels(t *testing.T) {
	f := filledField(t, grid.Size{X: 2, Y: 2}, 1)
	if _, err := (Eviction{}).Place(context.Background(), f, LevelSet{2, 2}, 1); !errors.Is(err, ErrInvalidLevelConfiguration) {
		t.Fatalf("expected ErrInvalidLevelConfiguration, got %v", err)
	}
}

func TestSubdivision_NoSplitSingleBlock(t *testing.T) {
	f := filledField(t, grid.Size{X: 8, Y: 8}, 1)
	levels := PowersOfTwo(4)
	a, err := Subdivision{SplitChance: 0}.Place(context.Background(), f, levels, 1)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if diff := cmp.Diff([]int{0, 0, 0, 1}, a.Counts); diff != "" {
		t.Fatalf("counts (-want +got):\n%s", diff)
	}
	if a.Levels[0] != 3 {
		t.Fatalf("origin level=%d want 3", a.Levels[0])
	}
	for i, o := range a.Owner {
		if o != 0 {
			t.Fatalf("cell %d owned by %d want 0", i, o)
		}
	}
}

func TestSubdivision_AlwaysSplitIsAllFinest(t *testing.T) {
	f := simplexField(t, grid.Size{X: 9, Y: 7, Z: 5}, 2, 0.45)
	a, err := Subdivision{SplitChance: 1}.Place(context.Background(), f, PowersOfTwo(3), 8)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if a.Counts[0] != f.CountActive() || a.Assigned() != a.Counts[0] {
		t.Fatalf("counts=%v active=%d", a.Counts, f.CountActive())
	}
	checkPartition(t, f, a)
}

func TestSubdivision_NonFittingGridIsTiled(t *testing.T) {
	s := grid.Size{X: 5, Y: 7}
	f := filledField(t, s, 1)
	a, err := Subdivision{SplitChance: 0}.Place(context.Background(), f, PowersOfTwo(3), 3)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	checkPartition(t, f, a)
	// Every block must lie fully inside the grid.
	for i, l := range a.Levels {
		if l == Unassigned {
			continue
		}
		c := s.Coord(i)
		step := 1 << l
		if c.X+step > s.X || c.Y+step > s.Y {
			t.Fatalf("block at %v level %d leaves the grid", c, l)
		}
	}
	if a.Counts[2] != 1 {
		t.Fatalf("level-2 count=%d want 1 (the 4x4 corner)", a.Counts[2])
	}
}

func TestSubdivision_DeterministicAcrossWorkers(t *testing.T) {
	f := simplexField(t, grid.Size{X: 32, Y: 32}, 6, 0.3)
	levels := PowersOfTwo(4)
	a, err := Subdivision{SplitChance: 0.5, Workers: 1}.Place(context.Background(), f, levels, 99)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	b, err := Subdivision{SplitChance: 0.5, Workers: 16}.Place(context.Background(), f, levels, 99)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("worker count changed the result:\n%s", diff)
	}
}

func TestNewStrategy(t *testing.T) {
	st, err := NewStrategy(Config{})
	if err != nil || st.Name() != StrategyEviction {
		t.Fatalf("default strategy=%v err=%v", st, err)
	}
	if _, err := NewStrategy(Config{Strategy: StrategySubdivision, SplitChance: 1.5}); !errors.Is(err, ErrInvalidLevelConfiguration) {
		t.Fatalf("expected split chance error, got %v", err)
	}
	if _, err := NewStrategy(Config{Strategy: "wfc"}); err == nil {
		t.Fatalf("expected unknown strategy error")
	}
	if _, err := NewPolicy(PolicyFootprint, -1); err == nil {
		t.Fatalf("expected negative penetration error")
	}
}

func TestLevelSet_ValidateSubdivision(t *testing.T) {
	for _, l := range []LevelSet{{1, 3, 5}, {2, 4}, {1, 2, 3}, {2, 1}} {
		if err := l.ValidateSubdivision(); !errors.Is(err, ErrInvalidLevelConfiguration) {
			t.Fatalf("%v: expected ErrInvalidLevelConfiguration, got %v", l, err)
		}
	}
	for n := 1; n <= 5; n++ {
		if err := PowersOfTwo(n).ValidateSubdivision(); err != nil {
			t.Fatalf("PowersOfTwo(%d): %v", n, err)
		}
	}
}

func TestSubdivision_RejectsNonPowerOfTwoLevels(t *testing.T) {
	f := filledField(t, grid.Size{X: 8, Y: 8}, 1)
	if _, err := (Subdivision{SplitChance: 0}).Place(context.Background(), f, LevelSet{1, 3, 5}, 1); !errors.Is(err, ErrInvalidLevelConfiguration) {
		t.Fatalf("expected ErrInvalidLevelConfiguration, got %v", err)
	}
}

func TestSubdivision_UnsplitChunkIsRepresentedByOrigin(t *testing.T) {
	// The origin carries the chunk's level even when its own noise is zero;
	// the active cells around it are owned by it.
	f, err := noise.NewField(grid.Size{X: 2, Y: 2}, []float64{0, 1, 1, 1})
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	a, err := Subdivision{SplitChance: 0}.Place(context.Background(), f, PowersOfTwo(2), 4)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if diff := cmp.Diff([]int{1, Unassigned, Unassigned, Unassigned}, a.Levels); diff != "" {
		t.Fatalf("levels (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 0, 0, 0}, a.Owner); diff != "" {
		t.Fatalf("owner (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 1}, a.Counts); diff != "" {
		t.Fatalf("counts (-want +got):\n%s", diff)
	}
	for i := 1; i < 4; i++ {
		if a.CoveredLevel(i) != 1 {
			t.Fatalf("cell %d covered at level %d want 1", i, a.CoveredLevel(i))
		}
	}
}

func TestFootprint_Radii(t *testing.T) {
	levels := LevelSet{1, 2, 3, 4, 5, 6, 7}
	cases := []struct {
		penetration, level, outer, inner int
	}{
		{0, 0, 0, 0},
		{0, 1, 1, 1},
		{0, 2, 2, 1},
		{0, 3, 3, 2},
		{0, 4, 4, 2},
		{0, 5, 5, 3},
		{0, 6, 6, 3},
		{1, 5, 4, 2},
		{1, 6, 5, 3},
		{9, 3, 0, 0},
	}
	for _, c := range cases {
		outer, inner := Footprint{Penetration: c.penetration}.Radii(levels, c.level)
		if outer != c.outer || inner != c.inner {
			t.Fatalf("bs=%d pen=%d: radii=(%d,%d) want (%d,%d)",
				levels.BlockSize(c.level), c.penetration, outer, inner, c.outer, c.inner)
		}
		if inner > outer {
			t.Fatalf("bs=%d pen=%d: inner %d exceeds outer %d", levels.BlockSize(c.level), c.penetration, inner, outer)
		}
	}
}
