package export

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"blockterrain.ai/internal/sim/grid"
	"blockterrain.ai/internal/sim/noise"
	"blockterrain.ai/internal/sim/placement"
)

func TestTerraceY(t *testing.T) {
	cases := []struct {
		v               float64
		height, terrace int
		want            int
	}{
		{0.99, 10, 3, 9},
		{0.5, 10, 3, 3},
		{0.29, 10, 3, 0},
		{0.55, 10, 0, 5},
	}
	for _, c := range cases {
		if got := TerraceY(c.v, c.height, c.terrace); got != c.want {
			t.Fatalf("TerraceY(%v,%d,%d)=%d want %d", c.v, c.height, c.terrace, got, c.want)
		}
	}
}

func TestExport_2DMapsYToWorldZ(t *testing.T) {
	s := grid.Size{X: 3, Y: 2}
	vals := []float64{0, 0.5, 0, 0, 0.9, 0}
	f, err := noise.NewField(s, vals)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	levels := placement.LevelSet{1}
	a, err := placement.Eviction{}.Place(context.Background(), f, levels, 1)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	res, err := Export(a, f, levels, Options{Origin: Position{X: 100, Y: 0, Z: -5}, TerrainHeight: 10, TerraceHeight: 2})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := []Position{
		{X: 100, Y: 4, Z: -4}, // cell (0,1) noise 0.5
		{X: 102, Y: 8, Z: -5}, // cell (2,0) noise 0.9
	}
	if diff := cmp.Diff(want, res.Batches[0].Positions); diff != "" {
		t.Fatalf("positions (-want +got):\n%s", diff)
	}
	if res.Total() != 2 {
		t.Fatalf("total=%d want 2", res.Total())
	}
}

func TestExport_3DScaledBatchesMatchCounts(t *testing.T) {
	s := grid.Size{X: 6, Y: 6, Z: 6}
	vals := make([]float64, s.Len())
	for i := range vals {
		vals[i] = 1
	}
	f, err := noise.NewField(s, vals)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	levels := placement.LevelSet{1, 2}
	a, err := placement.Eviction{}.Place(context.Background(), f, levels, 5)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	res, err := Export(a, f, levels, Options{ScaleByBlockSize: true})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	for l, b := range res.Batches {
		if len(b.Positions) != res.Counts[l] {
			t.Fatalf("level %d: %d positions, count %d", l, len(b.Positions), res.Counts[l])
		}
		if b.BlockSize != levels.BlockSize(l) {
			t.Fatalf("level %d block size %d", l, b.BlockSize)
		}
	}
	big := a.Size.Coord(a.Representatives(1)[0])
	if got := res.Batches[1].Positions[0]; got != (Position{X: big.X * 2, Y: big.Y * 2, Z: big.Z * 2}) {
		t.Fatalf("scaled position=%+v for cell %+v", got, big)
	}
}

func TestExport_SizeMismatch(t *testing.T) {
	f, _ := noise.NewField(grid.Size{X: 2, Y: 2}, make([]float64, 4))
	g, _ := noise.NewField(grid.Size{X: 3, Y: 2}, make([]float64, 6))
	a, err := placement.Eviction{}.Place(context.Background(), g, placement.LevelSet{1}, 1)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if _, err := Export(a, f, placement.LevelSet{1}, Options{}); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}
