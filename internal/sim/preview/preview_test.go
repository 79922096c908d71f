package preview

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"blockterrain.ai/internal/sim/grid"
	"blockterrain.ai/internal/sim/noise"
	"blockterrain.ai/internal/sim/placement"
)

func testField(t *testing.T, s grid.Size) *noise.Field {
	t.Helper()
	vals := make([]float64, s.Len())
	for i := range vals {
		vals[i] = float64(i%5) / 4
	}
	f, err := noise.NewField(s, vals)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	return f
}

func TestWriteNoisePNG_Dimensions(t *testing.T) {
	f := testField(t, grid.Size{X: 7, Y: 3})
	var buf bytes.Buffer
	if err := WriteNoisePNG(&buf, f); err != nil {
		t.Fatalf("WriteNoisePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 7 || b.Dy() != 3 {
		t.Fatalf("bounds=%v want 7x3", b)
	}
}

func TestNoiseImage_3DTopDown(t *testing.T) {
	s := grid.Size{X: 2, Y: 3, Z: 2}
	vals := make([]float64, s.Len())
	vals[s.Index(grid.Coord{X: 1, Y: 2, Z: 0})] = 1
	f, err := noise.NewField(s, vals)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	img := NoiseImage(f)
	if got := img.GrayAt(1, 0).Y; got != 255 {
		t.Fatalf("column (1,0)=%d want 255", got)
	}
	if got := img.GrayAt(0, 1).Y; got != 0 {
		t.Fatalf("column (0,1)=%d want 0", got)
	}
}

func TestSaveHeatmap_WritesFiles(t *testing.T) {
	dir := t.TempDir()
	f := testField(t, grid.Size{X: 16, Y: 16})
	a, err := placement.Eviction{}.Place(context.Background(), f, placement.LevelSet{1, 2}, 1)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	for name, s := range map[string]Surface{"noise.png": NoiseSurface(f), "levels.png": LevelSurface(a)} {
		p := filepath.Join(dir, name)
		if err := SaveHeatmap(p, name, s); err != nil {
			t.Fatalf("SaveHeatmap(%s): %v", name, err)
		}
		st, err := os.Stat(p)
		if err != nil || st.Size() == 0 {
			t.Fatalf("%s not written: %v", name, err)
		}
	}
}

func TestSaveHeatmap_FlatSurface(t *testing.T) {
	f, err := noise.NewField(grid.Size{X: 4, Y: 4}, make([]float64, 16))
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	if err := SaveHeatmap(filepath.Join(t.TempDir(), "flat.png"), "flat", NoiseSurface(f)); err != nil {
		t.Fatalf("SaveHeatmap: %v", err)
	}
}
