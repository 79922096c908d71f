// Package preview renders debug images of a pass. Nothing here feeds back
// into generation.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"blockterrain.ai/internal/sim/grid"
	"blockterrain.ai/internal/sim/noise"
	"blockterrain.ai/internal/sim/placement"
)

// columnMax is the top-down view of a cell column: the largest value along
// y for 3-D grids, the cell itself for 2-D ones.
func columnMax(s grid.Size, cells []float64, x, row int) float64 {
	if !s.Is3D() {
		return cells[s.Index(grid.Coord{X: x, Y: row})]
	}
	m := math.Inf(-1)
	for y := 0; y < s.Y; y++ {
		if v := cells[s.Index(grid.Coord{X: x, Y: y, Z: row})]; v > m {
			m = v
		}
	}
	return m
}

func rows(s grid.Size) int {
	if s.Is3D() {
		return s.Z
	}
	return s.Y
}

// NoiseImage is a grayscale image of the field, one pixel per column.
func NoiseImage(f *noise.Field) *image.Gray {
	s := f.Size
	img := image.NewGray(image.Rect(0, 0, s.X, rows(s)))
	for x := 0; x < s.X; x++ {
		for r := 0; r < rows(s); r++ {
			v := columnMax(s, f.Cells, x, r)
			img.SetGray(x, r, color.Gray{Y: uint8(math.Round(v * 255))})
		}
	}
	return img
}

func WriteNoisePNG(w io.Writer, f *noise.Field) error {
	return png.Encode(w, NoiseImage(f))
}

// Surface adapts a grid to plotter.GridXYZ as a top-down view.
type Surface struct {
	size  grid.Size
	cells []float64
}

func (s Surface) Dims() (c, r int) { return s.size.X, rows(s.size) }

func (s Surface) Z(c, r int) float64 { return columnMax(s.size, s.cells, c, r) }

func (s Surface) X(c int) float64 { return float64(c) }

func (s Surface) Y(r int) float64 { return float64(r) }

// Range is the smallest and largest cell value.
func (s Surface) Range() (float64, float64) { return minMax(s.cells) }

func minMax(v []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

func NoiseSurface(f *noise.Field) Surface {
	return Surface{size: f.Size, cells: f.Cells}
}

// LevelSurface plots the level of the block covering each cell, -1 where
// nothing is placed.
func LevelSurface(a *placement.Assignment) Surface {
	cells := make([]float64, len(a.Owner))
	for i := range cells {
		cells[i] = float64(a.CoveredLevel(i))
	}
	return Surface{size: a.Size, cells: cells}
}

// SaveHeatmap writes a heatmap of s to path; the extension picks the
// format (png, svg, pdf).
func SaveHeatmap(path, title string, s Surface) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	if s.size.Is3D() {
		p.Y.Label.Text = "z"
	} else {
		p.Y.Label.Text = "y"
	}

	hm := plotter.NewHeatMap(s, palette.Heat(12, 1))
	lo, hi := s.Range()
	if hi <= lo {
		hi = lo + 1
	}
	hm.Min, hm.Max = lo, hi
	p.Add(hm)

	c, r := s.Dims()
	side := vg.Length(math.Max(4, math.Min(12, float64(max(c, r))/8))) * vg.Inch
	if err := p.Save(side, side, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}
