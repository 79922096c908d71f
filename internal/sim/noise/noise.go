// Package noise computes the scalar density field a generation pass places
// blocks on.
package noise

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"blockterrain.ai/internal/sim/curve"
	"blockterrain.ai/internal/sim/grid"
	"blockterrain.ai/internal/sim/mathx"
)

type Params struct {
	Size   grid.Size
	Scale  []float64
	Offset []float64 // nil means no offset

	RoundFilter *curve.Curve
	Threshold   *float64

	Workers int // <= 0 means GOMAXPROCS
}

func (p Params) Validate() error {
	if err := p.Size.Validate(); err != nil {
		return err
	}
	dims := p.Size.Dims()
	if len(p.Scale) != dims {
		return fmt.Errorf("noise: scale has %d components, grid has %d dims", len(p.Scale), dims)
	}
	if p.Offset != nil && len(p.Offset) != dims {
		return fmt.Errorf("noise: offset has %d components, grid has %d dims", len(p.Offset), dims)
	}
	if p.RoundFilter != nil {
		if err := p.RoundFilter.Validate(); err != nil {
			return err
		}
	}
	if p.Threshold != nil && (*p.Threshold < 0 || *p.Threshold > 1) {
		return fmt.Errorf("noise: threshold %v outside [0,1]", *p.Threshold)
	}
	return nil
}

// Field holds one value in [0,1] per cell. Zero means no terrain.
type Field struct {
	grid.Grid[float64]
}

// NewField wraps precomputed values. The slice is not copied.
func NewField(s grid.Size, values []float64) (*Field, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if len(values) != s.Len() {
		return nil, fmt.Errorf("noise: %d values for %d cells", len(values), s.Len())
	}
	return &Field{Grid: grid.Grid[float64]{Size: s, Cells: values}}, nil
}

func (f *Field) Active(i int) bool { return f.Cells[i] != 0 }

func (f *Field) CountActive() int {
	n := 0
	for _, v := range f.Cells {
		if v != 0 {
			n++
		}
	}
	return n
}

// Generate evaluates src over every cell. x slabs are spread across workers;
// each cell is written exactly once so the result does not depend on
// scheduling.
func Generate(ctx context.Context, src Source, p Params) (*Field, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f := &Field{Grid: grid.Grid[float64]{Size: p.Size, Cells: make([]float64, p.Size.Len())}}
	s := p.Size
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	center, maxDist := roundCenter(s)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for x := 0; x < s.X; x++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			zn := 1
			if s.Is3D() {
				zn = s.Z
			}
			for y := 0; y < s.Y; y++ {
				for z := 0; z < zn; z++ {
					c := grid.Coord{X: x, Y: y, Z: z}
					v := sample(src, p, c)
					if p.RoundFilter != nil {
						d := distance(c, center)
						if maxDist > 0 {
							d /= maxDist
						} else {
							d = 0
						}
						v = mathx.Clamp01(v * p.RoundFilter.Evaluate(d))
					}
					if p.Threshold != nil && v < *p.Threshold {
						v = 0
					}
					f.Cells[s.Index(c)] = v
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

func axis(p Params, i, v, n int) float64 {
	a := float64(v) / float64(n) * p.Scale[i]
	if p.Offset != nil {
		a += p.Offset[i]
	}
	return a
}

func sample(src Source, p Params, c grid.Coord) float64 {
	x := axis(p, 0, c.X, p.Size.X)
	y := axis(p, 1, c.Y, p.Size.Y)
	if !p.Size.Is3D() {
		return src.Eval2(x, y)
	}
	z := axis(p, 2, c.Z, p.Size.Z)
	// All six pairings cancel the directional bias of a 2-D primitive.
	sum := src.Eval2(x, y) + src.Eval2(y, z) + src.Eval2(x, z) +
		src.Eval2(y, x) + src.Eval2(z, y) + src.Eval2(z, x)
	return sum / 6
}

// roundCenter returns the attenuation center and its distance from the
// origin corner, which normalizes distances to roughly [0,1].
func roundCenter(s grid.Size) (grid.Coord, float64) {
	c := grid.Coord{X: s.X / 2, Y: s.Y / 2}
	if s.Is3D() {
		c = grid.Coord{X: s.X / 2, Y: s.Y - 1, Z: s.Z / 2}
	}
	return c, distance(grid.Coord{}, c)
}

func distance(a, b grid.Coord) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	dz := float64(a.Z - b.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
