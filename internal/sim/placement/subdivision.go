package placement

import (
	"context"

	"golang.org/x/sync/errgroup"

	"blockterrain.ai/internal/sim/grid"
	"blockterrain.ai/internal/sim/mathx"
	"blockterrain.ai/internal/sim/noise"
	"blockterrain.ai/internal/sim/rng"
)

// Subdivision tiles the grid with root chunks of extent 2^(N-1) and splits
// each chunk into halves with probability SplitChance. An unsplit chunk is
// one block of level log2(extent) represented by its origin cell.
//
// Every chunk draws from its own stream keyed by (seed, origin, extent), so
// roots run in parallel without changing the result.
type Subdivision struct {
	SplitChance float64
	Workers     int
}

func (Subdivision) Name() string { return StrategySubdivision }

func (d Subdivision) Place(ctx context.Context, f *noise.Field, levels LevelSet, seed uint64) (*Assignment, error) {
	if err := levels.ValidateSubdivision(); err != nil {
		return nil, err
	}
	if err := f.Size.Validate(); err != nil {
		return nil, err
	}
	s := f.Size
	asg := newAssignment(s, levels.Len())
	root := 1 << (levels.Len() - 1)

	zn := 1
	if s.Is3D() {
		zn = s.Z
	}
	g, gctx := errgroup.WithContext(ctx)
	if d.Workers > 0 {
		g.SetLimit(d.Workers)
	}
	for x := 0; x < s.X; x += root {
		for y := 0; y < s.Y; y += root {
			for z := 0; z < zn; z += root {
				origin := grid.Coord{X: x, Y: y, Z: z}
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					d.chunk(f, asg, seed, origin, root)
					return nil
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Counted after the fact; chunks only write their own cells.
	for _, l := range asg.Levels {
		if l != Unassigned {
			asg.Counts[l]++
		}
	}
	return asg, nil
}

func (d Subdivision) chunk(f *noise.Field, asg *Assignment, seed uint64, origin grid.Coord, step int) {
	s := f.Size
	box := s.Span(origin, step)
	occupied := false
	s.Each(box, func(i int) {
		if f.Active(i) {
			occupied = true
		}
	})
	if !occupied {
		return
	}

	u := rng.Derive(seed, origin.X, origin.Y, origin.Z, step).NextFloat01()
	fits := origin.X+step <= s.X && origin.Y+step <= s.Y
	if s.Is3D() {
		fits = fits && origin.Z+step <= s.Z
	}
	if step > 1 && (u < d.SplitChance || !fits) {
		half := step / 2
		zs := []int{0}
		if s.Is3D() {
			zs = []int{0, half}
		}
		for _, dx := range []int{0, half} {
			for _, dy := range []int{0, half} {
				for _, dz := range zs {
					c := grid.Coord{X: origin.X + dx, Y: origin.Y + dy, Z: origin.Z + dz}
					if s.InBounds(c) {
						d.chunk(f, asg, seed, c, half)
					}
				}
			}
		}
		return
	}

	o := s.Index(origin)
	asg.Levels[o] = mathx.Log2(step)
	asg.Owner[o] = o
	s.Each(box, func(i int) {
		if i != o && f.Active(i) {
			asg.Owner[i] = o
		}
	})
}
