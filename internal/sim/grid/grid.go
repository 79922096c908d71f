// Package grid is the flat-array-with-stride arena shared by the noise,
// placement and export stages.
package grid

import (
	"errors"
	"fmt"

	"blockterrain.ai/internal/sim/mathx"
)

var ErrInvalidDimension = errors.New("grid: invalid dimension")

// Size is the extent of a grid. Z == 0 means a 2-D grid.
type Size struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z,omitempty" yaml:"z,omitempty"`
}

type Coord struct {
	X, Y, Z int
}

func (s Size) Is3D() bool { return s.Z > 0 }

func (s Size) Dims() int {
	if s.Is3D() {
		return 3
	}
	return 2
}

// zs is the z stride, 1 for 2-D grids.
func (s Size) zs() int {
	if s.Z > 0 {
		return s.Z
	}
	return 1
}

func (s Size) Len() int { return s.X * s.Y * s.zs() }

func (s Size) Validate() error {
	if s.X <= 0 || s.Y <= 0 || s.Z < 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimension, s.X, s.Y, s.Z)
	}
	return nil
}

func (s Size) InBounds(c Coord) bool {
	if c.X < 0 || c.Y < 0 || c.Z < 0 {
		return false
	}
	return c.X < s.X && c.Y < s.Y && c.Z < s.zs()
}

// Index is only valid for in-bounds coordinates.
func (s Size) Index(c Coord) int {
	return (c.X*s.Y+c.Y)*s.zs() + c.Z
}

func (s Size) Coord(i int) Coord {
	zs := s.zs()
	z := i % zs
	i /= zs
	return Coord{X: i / s.Y, Y: i % s.Y, Z: z}
}

// Box is an inclusive, already clipped coordinate range.
type Box struct {
	Min, Max Coord
}

func (b Box) Empty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// Around returns the Chebyshev ball of radius r centered at c, clipped to
// the grid. A negative radius yields an empty box.
func (s Size) Around(c Coord, r int) Box {
	if r < 0 {
		return Box{Min: c, Max: Coord{X: c.X - 1, Y: c.Y, Z: c.Z}}
	}
	b := Box{
		Min: Coord{X: mathx.MaxInt(c.X-r, 0), Y: mathx.MaxInt(c.Y-r, 0)},
		Max: Coord{X: mathx.MinInt(c.X+r, s.X-1), Y: mathx.MinInt(c.Y+r, s.Y-1)},
	}
	if s.Is3D() {
		b.Min.Z = mathx.MaxInt(c.Z-r, 0)
		b.Max.Z = mathx.MinInt(c.Z+r, s.Z-1)
	}
	return b
}

// Span returns the cube [origin, origin+step) clipped to the grid.
func (s Size) Span(origin Coord, step int) Box {
	b := Box{
		Min: origin,
		Max: Coord{
			X: mathx.MinInt(origin.X+step, s.X) - 1,
			Y: mathx.MinInt(origin.Y+step, s.Y) - 1,
		},
	}
	if s.Is3D() {
		b.Max.Z = mathx.MinInt(origin.Z+step, s.Z) - 1
	} else {
		b.Min.Z, b.Max.Z = 0, 0
	}
	return b
}

// Each calls fn with the index of every cell in b, in index order.
func (s Size) Each(b Box, fn func(i int)) {
	if b.Empty() {
		return
	}
	for x := b.Min.X; x <= b.Max.X; x++ {
		for y := b.Min.Y; y <= b.Max.Y; y++ {
			base := (x*s.Y + y) * s.zs()
			for z := b.Min.Z; z <= b.Max.Z; z++ {
				fn(base + z)
			}
		}
	}
}

// Chebyshev is the box distance between two coordinates.
func Chebyshev(a, b Coord) int {
	d := mathx.AbsInt(a.X - b.X)
	d = mathx.MaxInt(d, mathx.AbsInt(a.Y-b.Y))
	return mathx.MaxInt(d, mathx.AbsInt(a.Z-b.Z))
}

// Grid is a dense value array over a Size.
type Grid[T any] struct {
	Size  Size
	Cells []T
}

func New[T any](s Size) (*Grid[T], error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Grid[T]{Size: s, Cells: make([]T, s.Len())}, nil
}

// Fill returns a grid with every cell set to v.
func Fill[T any](s Size, v T) (*Grid[T], error) {
	g, err := New[T](s)
	if err != nil {
		return nil, err
	}
	for i := range g.Cells {
		g.Cells[i] = v
	}
	return g, nil
}

func (g *Grid[T]) At(c Coord) T { return g.Cells[g.Size.Index(c)] }

func (g *Grid[T]) Set(c Coord, v T) { g.Cells[g.Size.Index(c)] = v }
