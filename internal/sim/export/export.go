// Package export flattens an assignment into per-level batches of world
// positions for an instantiation layer.
package export

import (
	"fmt"

	"blockterrain.ai/internal/sim/noise"
	"blockterrain.ai/internal/sim/placement"
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

type Options struct {
	Origin Position `json:"origin" yaml:"origin"`
	// ScaleByBlockSize multiplies cell coordinates by the level's block size.
	ScaleByBlockSize bool `json:"scale_by_block_size" yaml:"scale_by_block_size"`
	// TerrainHeight and TerraceHeight set world y for 2-D grids. Zero
	// TerrainHeight keeps a flat layer.
	TerrainHeight int `json:"terrain_height" yaml:"terrain_height"`
	TerraceHeight int `json:"terrace_height" yaml:"terrace_height"`
}

type Batch struct {
	Level     int        `json:"level"`
	BlockSize int        `json:"block_size"`
	Positions []Position `json:"positions"`
}

type Result struct {
	Batches []Batch `json:"batches"`
	Counts  []int   `json:"counts"`
}

func (r *Result) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// Export builds one batch per level, positions in grid index order. The
// grid y axis of a 2-D pass maps to world z and world y is the terraced
// noise height.
func Export(a *placement.Assignment, f *noise.Field, levels placement.LevelSet, opts Options) (*Result, error) {
	if a.Size != f.Size {
		return nil, fmt.Errorf("export: assignment size %+v does not match field %+v", a.Size, f.Size)
	}
	if len(a.Counts) != levels.Len() {
		return nil, fmt.Errorf("export: %d counts for %d levels", len(a.Counts), levels.Len())
	}
	res := &Result{
		Batches: make([]Batch, levels.Len()),
		Counts:  append([]int(nil), a.Counts...),
	}
	for l := range res.Batches {
		res.Batches[l] = Batch{Level: l, BlockSize: levels.BlockSize(l), Positions: make([]Position, 0, a.Counts[l])}
	}
	s := a.Size
	for i, l := range a.Levels {
		if l == placement.Unassigned {
			continue
		}
		c := s.Coord(i)
		scale := 1
		if opts.ScaleByBlockSize {
			scale = levels.BlockSize(l)
		}
		var p Position
		if s.Is3D() {
			p = Position{X: c.X * scale, Y: c.Y * scale, Z: c.Z * scale}
		} else {
			p = Position{X: c.X * scale, Y: TerraceY(f.Cells[i], opts.TerrainHeight, opts.TerraceHeight), Z: c.Y * scale}
		}
		res.Batches[l].Positions = append(res.Batches[l].Positions, p.Add(opts.Origin))
	}
	return res, nil
}

// TerraceY snaps a noise value to a terrace: floor(v*height) rounded down to
// a multiple of terrace.
func TerraceY(v float64, height, terrace int) int {
	if terrace <= 0 {
		terrace = 1
	}
	h := int(v * float64(height))
	return h / terrace * terrace
}
