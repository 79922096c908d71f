// Package placement turns a noise field into a multi-resolution block
// assignment. Two strategies are provided: greedy pick-and-evict over
// per-level availability pools, and top-down power-of-two subdivision.
package placement

import (
	"context"
	"fmt"

	"blockterrain.ai/internal/sim/grid"
	"blockterrain.ai/internal/sim/noise"
)

// Unassigned marks a cell that carries no level and, in Owner, a cell no
// block covers.
const Unassigned = -1

// Assignment is the result of one placement pass. Levels holds a level only
// on representative cells, one per placed block. Owner maps every covered
// cell to the index of its representative.
type Assignment struct {
	Size   grid.Size
	Levels []int
	Owner  []int
	Counts []int
}

func newAssignment(s grid.Size, levels int) *Assignment {
	a := &Assignment{
		Size:   s,
		Levels: make([]int, s.Len()),
		Owner:  make([]int, s.Len()),
		Counts: make([]int, levels),
	}
	for i := range a.Levels {
		a.Levels[i] = Unassigned
		a.Owner[i] = Unassigned
	}
	return a
}

func (a *Assignment) assign(i, level int) {
	a.Levels[i] = level
	a.Owner[i] = i
	a.Counts[level]++
}

// Assigned is the number of representative cells.
func (a *Assignment) Assigned() int {
	n := 0
	for _, c := range a.Counts {
		n += c
	}
	return n
}

// CoveredLevel returns the level of the block covering i, or Unassigned.
func (a *Assignment) CoveredLevel(i int) int {
	o := a.Owner[i]
	if o == Unassigned {
		return Unassigned
	}
	return a.Levels[o]
}

// Representatives returns the indexes carrying level, in index order.
func (a *Assignment) Representatives(level int) []int {
	out := make([]int, 0, a.Counts[level])
	for i, l := range a.Levels {
		if l == level {
			out = append(out, i)
		}
	}
	return out
}

// Strategy places blocks on a field. Implementations are deterministic in
// (field, levels, seed).
type Strategy interface {
	Name() string
	Place(ctx context.Context, f *noise.Field, levels LevelSet, seed uint64) (*Assignment, error)
}

const (
	StrategyEviction    = "eviction"
	StrategySubdivision = "subdivision"
)

type Config struct {
	Strategy    string
	Policy      EvictionPolicy
	SplitChance float64
	Workers     int
}

func NewStrategy(cfg Config) (Strategy, error) {
	switch cfg.Strategy {
	case "", StrategyEviction:
		p := cfg.Policy
		if p == nil {
			p = Diameter{}
		}
		return Eviction{Policy: p}, nil
	case StrategySubdivision:
		if cfg.SplitChance < 0 || cfg.SplitChance > 1 {
			return nil, fmt.Errorf("%w: split chance %v outside [0,1]", ErrInvalidLevelConfiguration, cfg.SplitChance)
		}
		return Subdivision{SplitChance: cfg.SplitChance, Workers: cfg.Workers}, nil
	default:
		return nil, fmt.Errorf("placement: unknown strategy %q", cfg.Strategy)
	}
}
