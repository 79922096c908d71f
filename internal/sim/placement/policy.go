package placement

import "fmt"

const (
	PolicyDiameter  = "diameter"
	PolicyFootprint = "footprint"
)

// EvictionPolicy gives the Chebyshev radii cleared around a block placed at
// level: outer from the same level's pool, inner from the next finer pool.
// inner must not exceed outer.
type EvictionPolicy interface {
	Radii(levels LevelSet, level int) (outer, inner int)
	Name() string
}

// Diameter keeps same-level blocks at least two block sizes apart and
// reserves one block size for the placed block. Blocks never overlap.
type Diameter struct{}

func (Diameter) Name() string { return PolicyDiameter }

func (Diameter) Radii(levels LevelSet, level int) (int, int) {
	s := levels.BlockSize(level)
	return 2 * s, s
}

// Footprint packs tighter: outer is the block size minus one, shrunk by
// Penetration, and inner is half of it rounded up. Neighbouring blocks may
// overlap by up to Penetration cells.
type Footprint struct {
	Penetration int
}

func (Footprint) Name() string { return PolicyFootprint }

func (f Footprint) Radii(levels LevelSet, level int) (int, int) {
	outer := levels.BlockSize(level) - 1 - f.Penetration
	if outer < 0 {
		outer = 0
	}
	return outer, outer - outer/2
}

func NewPolicy(name string, penetration int) (EvictionPolicy, error) {
	switch name {
	case "", PolicyDiameter:
		return Diameter{}, nil
	case PolicyFootprint:
		if penetration < 0 {
			return nil, fmt.Errorf("%w: negative penetration %d", ErrInvalidLevelConfiguration, penetration)
		}
		return Footprint{Penetration: penetration}, nil
	default:
		return nil, fmt.Errorf("placement: unknown eviction policy %q", name)
	}
}
