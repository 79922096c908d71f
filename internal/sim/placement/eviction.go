package placement

import (
	"context"
	"fmt"

	"blockterrain.ai/internal/sim/noise"
	"blockterrain.ai/internal/sim/rng"
)

// Eviction places the coarsest level first. Each pick clears the outer box
// from its own pool and the inner box from the next finer pool; whatever
// survives the finest pass becomes level 0.
type Eviction struct {
	Policy EvictionPolicy
}

func (Eviction) Name() string { return StrategyEviction }

func (e Eviction) Place(ctx context.Context, f *noise.Field, levels LevelSet, seed uint64) (*Assignment, error) {
	if err := levels.Validate(); err != nil {
		return nil, err
	}
	if err := f.Size.Validate(); err != nil {
		return nil, err
	}
	policy := e.Policy
	if policy == nil {
		policy = Diameter{}
	}
	s := f.Size
	asg := newAssignment(s, levels.Len())

	active := make([]int, 0, len(f.Cells))
	for i := range f.Cells {
		if f.Active(i) {
			active = append(active, i)
		}
	}
	pool := NewPool(s.Len(), active)
	r := rng.New(seed)

	for level := levels.Len() - 1; level >= 1; level-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outer, inner := policy.Radii(levels, level)
		if inner > outer {
			return nil, fmt.Errorf("placement: policy %s inner radius %d exceeds outer %d", policy.Name(), inner, outer)
		}
		pool.Shuffle(r)
		finer := pool.Clone()
		for {
			c, ok := pool.Pop()
			if !ok {
				break
			}
			asg.assign(c, level)
			finer.Remove(c)
			cc := s.Coord(c)
			s.Each(s.Around(cc, outer), func(i int) { pool.Remove(i) })
			s.Each(s.Around(cc, inner), func(i int) {
				if finer.Remove(i) {
					asg.Owner[i] = c
				}
			})
		}
		pool = finer
	}
	pool.Each(func(i int) { asg.assign(i, 0) })
	return asg, nil
}
