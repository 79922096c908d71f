package terrain

import (
	"fmt"

	"blockterrain.ai/internal/sim/curve"
	"blockterrain.ai/internal/sim/export"
	"blockterrain.ai/internal/sim/grid"
	"blockterrain.ai/internal/sim/placement"
	"blockterrain.ai/internal/sim/tuning"
)

type Config struct {
	Size         grid.Size
	Source       string
	Scale        []float64
	RoundFilter  *curve.Curve
	Threshold    *float64
	NoiseWorkers int

	Levels    placement.LevelSet
	Placement placement.Config
	Export    export.Options
}

// ConfigFromTuning resolves a tuning file into a pass configuration. The
// round filter falls back to the default curve for the grid's dimension.
func ConfigFromTuning(t tuning.Tuning) (Config, error) {
	cfg := Config{
		Size:         t.Grid,
		Source:       t.Noise.Source,
		Scale:        append([]float64(nil), t.Noise.Scale...),
		NoiseWorkers: t.Noise.Workers,
		Levels:       append(placement.LevelSet(nil), t.Levels.BlockSizes...),
		Export: export.Options{
			Origin:           export.Position{X: t.Export.Origin[0], Y: t.Export.Origin[1], Z: t.Export.Origin[2]},
			ScaleByBlockSize: t.Export.ScaleByBlockSize,
			TerrainHeight:    t.Export.TerrainHeight,
			TerraceHeight:    t.Export.TerraceHeight,
		},
	}
	if t.Noise.ThresholdEnabled {
		th := t.Noise.Threshold
		cfg.Threshold = &th
	}
	if t.Noise.RoundFilter {
		var c curve.Curve
		switch {
		case len(t.Noise.Curve) > 0:
			var err error
			if c, err = curve.New(t.Noise.Curve...); err != nil {
				return Config{}, err
			}
		case t.Grid.Is3D():
			c = curve.Default3D()
		default:
			c = curve.Default2D()
		}
		cfg.RoundFilter = &c
	}
	policy, err := placement.NewPolicy(t.Placement.Policy, t.Placement.Penetration)
	if err != nil {
		return Config{}, err
	}
	cfg.Placement = placement.Config{
		Strategy:    t.Placement.Strategy,
		Policy:      policy,
		SplitChance: t.Placement.SplitChance,
		Workers:     t.Placement.Workers,
	}
	return cfg, nil
}

// Validate fails fast on anything that would make a pass impossible.
func (c Config) Validate() error {
	if err := c.Size.Validate(); err != nil {
		return err
	}
	if err := c.Levels.Validate(); err != nil {
		return err
	}
	if c.Placement.Strategy == placement.StrategySubdivision {
		if err := c.Levels.ValidateSubdivision(); err != nil {
			return err
		}
	}
	if len(c.Scale) != c.Size.Dims() {
		return fmt.Errorf("terrain: scale has %d components for a %d-D grid", len(c.Scale), c.Size.Dims())
	}
	if _, err := placement.NewStrategy(c.Placement); err != nil {
		return err
	}
	return nil
}
