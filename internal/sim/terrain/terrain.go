// Package terrain runs a full generation pass: seed, noise, placement,
// export and digest, logging per-stage timings.
package terrain

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"blockterrain.ai/internal/sim/digest"
	"blockterrain.ai/internal/sim/export"
	"blockterrain.ai/internal/sim/mathx"
	"blockterrain.ai/internal/sim/noise"
	"blockterrain.ai/internal/sim/placement"
	"blockterrain.ai/internal/sim/rng"
)

// Stream keys separate the draws of one seed into independent sequences.
const (
	streamOffset = iota + 1
	streamPlacement
	streamRefresh
)

type Timings struct {
	Noise     time.Duration `json:"noise"`
	Placement time.Duration `json:"placement"`
	Export    time.Duration `json:"export"`
}

func (t Timings) Total() time.Duration { return t.Noise + t.Placement + t.Export }

type Pass struct {
	ID          string
	Seed        uint64
	Offset      []float64
	Strategy    string
	Levels      placement.LevelSet
	Field       *noise.Field
	Assignment  *placement.Assignment
	Result      *export.Result
	Digest      string
	FieldDigest string
	Timings     Timings
	CreatedAt   time.Time
}

type Generator struct {
	cfg      Config
	strategy placement.Strategy
	logger   *log.Logger

	seed   uint64
	offset []float64
}

func New(cfg Config, logger *log.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := placement.NewStrategy(cfg.Placement)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Generator{cfg: cfg, strategy: st, logger: logger}, nil
}

func (g *Generator) Config() Config { return g.cfg }

func (g *Generator) Seed() uint64 { return g.seed }

// InitSeed sets the seed and re-derives the noise offsets from it.
func (g *Generator) InitSeed(seed uint64) {
	g.seed = seed
	g.offset = rng.New(mathx.HashInts(seed, streamOffset)).DeriveOffset(g.cfg.Size.Dims())
}

// RefreshSeed moves to a new seed drawn from the current one and returns it.
func (g *Generator) RefreshSeed() uint64 {
	next := NextSeed(g.seed)
	g.InitSeed(next)
	return next
}

// NextSeed is the seed RefreshSeed moves to from seed.
func NextSeed(seed uint64) uint64 {
	return rng.New(mathx.HashInts(seed, streamRefresh)).NextUint()
}

// Generate runs one pass with the current seed. InitSeed must have been
// called. Nothing is returned unless every stage succeeds.
func (g *Generator) Generate(ctx context.Context) (*Pass, error) {
	if g.offset == nil {
		g.InitSeed(g.seed)
	}
	pass := &Pass{
		ID:        uuid.NewString(),
		Seed:      g.seed,
		Offset:    append([]float64(nil), g.offset...),
		Strategy:  g.strategy.Name(),
		Levels:    g.cfg.Levels,
		CreatedAt: time.Now().UTC(),
	}

	start := time.Now()
	src, err := noise.NewSource(g.cfg.Source, g.seed)
	if err != nil {
		return nil, err
	}
	field, err := noise.Generate(ctx, src, noise.Params{
		Size:        g.cfg.Size,
		Scale:       g.cfg.Scale,
		Offset:      pass.Offset,
		RoundFilter: g.cfg.RoundFilter,
		Threshold:   g.cfg.Threshold,
		Workers:     g.cfg.NoiseWorkers,
	})
	if err != nil {
		return nil, fmt.Errorf("noise: %w", err)
	}
	pass.Field = field
	pass.Timings.Noise = time.Since(start)
	s := g.cfg.Size
	g.logger.Printf("noise: size=%dx%dx%d source=%s active=%d took=%s",
		s.X, s.Y, s.Z, g.cfg.Source, field.CountActive(), pass.Timings.Noise)

	start = time.Now()
	asg, err := g.strategy.Place(ctx, field, g.cfg.Levels, mathx.HashInts(g.seed, streamPlacement))
	if err != nil {
		return nil, fmt.Errorf("placement: %w", err)
	}
	pass.Assignment = asg
	pass.Timings.Placement = time.Since(start)
	for l := len(asg.Counts) - 1; l >= 0; l-- {
		g.logger.Printf("placement: level=%d block_size=%d count=%d", l, g.cfg.Levels.BlockSize(l), asg.Counts[l])
	}
	g.logger.Printf("placement: strategy=%s total=%d took=%s", pass.Strategy, asg.Assigned(), pass.Timings.Placement)

	start = time.Now()
	res, err := export.Export(asg, field, g.cfg.Levels, g.cfg.Export)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	pass.Result = res
	pass.Timings.Export = time.Since(start)

	pass.Digest = digest.Pass(g.seed, g.cfg.Levels, asg)
	pass.FieldDigest = digest.Field(field)
	g.logger.Printf("pass %s: seed=%d digest=%s took=%s", pass.ID, pass.Seed, pass.Digest[:12], pass.Timings.Total())
	return pass, nil
}
