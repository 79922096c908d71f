package noise

import (
	"fmt"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"

	"blockterrain.ai/internal/sim/mathx"
)

// Source is a coherent 2-D noise primitive normalized to [0,1]. Sources must
// be safe for concurrent reads.
type Source interface {
	Eval2(x, y float64) float64
}

const (
	SourcePerlin      = "perlin"
	SourceOpenSimplex = "opensimplex"
)

// Perlin octave settings; three octaves with alpha=beta=2 gives a
// smooth single-scale look close to a plain gradient noise.
const (
	perlinAlpha   = 2.0
	perlinBeta    = 2.0
	perlinOctaves = 3
)

type perlinSource struct {
	p *perlin.Perlin
}

func (s perlinSource) Eval2(x, y float64) float64 {
	return mathx.Clamp01((s.p.Noise2D(x, y) + 1) / 2)
}

type simplexSource struct {
	n opensimplex.Noise
}

func (s simplexSource) Eval2(x, y float64) float64 {
	return mathx.Clamp01(s.n.Eval2(x, y))
}

// NewSource builds a named source. An empty name selects perlin.
func NewSource(name string, seed uint64) (Source, error) {
	switch name {
	case "", SourcePerlin:
		return perlinSource{p: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, int64(seed))}, nil
	case SourceOpenSimplex:
		return simplexSource{n: opensimplex.NewNormalized(int64(seed))}, nil
	default:
		return nil, fmt.Errorf("noise: unknown source %q", name)
	}
}
