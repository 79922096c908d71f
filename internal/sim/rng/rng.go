// Package rng is the seeded generator behind every random decision of a
// generation pass. Output depends only on the seed and the call sequence.
package rng

import "blockterrain.ai/internal/sim/mathx"

const (
	golden = 0x9e3779b97f4a7c15

	// OffsetMin and OffsetMax bound the per-axis noise offsets, half-open.
	OffsetMin = 1
	OffsetMax = 2_000_000
)

// RNG is a splitmix64 stream. The zero value is a valid stream for seed 0.
type RNG struct {
	state uint64
}

func New(seed uint64) *RNG {
	return &RNG{state: seed}
}

// Derive returns an independent stream keyed by seed and keys, e.g. a chunk
// origin and extent.
func Derive(seed uint64, keys ...int) *RNG {
	return New(mathx.HashInts(seed, keys...))
}

func (r *RNG) NextUint() uint64 {
	r.state += golden
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// NextFloat01 returns a float in [0,1) with 53 random bits.
func (r *RNG) NextFloat01() float64 {
	return float64(r.NextUint()>>11) / (1 << 53)
}

// NextIntRange returns an int in [lo, hi). It returns lo when hi <= lo.
func (r *RNG) NextIntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	n := uint64(hi - lo)
	// Rejection sampling keeps the draw unbiased for any n.
	limit := ^uint64(0) - (^uint64(0) % n)
	for {
		v := r.NextUint()
		if v < limit {
			return lo + int(v%n)
		}
	}
}

// DeriveOffset draws one offset per dimension from [OffsetMin, OffsetMax).
func (r *RNG) DeriveOffset(dims int) []float64 {
	out := make([]float64, dims)
	for i := range out {
		out[i] = float64(r.NextIntRange(OffsetMin, OffsetMax))
	}
	return out
}

// Shuffle is a Fisher–Yates shuffle over n elements.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.NextIntRange(0, i+1)
		swap(i, j)
	}
}
