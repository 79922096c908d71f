// Package digest hashes a finished generation pass so runs can be compared
// and replayed.
package digest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"blockterrain.ai/internal/sim/grid"
	"blockterrain.ai/internal/sim/noise"
	"blockterrain.ai/internal/sim/placement"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func writeU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeI64(h hashWriter, tmp *[8]byte, v int64) {
	writeU64(h, tmp, uint64(v))
}

func writeSize(h hashWriter, tmp *[8]byte, s grid.Size) {
	writeI64(h, tmp, int64(s.X))
	writeI64(h, tmp, int64(s.Y))
	writeI64(h, tmp, int64(s.Z))
}

// Field hashes the exact bits of every noise value.
func Field(f *noise.Field) string {
	h := sha256.New()
	var tmp [8]byte
	writeSize(h, &tmp, f.Size)
	for _, v := range f.Cells {
		writeU64(h, &tmp, math.Float64bits(v))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Pass hashes seed, levels and assignment. Two passes with the same digest
// placed the same blocks at the same cells.
func Pass(seed uint64, levels placement.LevelSet, a *placement.Assignment) string {
	h := sha256.New()
	var tmp [8]byte
	writeU64(h, &tmp, seed)
	writeSize(h, &tmp, a.Size)
	writeI64(h, &tmp, int64(levels.Len()))
	for _, s := range levels {
		writeI64(h, &tmp, int64(s))
	}
	for _, c := range a.Counts {
		writeI64(h, &tmp, int64(c))
	}
	for i, l := range a.Levels {
		writeI64(h, &tmp, int64(l))
		writeI64(h, &tmp, int64(a.Owner[i]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
